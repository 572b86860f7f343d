package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/leaflog/leaflog"
	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/usecase"
)

// mirrorKeyPrefix separates the local mirror document from the plant
// list the store itself maintains.
const mirrorKeyPrefix = "mirror:"

// Local is the no-cloud adapter: the mirror document and media both
// stay on the device. Social operations are unavailable and say so.
type Local struct {
	store    usecase.LocalStore
	mediaDir string

	mu      sync.Mutex
	reverse map[string]string
}

func NewLocal(store usecase.LocalStore, mediaDir string) *Local {
	return &Local{
		store:    store,
		mediaDir: mediaDir,
		reverse:  make(map[string]string),
	}
}

func (l *Local) Kind() string { return domain.BackendLocalOnly }

func (l *Local) Init(ctx context.Context) error {
	return os.MkdirAll(l.mediaDir, 0o755)
}

func (l *Local) IsAvailable(ctx context.Context) bool { return true }

// UploadImage copies the photo into the managed media directory and
// returns a stable reference to the copy.
func (l *Local) UploadImage(ctx context.Context, owner, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", errors.Wrap(err, "read image file")
	}

	key := "plants/" + leaflog.ContentKey(data) + strings.ToLower(filepath.Ext(localPath))
	dst := filepath.Join(l.mediaDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", errors.Wrap(err, "copy image file")
	}

	return leaflog.ComposeAssetRef(owner, key), nil
}

// ResolveDisplayURLs maps references to file URLs under the media
// directory.
func (l *Local) ResolveDisplayURLs(ctx context.Context, refs []string) (map[string]string, error) {
	result := make(map[string]string, len(refs))

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ref := range refs {
		_, key, err := leaflog.ParseAssetRef(ref)
		if err != nil {
			continue
		}
		u := "file://" + filepath.ToSlash(filepath.Join(l.mediaDir, filepath.FromSlash(key)))
		result[ref] = u
		l.reverse[u] = ref
	}
	return result, nil
}

func (l *Local) CanonicalRef(displayURL string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ref, ok := l.reverse[displayURL]
	return ref, ok
}

func (l *Local) DeleteFiles(ctx context.Context, refs []string) error {
	for _, ref := range refs {
		_, key, err := leaflog.ParseAssetRef(ref)
		if err != nil {
			continue
		}
		err = os.Remove(filepath.Join(l.mediaDir, filepath.FromSlash(key)))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (l *Local) SavePlantList(ctx context.Context, owner string, list []domain.PlantRecord) error {
	return l.store.Set(ctx, mirrorKeyPrefix+owner, list)
}

func (l *Local) LoadPlantList(ctx context.Context, owner string) ([]domain.PlantRecord, error) {
	var list []domain.PlantRecord
	found, err := l.store.Get(ctx, mirrorKeyPrefix+owner, &list)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.NotFoundError{Resource: "plant document"}
	}
	return list, nil
}

func (l *Local) LoadSharedPlantByOwner(ctx context.Context, owner string, plantID int64) (*domain.SharedPlant, error) {
	return nil, domain.NotImplementedError{Op: "loadSharedPlantByOwner"}
}

func (l *Local) SaveShareComment(ctx context.Context, comment domain.ShareComment) (*domain.ShareComment, error) {
	return nil, domain.NotImplementedError{Op: "saveShareComment"}
}

func (l *Local) ListShareComments(ctx context.Context, key, imageRef string) ([]domain.ShareComment, error) {
	return nil, domain.NotImplementedError{Op: "listShareComments"}
}

func (l *Local) SaveShareLike(ctx context.Context, like domain.ShareLike) (int64, bool, error) {
	return 0, false, domain.NotImplementedError{Op: "saveShareLike"}
}

func (l *Local) ListShareLikes(ctx context.Context, key, imageKey string) ([]domain.ShareLike, int64, error) {
	return nil, 0, domain.NotImplementedError{Op: "listShareLikes"}
}

func (l *Local) GetUserProfile(ctx context.Context, openID string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	found, err := l.store.Get(ctx, "profile:"+openID, &profile)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.NotFoundError{Resource: "profile"}
	}
	return &profile, nil
}

func (l *Local) SaveUserProfile(ctx context.Context, profile domain.UserProfile) error {
	return l.store.Set(ctx, "profile:"+profile.OpenID, profile)
}

func (l *Local) UpdateUserProfile(ctx context.Context, openID string, fields map[string]any) error {
	profile, err := l.GetUserProfile(ctx, openID)
	if err != nil {
		return err
	}
	for name, value := range fields {
		s, _ := value.(string)
		switch name {
		case "nickname":
			profile.Nickname = s
		case "avatarRef":
			profile.AvatarRef = s
		case "language":
			profile.Language = s
		}
	}
	return l.SaveUserProfile(ctx, *profile)
}
