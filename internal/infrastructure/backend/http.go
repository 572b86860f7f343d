package backend

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/leaflog/leaflog/client"
	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/usecase"
)

// HTTP talks to any leaflog-compatible server over the JSON envelope
// API. It is the adapter of last resort: no database handles, no bucket
// credentials, just a base URL and a token.
type HTTP struct {
	api     *client.Client
	reverse *gocache.Cache
	log     *zap.Logger
}

func NewHTTP(api *client.Client, log *zap.Logger) usecase.Backend {
	return &HTTP{
		api:     api,
		reverse: gocache.New(30*time.Minute, time.Hour),
		log:     log,
	}
}

func (b *HTTP) Kind() string {
	return domain.BackendGenericHTTP
}

func (b *HTTP) IsAvailable(ctx context.Context) bool {
	err := b.api.Request(ctx, http.MethodGet, "/api/v1/health", nil, nil)
	return err == nil
}

func (b *HTTP) Init(ctx context.Context) error {
	return nil
}

func (b *HTTP) UploadImage(ctx context.Context, owner, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", domain.StorageError{Op: "read", Err: err}
	}

	var result struct {
		Ref string `json:"ref"`
	}
	path := client.QueryPath("/api/v1/assets", map[string]string{"owner": owner})
	if err := b.api.Upload(ctx, path, filepath.Base(localPath), data, &result); err != nil {
		return "", err
	}
	return result.Ref, nil
}

func (b *HTTP) ResolveDisplayURLs(ctx context.Context, refs []string) (map[string]string, error) {
	var resolved map[string]string
	body := map[string]any{"refs": refs}
	if err := b.api.Request(ctx, http.MethodPost, "/api/v1/assets/resolve", body, &resolved); err != nil {
		return nil, err
	}

	for ref, url := range resolved {
		b.reverse.SetDefault(url, ref)
	}
	return resolved, nil
}

func (b *HTTP) CanonicalRef(displayURL string) (string, bool) {
	if x, found := b.reverse.Get(displayURL); found {
		return x.(string), true
	}
	return "", false
}

func (b *HTTP) DeleteFiles(ctx context.Context, refs []string) error {
	body := map[string]any{"refs": refs}
	return b.api.Request(ctx, http.MethodPost, "/api/v1/assets/delete", body, nil)
}

func (b *HTTP) SavePlantList(ctx context.Context, owner string, list []domain.PlantRecord) error {
	body := map[string]any{"owner": owner, "records": list}
	err := b.api.Request(ctx, http.MethodPut, "/api/v1/plants", body, nil)
	if err == nil {
		b.api.InvalidateCached(client.QueryPath("/api/v1/plants", map[string]string{"owner": owner}))
	}
	return err
}

func (b *HTTP) LoadPlantList(ctx context.Context, owner string) ([]domain.PlantRecord, error) {
	var records []domain.PlantRecord
	path := client.QueryPath("/api/v1/plants", map[string]string{"owner": owner})
	if err := b.api.Request(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (b *HTTP) LoadSharedPlantByOwner(ctx context.Context, owner string, plantID int64) (*domain.SharedPlant, error) {
	var shared domain.SharedPlant
	path := "/api/v1/shares/" + owner + "/" + strconv.FormatInt(plantID, 10)
	if err := b.api.GetCached(ctx, path, &shared); err != nil {
		return nil, err
	}
	return &shared, nil
}

func (b *HTTP) SaveShareComment(ctx context.Context, comment domain.ShareComment) (*domain.ShareComment, error) {
	var saved domain.ShareComment
	if err := b.api.Request(ctx, http.MethodPost, "/api/v1/shares/comments", comment, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (b *HTTP) ListShareComments(ctx context.Context, key, imageRef string) ([]domain.ShareComment, error) {
	var comments []domain.ShareComment
	path := client.QueryPath("/api/v1/shares/comments", map[string]string{
		"key":      key,
		"imageRef": imageRef,
	})
	if err := b.api.Request(ctx, http.MethodGet, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (b *HTTP) SaveShareLike(ctx context.Context, like domain.ShareLike) (int64, bool, error) {
	var result struct {
		Count   int64 `json:"count"`
		Created bool  `json:"created"`
	}
	if err := b.api.Request(ctx, http.MethodPost, "/api/v1/shares/likes", like, &result); err != nil {
		return 0, false, err
	}
	return result.Count, result.Created, nil
}

func (b *HTTP) ListShareLikes(ctx context.Context, key, imageKey string) ([]domain.ShareLike, int64, error) {
	var result struct {
		Likes []domain.ShareLike `json:"likes"`
		Count int64              `json:"count"`
	}
	path := client.QueryPath("/api/v1/shares/likes", map[string]string{
		"key":      key,
		"imageKey": imageKey,
	})
	if err := b.api.Request(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, 0, err
	}
	return result.Likes, result.Count, nil
}

func (b *HTTP) GetUserProfile(ctx context.Context, openID string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := b.api.Request(ctx, http.MethodGet, "/api/v1/profiles/"+openID, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (b *HTTP) SaveUserProfile(ctx context.Context, profile domain.UserProfile) error {
	return b.api.Request(ctx, http.MethodPut, "/api/v1/profiles/"+profile.OpenID, profile, nil)
}

func (b *HTTP) UpdateUserProfile(ctx context.Context, openID string, fields map[string]any) error {
	return b.api.Request(ctx, http.MethodPatch, "/api/v1/profiles/"+openID, fields, nil)
}
