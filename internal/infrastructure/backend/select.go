package backend

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/usecase"
)

// Selector holds the registered adapters and delegates every call to
// the one currently active. Callers keep a single Backend value for the
// life of the process; switching adapters swaps the target underneath
// without anyone re-wiring.
type Selector struct {
	mu       sync.RWMutex
	active   usecase.Backend
	registry map[string]usecase.Backend
	log      *zap.Logger
}

func NewSelector(log *zap.Logger) *Selector {
	return &Selector{
		registry: make(map[string]usecase.Backend),
		log:      log,
	}
}

// Register makes an adapter selectable by its kind.
func (s *Selector) Register(b usecase.Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[b.Kind()] = b
}

// Select activates the adapter registered under kind and runs its Init.
// The previous adapter stays active when the switch fails.
func (s *Selector) Select(ctx context.Context, kind string) error {
	s.mu.RLock()
	next, ok := s.registry[kind]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no backend registered for kind %s", kind)
	}

	if err := next.Init(ctx); err != nil {
		return fmt.Errorf("failed to init backend %s: %w", kind, err)
	}

	s.mu.Lock()
	prev := s.active
	s.active = next
	s.mu.Unlock()

	if prev != nil && prev != next {
		s.log.Info("switched backend", zap.String("from", prev.Kind()), zap.String("to", kind))
	}
	return nil
}

func (s *Selector) current() usecase.Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Selector) Kind() string {
	if b := s.current(); b != nil {
		return b.Kind()
	}
	return ""
}

func (s *Selector) IsAvailable(ctx context.Context) bool {
	if b := s.current(); b != nil {
		return b.IsAvailable(ctx)
	}
	return false
}

func (s *Selector) Init(ctx context.Context) error {
	if b := s.current(); b != nil {
		return b.Init(ctx)
	}
	return domain.NotImplementedError{Op: "init"}
}

func (s *Selector) UploadImage(ctx context.Context, owner, localPath string) (string, error) {
	if b := s.current(); b != nil {
		return b.UploadImage(ctx, owner, localPath)
	}
	return "", domain.NotImplementedError{Op: "upload image"}
}

func (s *Selector) ResolveDisplayURLs(ctx context.Context, refs []string) (map[string]string, error) {
	if b := s.current(); b != nil {
		return b.ResolveDisplayURLs(ctx, refs)
	}
	return nil, domain.NotImplementedError{Op: "resolve display urls"}
}

func (s *Selector) CanonicalRef(displayURL string) (string, bool) {
	// All registered adapters are asked so references survive a switch.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active != nil {
		if ref, ok := s.active.CanonicalRef(displayURL); ok {
			return ref, true
		}
	}
	for _, b := range s.registry {
		if b == s.active {
			continue
		}
		if ref, ok := b.CanonicalRef(displayURL); ok {
			return ref, true
		}
	}
	return "", false
}

func (s *Selector) DeleteFiles(ctx context.Context, refs []string) error {
	if b := s.current(); b != nil {
		return b.DeleteFiles(ctx, refs)
	}
	return domain.NotImplementedError{Op: "delete files"}
}

func (s *Selector) SavePlantList(ctx context.Context, owner string, list []domain.PlantRecord) error {
	if b := s.current(); b != nil {
		return b.SavePlantList(ctx, owner, list)
	}
	return domain.NotImplementedError{Op: "save plant list"}
}

func (s *Selector) LoadPlantList(ctx context.Context, owner string) ([]domain.PlantRecord, error) {
	if b := s.current(); b != nil {
		return b.LoadPlantList(ctx, owner)
	}
	return nil, domain.NotImplementedError{Op: "load plant list"}
}

func (s *Selector) LoadSharedPlantByOwner(ctx context.Context, owner string, plantID int64) (*domain.SharedPlant, error) {
	if b := s.current(); b != nil {
		return b.LoadSharedPlantByOwner(ctx, owner, plantID)
	}
	return nil, domain.NotImplementedError{Op: "load shared plant"}
}

func (s *Selector) SaveShareComment(ctx context.Context, comment domain.ShareComment) (*domain.ShareComment, error) {
	if b := s.current(); b != nil {
		return b.SaveShareComment(ctx, comment)
	}
	return nil, domain.NotImplementedError{Op: "save share comment"}
}

func (s *Selector) ListShareComments(ctx context.Context, key, imageRef string) ([]domain.ShareComment, error) {
	if b := s.current(); b != nil {
		return b.ListShareComments(ctx, key, imageRef)
	}
	return nil, domain.NotImplementedError{Op: "list share comments"}
}

func (s *Selector) SaveShareLike(ctx context.Context, like domain.ShareLike) (int64, bool, error) {
	if b := s.current(); b != nil {
		return b.SaveShareLike(ctx, like)
	}
	return 0, false, domain.NotImplementedError{Op: "save share like"}
}

func (s *Selector) ListShareLikes(ctx context.Context, key, imageKey string) ([]domain.ShareLike, int64, error) {
	if b := s.current(); b != nil {
		return b.ListShareLikes(ctx, key, imageKey)
	}
	return nil, 0, domain.NotImplementedError{Op: "list share likes"}
}

func (s *Selector) GetUserProfile(ctx context.Context, openID string) (*domain.UserProfile, error) {
	if b := s.current(); b != nil {
		return b.GetUserProfile(ctx, openID)
	}
	return nil, domain.NotImplementedError{Op: "get user profile"}
}

func (s *Selector) SaveUserProfile(ctx context.Context, profile domain.UserProfile) error {
	if b := s.current(); b != nil {
		return b.SaveUserProfile(ctx, profile)
	}
	return domain.NotImplementedError{Op: "save user profile"}
}

func (s *Selector) UpdateUserProfile(ctx context.Context, openID string, fields map[string]any) error {
	if b := s.current(); b != nil {
		return b.UpdateUserProfile(ctx, openID, fields)
	}
	return domain.NotImplementedError{Op: "update user profile"}
}
