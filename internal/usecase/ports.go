package usecase

import (
	"context"

	"github.com/leaflog/leaflog/internal/domain"
)

// Backend is the runtime-switchable adapter behind every store. All
// higher-level code depends only on this interface; swapping the
// active backend requires no caller changes. Operations an adapter
// cannot serve return domain.ErrNotImplemented, never a silent no-op.
type Backend interface {
	Kind() string
	IsAvailable(ctx context.Context) bool
	Init(ctx context.Context) error

	UploadImage(ctx context.Context, owner, localPath string) (string, error)
	// ResolveDisplayURLs maps stable references to short-lived display
	// URLs, serving from a positive cache where possible.
	ResolveDisplayURLs(ctx context.Context, refs []string) (map[string]string, error)
	// CanonicalRef reverses a display URL back to the stable reference
	// it was resolved from.
	CanonicalRef(displayURL string) (string, bool)
	DeleteFiles(ctx context.Context, refs []string) error

	SavePlantList(ctx context.Context, owner string, list []domain.PlantRecord) error
	// LoadPlantList returns domain.ErrNotFound when the owner has no
	// remote document, as distinct from a transport failure.
	LoadPlantList(ctx context.Context, owner string) ([]domain.PlantRecord, error)

	LoadSharedPlantByOwner(ctx context.Context, owner string, plantID int64) (*domain.SharedPlant, error)
	SaveShareComment(ctx context.Context, comment domain.ShareComment) (*domain.ShareComment, error)
	ListShareComments(ctx context.Context, key, imageRef string) ([]domain.ShareComment, error)
	// SaveShareLike inserts the like if absent and returns the
	// recomputed count plus whether the row was newly created.
	SaveShareLike(ctx context.Context, like domain.ShareLike) (int64, bool, error)
	ListShareLikes(ctx context.Context, key, imageKey string) ([]domain.ShareLike, int64, error)

	GetUserProfile(ctx context.Context, openID string) (*domain.UserProfile, error)
	SaveUserProfile(ctx context.Context, profile domain.UserProfile) error
	UpdateUserProfile(ctx context.Context, openID string, fields map[string]any) error
}

// LocalStore is the on-device key/value storage. Get reports absence
// separately from read failure so callers can tell "empty" from
// "broken" where it matters.
type LocalStore interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// RecognitionGateway identifies a plant species from image bytes.
type RecognitionGateway interface {
	Recognize(ctx context.Context, image []byte) (*domain.AIResult, error)
}

// EventPublisher fans out interaction events to the realtime feed.
type EventPublisher interface {
	PublishInteraction(ctx context.Context, ownerOpenID string, event any) error
}

// NotificationSink records an interaction notification for an owner.
// Used by the share write paths; failures there are best-effort.
type NotificationSink interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// On-device storage keys.
const (
	LocalKeyPlantList    = "plantList"
	LocalKeySettings     = "appSettings"
	LocalKeyLanguage     = "languagePref"
	LocalKeyFollowList   = "followList"
	LocalKeyLikeCache    = "shareLikeCache"
	LocalKeyCommentCache = "shareCommentCache"
)
