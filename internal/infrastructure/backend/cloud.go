package backend

import (
	"context"

	"gorm.io/gorm"

	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/infrastructure/gateway"
	"github.com/leaflog/leaflog/internal/infrastructure/repository"
)

// Cloud is the full-remote adapter: document store, social tables and
// object storage all live server-side.
type Cloud struct {
	db       *gorm.DB
	plants   *repository.PlantDocumentRepository
	shares   *repository.ShareRepository
	profiles *repository.ProfileRepository
	assets   *gateway.AssetGateway
}

func NewCloud(
	db *gorm.DB,
	plants *repository.PlantDocumentRepository,
	shares *repository.ShareRepository,
	profiles *repository.ProfileRepository,
	assets *gateway.AssetGateway,
) *Cloud {
	return &Cloud{
		db:       db,
		plants:   plants,
		shares:   shares,
		profiles: profiles,
		assets:   assets,
	}
}

func (c *Cloud) Kind() string { return domain.BackendFullRemote }

func (c *Cloud) Init(ctx context.Context) error { return nil }

func (c *Cloud) IsAvailable(ctx context.Context) bool {
	sqlDB, err := c.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (c *Cloud) UploadImage(ctx context.Context, owner, localPath string) (string, error) {
	return c.assets.Upload(ctx, owner, localPath)
}

func (c *Cloud) ResolveDisplayURLs(ctx context.Context, refs []string) (map[string]string, error) {
	return c.assets.Resolve(ctx, refs)
}

func (c *Cloud) CanonicalRef(displayURL string) (string, bool) {
	return c.assets.CanonicalRef(displayURL)
}

func (c *Cloud) DeleteFiles(ctx context.Context, refs []string) error {
	return c.assets.Delete(ctx, refs)
}

func (c *Cloud) SavePlantList(ctx context.Context, owner string, list []domain.PlantRecord) error {
	return c.plants.Save(ctx, owner, list)
}

func (c *Cloud) LoadPlantList(ctx context.Context, owner string) ([]domain.PlantRecord, error) {
	return c.plants.Load(ctx, owner)
}

// LoadSharedPlantByOwner serves the sanitized viewer-facing record:
// stable references resolved to display URLs, care history reduced to
// a status line, nothing else from the owner's list exposed.
func (c *Cloud) LoadSharedPlantByOwner(ctx context.Context, owner string, plantID int64) (*domain.SharedPlant, error) {
	list, err := c.plants.Load(ctx, owner)
	if err != nil {
		return nil, err
	}

	for i := range list {
		rec := &list[i]
		if rec.ID != plantID {
			continue
		}

		urls, err := c.assets.Resolve(ctx, rec.Images)
		if err != nil {
			return nil, err
		}
		images := make([]string, 0, len(rec.Images))
		for _, ref := range rec.Images {
			if u, ok := urls[ref]; ok {
				images = append(images, u)
			} else {
				images = append(images, ref)
			}
		}

		shared := &domain.SharedPlant{
			OwnerOpenID: owner,
			PlantID:     rec.ID,
			Name:        rec.Name,
			Images:      images,
			ImageRefs:   append([]string(nil), rec.Images...),
			AIResult:    rec.AIResult,
			LastStatus:  lastStatus(rec),
		}
		if profile, err := c.profiles.Get(ctx, owner); err == nil {
			shared.OwnerNickname = profile.Nickname
		}
		return shared, nil
	}
	return nil, domain.NotFoundError{Resource: "shared plant"}
}

func (c *Cloud) SaveShareComment(ctx context.Context, comment domain.ShareComment) (*domain.ShareComment, error) {
	return c.shares.SaveComment(ctx, comment)
}

func (c *Cloud) ListShareComments(ctx context.Context, key, imageRef string) ([]domain.ShareComment, error) {
	return c.shares.ListComments(ctx, key, imageRef)
}

func (c *Cloud) SaveShareLike(ctx context.Context, like domain.ShareLike) (int64, bool, error) {
	return c.shares.SaveLike(ctx, like)
}

func (c *Cloud) ListShareLikes(ctx context.Context, key, imageKey string) ([]domain.ShareLike, int64, error) {
	return c.shares.ListLikes(ctx, key, imageKey)
}

func (c *Cloud) GetUserProfile(ctx context.Context, openID string) (*domain.UserProfile, error) {
	return c.profiles.Get(ctx, openID)
}

func (c *Cloud) SaveUserProfile(ctx context.Context, profile domain.UserProfile) error {
	return c.profiles.Save(ctx, profile)
}

func (c *Cloud) UpdateUserProfile(ctx context.Context, openID string, fields map[string]any) error {
	return c.profiles.Update(ctx, openID, fields)
}

func lastStatus(rec *domain.PlantRecord) string {
	switch {
	case rec.LastWateringDate != "":
		return "watered " + rec.LastWateringDate
	case rec.LastFertilizingDate != "":
		return "fertilized " + rec.LastFertilizingDate
	default:
		return ""
	}
}
