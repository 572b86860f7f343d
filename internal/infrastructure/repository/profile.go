package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/infrastructure/database/models"
)

// ProfileRepository stores one profile document per identity.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, openID string) (*domain.UserProfile, error) {
	var row models.UserProfile
	err := r.db.WithContext(ctx).
		Where("open_id = ?", openID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundError{Resource: "profile"}
		}
		return nil, err
	}

	return &domain.UserProfile{
		OpenID:    row.OpenID,
		Nickname:  row.Nickname,
		AvatarRef: row.AvatarRef,
		Language:  row.Language,
		CreatedAt: row.CDate,
		UpdatedAt: row.MDate,
	}, nil
}

func (r *ProfileRepository) Save(ctx context.Context, profile domain.UserProfile) error {
	row := models.UserProfile{
		OpenID:    profile.OpenID,
		Nickname:  profile.Nickname,
		AvatarRef: profile.AvatarRef,
		Language:  profile.Language,
		MDate:     time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "open_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"nickname":   profile.Nickname,
			"avatar_ref": profile.AvatarRef,
			"language":   profile.Language,
			"mdate":      time.Now(),
		}),
	}).Create(&row).Error
}

// Update applies a partial change. Unknown fields are ignored rather
// than written blindly.
func (r *ProfileRepository) Update(ctx context.Context, openID string, fields map[string]any) error {
	assign := map[string]any{}
	for name, value := range fields {
		switch name {
		case "nickname":
			assign["nickname"] = value
		case "avatarRef":
			assign["avatar_ref"] = value
		case "language":
			assign["language"] = value
		}
	}
	if len(assign) == 0 {
		return nil
	}
	assign["mdate"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("open_id = ?", openID).
		Updates(assign)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "profile"}
	}
	return nil
}
