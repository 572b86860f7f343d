package usecase

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/leaflog/leaflog/internal/domain"
)

// ProfileUsecase manages the one profile document per identity.
type ProfileUsecase struct {
	backend Backend
}

func NewProfileUsecase(backend Backend) *ProfileUsecase {
	return &ProfileUsecase{backend: backend}
}

// Get fetches a profile, creating a bare one on first access.
func (uc *ProfileUsecase) Get(ctx context.Context, openID string) (*domain.UserProfile, error) {
	profile, err := uc.backend.GetUserProfile(ctx, openID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	fresh := domain.UserProfile{
		OpenID:    openID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := uc.backend.SaveUserProfile(ctx, fresh); err != nil {
		return nil, err
	}
	return &fresh, nil
}

// Update applies partial field changes.
func (uc *ProfileUsecase) Update(ctx context.Context, openID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return uc.backend.UpdateUserProfile(ctx, openID, fields)
}
