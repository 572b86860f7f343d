package usecase

import (
	"context"

	"github.com/leaflog/leaflog/internal/domain"
)

// NotificationRepository defines persistence for the interaction feed.
type NotificationRepository interface {
	Create(ctx context.Context, n domain.Notification) error
	List(ctx context.Context, owner string, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	Stats(ctx context.Context, owner string) (domain.NotificationStats, error)
	MarkAllRead(ctx context.Context, owner string) (int64, error)
	MarkReadByIDs(ctx context.Context, owner string, ids []int64) (int64, error)
}

// NotificationUsecase serves the per-owner unread/read feed.
type NotificationUsecase struct {
	repo NotificationRepository
}

func NewNotificationUsecase(repo NotificationRepository) *NotificationUsecase {
	return &NotificationUsecase{repo: repo}
}

// Notify records one interaction. Implements the sink the share write
// paths use as a best-effort side effect.
func (uc *NotificationUsecase) Notify(ctx context.Context, n domain.Notification) error {
	if n.OwnerOpenID == n.ActorOpenID {
		// never notify on self-interactions
		return nil
	}
	return uc.repo.Create(ctx, n)
}

// List pages through an owner's feed, newest-first.
func (uc *NotificationUsecase) List(ctx context.Context, owner string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return uc.repo.List(ctx, owner, unreadOnly, limit, offset)
}

func (uc *NotificationUsecase) Stats(ctx context.Context, owner string) (domain.NotificationStats, error) {
	return uc.repo.Stats(ctx, owner)
}

func (uc *NotificationUsecase) MarkAllRead(ctx context.Context, owner string) (int64, error) {
	return uc.repo.MarkAllRead(ctx, owner)
}

func (uc *NotificationUsecase) MarkReadByIDs(ctx context.Context, owner string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return uc.repo.MarkReadByIDs(ctx, owner, ids)
}
