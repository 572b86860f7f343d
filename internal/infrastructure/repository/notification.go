package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/infrastructure/database/models"
)

// NotificationRepository persists the per-owner interaction feed.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n domain.Notification) error {
	row := models.Notification{
		OwnerOpenID:   n.OwnerOpenID,
		Type:          n.Type,
		PlantID:       n.PlantID,
		ActorOpenID:   n.ActorOpenID,
		ActorNickname: n.ActorNickname,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *NotificationRepository) List(ctx context.Context, owner string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	q := r.db.WithContext(ctx).
		Where("owner_open_id = ?", owner)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}

	var rows []models.Notification
	err := q.Order("c_date DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.Notification, len(rows))
	for i, row := range rows {
		items[i] = domain.Notification{
			ID:            row.ID,
			OwnerOpenID:   row.OwnerOpenID,
			Type:          row.Type,
			PlantID:       row.PlantID,
			ActorOpenID:   row.ActorOpenID,
			ActorNickname: row.ActorNickname,
			Time:          row.CDate,
			Read:          row.Read,
		}
	}
	return items, nil
}

func (r *NotificationRepository) Stats(ctx context.Context, owner string) (domain.NotificationStats, error) {
	var stats domain.NotificationStats
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("owner_open_id = ?", owner).
		Count(&stats.Total).Error
	if err != nil {
		return stats, err
	}
	err = r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("owner_open_id = ? AND read = ?", owner, false).
		Count(&stats.Unread).Error
	return stats, err
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, owner string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("owner_open_id = ? AND read = ?", owner, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) MarkReadByIDs(ctx context.Context, owner string, ids []int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("owner_open_id = ? AND id IN ?", owner, ids).
		Update("read", true)
	return res.RowsAffected, res.Error
}
