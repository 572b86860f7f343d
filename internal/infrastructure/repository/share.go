package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/infrastructure/database/models"
)

// ShareRepository stores likes and comment threads for shared plants.
type ShareRepository struct {
	db *gorm.DB
}

func NewShareRepository(db *gorm.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// SaveLike inserts the like only if absent; calling twice never
// double-counts. The returned count comes from a count query, not a
// counter field, so partial failures cannot make it drift.
func (r *ShareRepository) SaveLike(ctx context.Context, like domain.ShareLike) (int64, bool, error) {
	row := models.ShareLike{
		Key:           like.Key,
		ImageKey:      like.ImageKey,
		LikerOpenID:   like.LikerOpenID,
		LikerNickname: like.LikerNickname,
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return 0, false, errors.Wrap(res.Error, "insert like")
	}
	created := res.RowsAffected > 0

	count, err := r.CountLikes(ctx, like.Key, like.ImageKey)
	if err != nil {
		return 0, created, err
	}
	return count, created, nil
}

// ListLikes returns one photo's likes, newest-first, with the count.
func (r *ShareRepository) ListLikes(ctx context.Context, key, imageKey string) ([]domain.ShareLike, int64, error) {
	var rows []models.ShareLike
	err := r.db.WithContext(ctx).
		Where("key = ? AND image_key = ?", key, imageKey).
		Order("c_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.ShareLike, len(rows))
	for i, row := range rows {
		items[i] = domain.ShareLike{
			Key:           row.Key,
			ImageKey:      row.ImageKey,
			LikerOpenID:   row.LikerOpenID,
			LikerNickname: row.LikerNickname,
			CreatedAt:     row.CDate,
		}
	}
	return items, int64(len(items)), nil
}

// CountLikes recomputes the like count for one photo.
func (r *ShareRepository) CountLikes(ctx context.Context, key, imageKey string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ShareLike{}).
		Where("key = ? AND image_key = ?", key, imageKey).
		Count(&count).Error
	return count, err
}

// SaveComment appends unconditionally; comments are never deduplicated.
func (r *ShareRepository) SaveComment(ctx context.Context, comment domain.ShareComment) (*domain.ShareComment, error) {
	row := models.ShareComment{
		Key:            comment.Key,
		ImageRef:       comment.ImageRef,
		AuthorOpenID:   comment.AuthorOpenID,
		AuthorNickname: comment.AuthorNickname,
		Content:        comment.Content,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, errors.Wrap(err, "insert comment")
	}

	comment.ID = row.ID
	comment.CreatedAt = row.CDate
	return &comment, nil
}

// ListComments returns one photo's thread, newest-first.
func (r *ShareRepository) ListComments(ctx context.Context, key, imageRef string) ([]domain.ShareComment, error) {
	var rows []models.ShareComment
	err := r.db.WithContext(ctx).
		Where("key = ? AND image_ref = ?", key, imageRef).
		Order("c_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.ShareComment, len(rows))
	for i, row := range rows {
		items[i] = domain.ShareComment{
			ID:             row.ID,
			Key:            row.Key,
			ImageRef:       row.ImageRef,
			AuthorOpenID:   row.AuthorOpenID,
			AuthorNickname: row.AuthorNickname,
			Content:        row.Content,
			CreatedAt:      row.CDate,
		}
	}
	return items, nil
}
