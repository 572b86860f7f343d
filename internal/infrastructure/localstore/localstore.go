package localstore

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/infrastructure/database/models"
)

// Store is the on-device key/value storage: each key holds one
// JSON-serializable value. Absence and read failure are reported
// separately so the restore path can tell them apart.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, key string, out any) (bool, error) {
	var entry models.LocalEntry
	err := s.db.WithContext(ctx).
		Where("key = ?", key).
		Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, domain.StorageError{Op: "read", Err: err}
	}

	if err := json.Unmarshal([]byte(entry.Value), out); err != nil {
		return false, domain.StorageError{Op: "decode", Err: err}
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return domain.StorageError{Op: "encode", Err: err}
	}

	entry := models.LocalEntry{Key: key, Value: string(raw)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{"value": string(raw)}),
	}).Create(&entry).Error
	if err != nil {
		return domain.StorageError{Op: "write", Err: err}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).
		Delete(&models.LocalEntry{}, "key = ?", key).Error
	if err != nil {
		return domain.StorageError{Op: "delete", Err: err}
	}
	return nil
}
