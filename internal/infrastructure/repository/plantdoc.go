package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/infrastructure/database/models"
)

// PlantDocumentRepository stores one plant-list document per owner.
type PlantDocumentRepository struct {
	db *gorm.DB
}

func NewPlantDocumentRepository(db *gorm.DB) *PlantDocumentRepository {
	return &PlantDocumentRepository{db: db}
}

// Save overwrites the owner's document with the full list. Create
// first; on conflict, update in place. The revision counter only
// tracks how often the document was overwritten.
func (r *PlantDocumentRepository) Save(ctx context.Context, owner string, list []domain.PlantRecord) error {
	if owner == "" {
		return errors.New("owner is required")
	}

	value, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(err, "marshal plant list")
	}

	doc := models.PlantDocument{
		Owner: owner,
		Value: string(value),
		MDate: time.Now(),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":    string(value),
			"revision": gorm.Expr("plant_documents.revision + 1"),
			"mdate":    time.Now(),
		}),
	}).Create(&doc).Error
}

// Load fetches the owner's list. Missing document and transport errors
// stay distinguishable: the former is domain.ErrNotFound.
func (r *PlantDocumentRepository) Load(ctx context.Context, owner string) ([]domain.PlantRecord, error) {
	var doc models.PlantDocument
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Take(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundError{Resource: "plant document"}
		}
		return nil, err
	}

	var list []domain.PlantRecord
	if err := json.Unmarshal([]byte(doc.Value), &list); err != nil {
		return nil, errors.Wrap(err, "unmarshal plant list")
	}
	return list, nil
}

// Delete removes the owner's document.
func (r *PlantDocumentRepository) Delete(ctx context.Context, owner string) error {
	return r.db.WithContext(ctx).
		Delete(&models.PlantDocument{}, "owner = ?", owner).Error
}
