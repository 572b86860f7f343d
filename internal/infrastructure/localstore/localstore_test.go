package localstore

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"gorm.io/gorm/clause"

	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/infrastructure/database"
	"github.com/leaflog/leaflog/internal/infrastructure/database/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.MigrateSQLite(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestGetReportsAbsenceWithoutError(t *testing.T) {
	store := newTestStore(t)

	var out doc
	found, err := store.Get(context.Background(), "plants:user-1", &out)
	if err != nil {
		t.Fatalf("absence must not be an error: %v", err)
	}
	if found {
		t.Fatal("missing key reported as found")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := doc{Name: "monstera", Count: 2}
	if err := store.Set(ctx, "plants:user-1", in); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out doc
	found, err := store.Get(ctx, "plants:user-1", &out)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if out != in {
		t.Fatalf("roundtrip changed the value: %+v", out)
	}
}

func TestSetOverwritesExistingKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", doc{Name: "old"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "k", doc{Name: "new"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	var out doc
	if _, err := store.Get(ctx, "k", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Name != "new" {
		t.Fatalf("overwrite lost: %+v", out)
	}
}

func TestCorruptValueIsStorageError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := models.LocalEntry{Key: "k", Value: "{not json"}
	if err := store.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&entry).Error; err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}

	var out doc
	found, err := store.Get(ctx, "k", &out)
	if found {
		t.Fatal("corrupt value reported as found")
	}
	if !errors.Is(err, domain.StorageError{}) {
		t.Fatalf("expected a storage error, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", doc{Name: "x"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete must not fail: %v", err)
	}

	var out doc
	found, err := store.Get(ctx, "k", &out)
	if err != nil || found {
		t.Fatalf("deleted key still present: found=%v err=%v", found, err)
	}
}
