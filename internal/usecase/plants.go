package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/leaflog/leaflog"
	"github.com/leaflog/leaflog/internal/domain"
)

// Source tells a caller where Load got its records from.
type Source string

const (
	SourceLocal Source = "local"
	SourceCloud Source = "cloud"
	SourceEmpty Source = "empty"
)

// LoadResult carries the loaded list plus enough context to message
// the user: an empty list with a nil RestoreErr means there was no
// cloud data; a non-nil RestoreErr means the restore attempt failed.
type LoadResult struct {
	Records    []domain.PlantRecord
	Source     Source
	RestoreErr error
}

// ErrLastImage is returned when a mutation would leave a plant with no
// photos.
var ErrLastImage = errors.New("cannot remove the last image")

// ErrUnknownField is returned by UpsertField for fields it does not
// manage.
var ErrUnknownField = errors.New("unknown record field")

// PlantUsecase owns the single user's plant list. Writes go to local
// storage synchronously; the remote document is mirrored through the
// outbox, best-effort. Local storage is authoritative whenever it is
// non-empty.
type PlantUsecase struct {
	mu      sync.Mutex
	local   LocalStore
	backend Backend
	outbox  *MirrorOutbox
	limits  func() domain.Settings
	log     *zap.SugaredLogger
}

func NewPlantUsecase(
	local LocalStore,
	backend Backend,
	outbox *MirrorOutbox,
	limits func() domain.Settings,
	log *zap.SugaredLogger,
) *PlantUsecase {
	if limits == nil {
		limits = func() domain.Settings { return domain.DefaultSettings() }
	}
	return &PlantUsecase{
		local:   local,
		backend: backend,
		outbox:  outbox,
		limits:  limits,
		log:     log,
	}
}

// Load reads the local list. A non-empty local list wins outright. An
// empty one triggers a one-time restore from the owner's remote
// document; on success the fetched list is written back into local
// storage so the next Load is local again.
func (uc *PlantUsecase) Load(ctx context.Context, owner string) LoadResult {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	list, _, err := uc.readLocal(ctx)
	if err != nil {
		uc.log.Warnw("local plant list read failed", "error", err)
	}
	if len(list) > 0 {
		return LoadResult{Records: uc.present(list), Source: SourceLocal}
	}

	remote, err := uc.backend.LoadPlantList(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoadResult{Records: []domain.PlantRecord{}, Source: SourceEmpty}
		}
		return LoadResult{Records: []domain.PlantRecord{}, Source: SourceEmpty, RestoreErr: err}
	}
	if len(remote) == 0 {
		return LoadResult{Records: []domain.PlantRecord{}, Source: SourceEmpty}
	}

	remote, evicted := uc.normalize(remote)
	if err := uc.local.Set(ctx, LocalKeyPlantList, remote); err != nil {
		uc.log.Warnw("restored list write-back failed", "error", err)
	} else if len(evicted) > 0 {
		uc.outbox.EnqueueDelete(evicted)
	}
	return LoadResult{Records: uc.present(remote), Source: SourceCloud}
}

// Save canonicalizes and normalizes the list, writes it to local
// storage synchronously, then hands the remote mirror to the outbox.
// Mirror failures never reach the caller.
func (uc *PlantUsecase) Save(ctx context.Context, owner string, list []domain.PlantRecord) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.save(ctx, owner, list)
}

func (uc *PlantUsecase) save(ctx context.Context, owner string, list []domain.PlantRecord) error {
	list, evicted := uc.normalize(list)
	if err := uc.local.Set(ctx, LocalKeyPlantList, list); err != nil {
		return errors.Wrap(err, "save plant list")
	}
	uc.outbox.EnqueueMirror(owner, list)
	// remote deletions only after the list no longer references the assets
	if len(evicted) > 0 {
		uc.outbox.EnqueueDelete(evicted)
	}
	return nil
}

// AddPlant creates a record, assigns its timestamp-derived id, and
// trims the list to the configured record cap, evicting from the tail.
func (uc *PlantUsecase) AddPlant(ctx context.Context, owner string, record domain.PlantRecord) (domain.PlantRecord, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	now := time.Now()
	if record.CreateTime == 0 {
		record.CreateTime = now.UnixMilli()
	}
	if record.ID == 0 {
		record.ID = leaflog.NewRecordID(now)
	}

	list, _, _ := uc.readLocal(ctx)
	list = append([]domain.PlantRecord{record}, list...)
	return record, uc.save(ctx, owner, list)
}

// RemovePlant deletes a record and queues its stored assets for
// remote deletion.
func (uc *PlantUsecase) RemovePlant(ctx context.Context, owner string, id int64) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	list, _, _ := uc.readLocal(ctx)
	kept := list[:0]
	var evicted []string
	for _, rec := range list {
		if rec.ID == id {
			for _, img := range rec.Images {
				if leaflog.IsAssetRef(img) {
					evicted = append(evicted, img)
				}
			}
			continue
		}
		kept = append(kept, rec)
	}
	if err := uc.save(ctx, owner, kept); err != nil {
		return err
	}
	uc.outbox.EnqueueDelete(evicted)
	return nil
}

// UpsertField sets one managed field on one record.
func (uc *PlantUsecase) UpsertField(ctx context.Context, owner string, id int64, field string, value any) error {
	return uc.mutate(ctx, owner, id, func(rec *domain.PlantRecord) error {
		switch field {
		case "name":
			s, ok := value.(string)
			if !ok {
				return errors.Wrap(ErrUnknownField, "name expects a string")
			}
			rec.Name = s
		case "lastWateringDate":
			s, ok := value.(string)
			if !ok {
				return errors.Wrap(ErrUnknownField, "lastWateringDate expects a string")
			}
			rec.LastWateringDate = s
		case "lastFertilizingDate":
			s, ok := value.(string)
			if !ok {
				return errors.Wrap(ErrUnknownField, "lastFertilizingDate expects a string")
			}
			rec.LastFertilizingDate = s
		case "aiResult":
			res, ok := value.(*domain.AIResult)
			if !ok {
				return errors.Wrap(ErrUnknownField, "aiResult expects *AIResult")
			}
			rec.AIResult = res
		default:
			return errors.Wrapf(ErrUnknownField, "field %q", field)
		}
		return nil
	})
}

// AppendImage adds a photo to a record. The cover stays at index 0;
// newer photos sit right behind it, so cap eviction from the tail
// always drops the oldest.
func (uc *PlantUsecase) AppendImage(ctx context.Context, owner string, id int64, info domain.ImageInfo) error {
	return uc.mutate(ctx, owner, id, func(rec *domain.PlantRecord) error {
		if len(rec.Images) == 0 {
			rec.Images = []string{info.Reference}
			rec.ImageInfos = []domain.ImageInfo{info}
			return nil
		}

		rec.Images = append(rec.Images, "")
		copy(rec.Images[2:], rec.Images[1:])
		rec.Images[1] = info.Reference

		rec.ImageInfos = append(rec.ImageInfos, domain.ImageInfo{})
		copy(rec.ImageInfos[2:], rec.ImageInfos[1:])
		rec.ImageInfos[1] = info

		// save trims to the photo cap and queues the evicted assets
		return nil
	})
}

// RemoveImage drops one photo by index. The last remaining photo can
// never be removed.
func (uc *PlantUsecase) RemoveImage(ctx context.Context, owner string, id int64, index int) error {
	var removed string
	err := uc.mutate(ctx, owner, id, func(rec *domain.PlantRecord) error {
		if index < 0 || index >= len(rec.Images) {
			return domain.NotFoundError{Resource: "image"}
		}
		if len(rec.Images) <= 1 {
			return ErrLastImage
		}
		removed = rec.Images[index]
		rec.Images = append(rec.Images[:index], rec.Images[index+1:]...)
		rec.ImageInfos = append(rec.ImageInfos[:index], rec.ImageInfos[index+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	if leaflog.IsAssetRef(removed) {
		uc.outbox.EnqueueDelete([]string{removed})
	}
	return nil
}

// ReorderImages moves a photo from one index to another, keeping the
// info sequence parallel.
func (uc *PlantUsecase) ReorderImages(ctx context.Context, owner string, id int64, from, to int) error {
	return uc.mutate(ctx, owner, id, func(rec *domain.PlantRecord) error {
		n := len(rec.Images)
		if from < 0 || from >= n || to < 0 || to >= n {
			return domain.NotFoundError{Resource: "image"}
		}
		img := rec.Images[from]
		info := rec.ImageInfos[from]
		rec.Images = append(rec.Images[:from], rec.Images[from+1:]...)
		rec.ImageInfos = append(rec.ImageInfos[:from], rec.ImageInfos[from+1:]...)

		rec.Images = append(rec.Images, "")
		copy(rec.Images[to+1:], rec.Images[to:])
		rec.Images[to] = img

		rec.ImageInfos = append(rec.ImageInfos, domain.ImageInfo{})
		copy(rec.ImageInfos[to+1:], rec.ImageInfos[to:])
		rec.ImageInfos[to] = info
		return nil
	})
}

// SetImageMemo edits the memo of one photo.
func (uc *PlantUsecase) SetImageMemo(ctx context.Context, owner string, id int64, index int, memo string) error {
	return uc.mutate(ctx, owner, id, func(rec *domain.PlantRecord) error {
		if index < 0 || index >= len(rec.ImageInfos) {
			return domain.NotFoundError{Resource: "image"}
		}
		rec.ImageInfos[index].Memo = memo
		return nil
	})
}

// RecordWatering logs a watering at the given date, newest-first.
func (uc *PlantUsecase) RecordWatering(ctx context.Context, owner string, id int64, date string, ts int64) error {
	maxHistory := uc.limits().MaxHistory
	return uc.mutate(ctx, owner, id, func(rec *domain.PlantRecord) error {
		rec.LastWateringDate = date
		rec.WateringHistory = append([]domain.CareEvent{{Date: date, Timestamp: ts}}, rec.WateringHistory...)
		rec.TrimHistories(maxHistory)
		return nil
	})
}

// RecordFertilizing logs a fertilizing at the given date, newest-first.
func (uc *PlantUsecase) RecordFertilizing(ctx context.Context, owner string, id int64, date string, ts int64) error {
	maxHistory := uc.limits().MaxHistory
	return uc.mutate(ctx, owner, id, func(rec *domain.PlantRecord) error {
		rec.LastFertilizingDate = date
		rec.FertilizingHistory = append([]domain.CareEvent{{Date: date, Timestamp: ts}}, rec.FertilizingHistory...)
		rec.TrimHistories(maxHistory)
		return nil
	})
}

// AppendHealthAnalysis prepends a health check result.
func (uc *PlantUsecase) AppendHealthAnalysis(ctx context.Context, owner string, id int64, analysis domain.HealthAnalysis) error {
	maxHistory := uc.limits().MaxHistory
	return uc.mutate(ctx, owner, id, func(rec *domain.PlantRecord) error {
		rec.HealthAnalyses = append([]domain.HealthAnalysis{analysis}, rec.HealthAnalyses...)
		rec.TrimHistories(maxHistory)
		return nil
	})
}

// ApplyLimits re-trims the list against the current caps. Called
// whenever the limit configuration changes; trims, never blocks.
func (uc *PlantUsecase) ApplyLimits(ctx context.Context, owner string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	list, found, err := uc.readLocal(ctx)
	if err != nil || !found {
		return err
	}
	return uc.save(ctx, owner, list)
}

// mutate runs the canonical read-transform-write sequence over the one
// matching record.
func (uc *PlantUsecase) mutate(ctx context.Context, owner string, id int64, fn func(*domain.PlantRecord) error) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	list, _, err := uc.readLocal(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.NotFoundError{Resource: "plant"}
	}
	if err := fn(&list[idx]); err != nil {
		return err
	}
	return uc.save(ctx, owner, list)
}

func (uc *PlantUsecase) readLocal(ctx context.Context) ([]domain.PlantRecord, bool, error) {
	var list []domain.PlantRecord
	found, err := uc.local.Get(ctx, LocalKeyPlantList, &list)
	if err != nil {
		return nil, false, err
	}
	return list, found, nil
}

// normalize canonicalizes display URLs back to stable references,
// repairs image-info parity, and enforces the collection caps. Assets
// dropped by a cap are returned, not enqueued; callers delete them
// only once the trimmed list is committed.
func (uc *PlantUsecase) normalize(list []domain.PlantRecord) ([]domain.PlantRecord, []string) {
	settings := uc.limits()

	var evicted []string
	for i := range list {
		rec := &list[i]
		for j, img := range rec.Images {
			rec.Images[j] = uc.canonicalize(img)
		}
		for j := range rec.ImageInfos {
			rec.ImageInfos[j].Reference = uc.canonicalize(rec.ImageInfos[j].Reference)
		}
		rec.Repair()
		evicted = append(evicted, uc.evictBeyond(rec, settings.MaxPhotos)...)
		rec.TrimHistories(settings.MaxHistory)
	}

	if settings.MaxRecords > 0 && len(list) > settings.MaxRecords {
		for _, rec := range list[settings.MaxRecords:] {
			for _, img := range rec.Images {
				if leaflog.IsAssetRef(img) {
					evicted = append(evicted, img)
				}
			}
		}
		list = list[:settings.MaxRecords]
	}
	return list, evicted
}

// canonicalize swaps a short-lived display URL for the stable
// reference it was resolved from. Persisting a display URL is a
// defect: it expires and the reference becomes unresolvable.
func (uc *PlantUsecase) canonicalize(s string) string {
	if !leaflog.IsDisplayURL(s) {
		return s
	}
	if ref, ok := uc.backend.CanonicalRef(s); ok {
		return ref
	}
	uc.log.Warnw("display url has no canonical reference", "url", s)
	return s
}

// evictBeyond trims a record's photos to the cap, dropping from the
// tail and queueing stored assets for deletion. The cover at index 0
// is never moved.
func (uc *PlantUsecase) evictBeyond(rec *domain.PlantRecord, maxPhotos int) []string {
	if maxPhotos <= 0 || len(rec.Images) <= maxPhotos {
		return nil
	}
	var evicted []string
	for _, img := range rec.Images[maxPhotos:] {
		if leaflog.IsAssetRef(img) {
			evicted = append(evicted, img)
		}
	}
	rec.Images = rec.Images[:maxPhotos]
	if len(rec.ImageInfos) > maxPhotos {
		rec.ImageInfos = rec.ImageInfos[:maxPhotos]
	}
	return evicted
}

// present computes derived display fields on a read path.
func (uc *PlantUsecase) present(list []domain.PlantRecord) []domain.PlantRecord {
	for i := range list {
		list[i].ComputeCreateDate()
	}
	return list
}
