package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/leaflog/leaflog"
	"github.com/leaflog/leaflog/internal/domain"
)

// --- mocks ---

type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(ctx context.Context, key string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *memStore) Set(ctx context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type mockBackend struct {
	mu sync.Mutex

	saved     map[string][]domain.PlantRecord
	saveCalls int
	saveErr   error

	loadList []domain.PlantRecord
	loadErr  error

	canonical map[string]string
	deleted   []string

	likes      map[string]map[string]domain.ShareLike
	likeErr    error
	comments   []domain.ShareComment
	commentErr error
	listErr    error

	shared    *domain.SharedPlant
	sharedErr error

	profiles map[string]domain.UserProfile
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		saved:     make(map[string][]domain.PlantRecord),
		canonical: make(map[string]string),
		likes:     make(map[string]map[string]domain.ShareLike),
		profiles:  make(map[string]domain.UserProfile),
	}
}

func (m *mockBackend) Kind() string                         { return "mock" }
func (m *mockBackend) IsAvailable(ctx context.Context) bool { return true }
func (m *mockBackend) Init(ctx context.Context) error       { return nil }

func (m *mockBackend) UploadImage(ctx context.Context, owner, localPath string) (string, error) {
	return leaflog.ComposeAssetRef(owner, "plants/"+localPath), nil
}

func (m *mockBackend) ResolveDisplayURLs(ctx context.Context, refs []string) (map[string]string, error) {
	out := make(map[string]string, len(refs))
	for _, ref := range refs {
		out[ref] = "https://signed.example/" + ref
	}
	return out, nil
}

func (m *mockBackend) CanonicalRef(displayURL string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.canonical[displayURL]
	return ref, ok
}

func (m *mockBackend) DeleteFiles(ctx context.Context, refs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, refs...)
	return nil
}

func (m *mockBackend) SavePlantList(ctx context.Context, owner string, list []domain.PlantRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	snapshot := make([]domain.PlantRecord, len(list))
	copy(snapshot, list)
	m.saved[owner] = snapshot
	return nil
}

func (m *mockBackend) LoadPlantList(ctx context.Context, owner string) ([]domain.PlantRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.loadList, nil
}

func (m *mockBackend) LoadSharedPlantByOwner(ctx context.Context, owner string, plantID int64) (*domain.SharedPlant, error) {
	if m.sharedErr != nil {
		return nil, m.sharedErr
	}
	if m.shared == nil {
		return nil, domain.NotFoundError{Resource: "shared plant"}
	}
	return m.shared, nil
}

func (m *mockBackend) SaveShareComment(ctx context.Context, comment domain.ShareComment) (*domain.ShareComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commentErr != nil {
		return nil, m.commentErr
	}
	comment.ID = int64(len(m.comments) + 1)
	m.comments = append(m.comments, comment)
	return &comment, nil
}

func (m *mockBackend) ListShareComments(ctx context.Context, key, imageRef string) ([]domain.ShareComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.ShareComment
	for _, c := range m.comments {
		if c.Key == key && c.ImageRef == imageRef {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockBackend) SaveShareLike(ctx context.Context, like domain.ShareLike) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.likeErr != nil {
		return 0, false, m.likeErr
	}
	k := like.Key + "|" + like.ImageKey
	if m.likes[k] == nil {
		m.likes[k] = make(map[string]domain.ShareLike)
	}
	_, exists := m.likes[k][like.LikerOpenID]
	if !exists {
		m.likes[k][like.LikerOpenID] = like
	}
	return int64(len(m.likes[k])), !exists, nil
}

func (m *mockBackend) ListShareLikes(ctx context.Context, key, imageKey string) ([]domain.ShareLike, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []domain.ShareLike
	for _, l := range m.likes[key+"|"+imageKey] {
		out = append(out, l)
	}
	return out, int64(len(out)), nil
}

func (m *mockBackend) GetUserProfile(ctx context.Context, openID string) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[openID]
	if !ok {
		return nil, domain.NotFoundError{Resource: "profile"}
	}
	return &p, nil
}

func (m *mockBackend) SaveUserProfile(ctx context.Context, profile domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.OpenID] = profile
	return nil
}

func (m *mockBackend) UpdateUserProfile(ctx context.Context, openID string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[openID]
	if !ok {
		return domain.NotFoundError{Resource: "profile"}
	}
	if nickname, ok := fields["nickname"].(string); ok {
		p.Nickname = nickname
	}
	m.profiles[openID] = p
	return nil
}

// --- helpers ---

func newPlantUsecase(backend Backend, local LocalStore, limits func() domain.Settings) (*PlantUsecase, *MirrorOutbox) {
	log := zap.NewNop().Sugar()
	outbox := NewMirrorOutbox(backend, log)
	return NewPlantUsecase(local, backend, outbox, limits, log), outbox
}

// --- tests ---

func TestLoadPrefersLocal(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	backend.loadErr = errors.New("remote must not be consulted")
	local := newMemStore()
	uc, outbox := newPlantUsecase(backend, local, nil)
	defer outbox.Close()

	if err := uc.Save(ctx, "owner-1", []domain.PlantRecord{{ID: 1, Name: "monstera", Images: []string{"asset://owner-1/plants/a.jpg"}}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	result := uc.Load(ctx, "owner-1")
	if result.Source != SourceLocal {
		t.Fatalf("expected local source, got %s", result.Source)
	}
	if len(result.Records) != 1 || result.Records[0].Name != "monstera" {
		t.Fatalf("unexpected records: %+v", result.Records)
	}
}

func TestLoadRestoresFromCloud(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	backend.loadList = []domain.PlantRecord{{ID: 7, Name: "ficus", Images: []string{"asset://owner-1/plants/f.jpg"}}}
	local := newMemStore()
	uc, outbox := newPlantUsecase(backend, local, nil)
	defer outbox.Close()

	result := uc.Load(ctx, "owner-1")
	if result.Source != SourceCloud {
		t.Fatalf("expected cloud source, got %s", result.Source)
	}
	if len(result.Records) != 1 || result.Records[0].ID != 7 {
		t.Fatalf("unexpected records: %+v", result.Records)
	}

	// remote result must be written back so the next load is local
	backend.loadErr = errors.New("remote must not be consulted twice")
	again := uc.Load(ctx, "owner-1")
	if again.Source != SourceLocal {
		t.Fatalf("expected local source on second load, got %s", again.Source)
	}
}

func TestLoadNoRemoteDocumentMeansEmpty(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	backend.loadErr = domain.NotFoundError{Resource: "plant document"}
	uc, outbox := newPlantUsecase(backend, newMemStore(), nil)
	defer outbox.Close()

	result := uc.Load(ctx, "owner-1")
	if result.Source != SourceEmpty {
		t.Fatalf("expected empty source, got %s", result.Source)
	}
	if result.RestoreErr != nil {
		t.Fatalf("a missing document is not a restore failure: %v", result.RestoreErr)
	}
}

func TestLoadRestoreFailureIsDistinguished(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	backend.loadErr = errors.New("connection refused")
	uc, outbox := newPlantUsecase(backend, newMemStore(), nil)
	defer outbox.Close()

	result := uc.Load(ctx, "owner-1")
	if result.Source != SourceEmpty {
		t.Fatalf("expected empty source, got %s", result.Source)
	}
	if result.RestoreErr == nil {
		t.Fatalf("expected restore error to surface")
	}
}

func TestSaveCanonicalizesDisplayURLs(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	backend.canonical["https://signed.example/x?token=abc"] = "asset://owner-1/plants/x.jpg"
	local := newMemStore()
	uc, outbox := newPlantUsecase(backend, local, nil)
	defer outbox.Close()

	record := domain.PlantRecord{
		ID:     1,
		Name:   "pothos",
		Images: []string{"https://signed.example/x?token=abc"},
	}
	if err := uc.Save(ctx, "owner-1", []domain.PlantRecord{record}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	result := uc.Load(ctx, "owner-1")
	if got := result.Records[0].Images[0]; got != "asset://owner-1/plants/x.jpg" {
		t.Fatalf("display url survived into storage: %s", got)
	}
}

func TestSaveMirrorsThroughOutbox(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	uc, outbox := newPlantUsecase(backend, newMemStore(), nil)
	defer outbox.Close()

	if err := uc.Save(ctx, "owner-1", []domain.PlantRecord{{ID: 1, Name: "aloe", Images: []string{"asset://owner-1/plants/a.jpg"}}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	outbox.Flush(ctx)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.saved["owner-1"]) != 1 {
		t.Fatalf("expected mirror to reach the backend: %+v", backend.saved)
	}
}

func TestMirrorFailureNeverReachesCaller(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	backend.saveErr = errors.New("remote down")
	uc, outbox := newPlantUsecase(backend, newMemStore(), nil)
	defer outbox.Close()

	if err := uc.Save(ctx, "owner-1", []domain.PlantRecord{{ID: 1, Name: "aloe", Images: []string{"asset://owner-1/plants/a.jpg"}}}); err != nil {
		t.Fatalf("local save must succeed despite remote failure: %v", err)
	}
	outbox.Flush(ctx)

	result := uc.Load(ctx, "owner-1")
	if result.Source != SourceLocal || len(result.Records) != 1 {
		t.Fatalf("local copy lost: %+v", result)
	}
}

func TestAppendImageKeepsCoverAndEvictsOldest(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	limits := func() domain.Settings {
		s := domain.DefaultSettings()
		s.MaxPhotos = 3
		return s
	}
	uc, outbox := newPlantUsecase(backend, newMemStore(), limits)
	defer outbox.Close()

	record := domain.PlantRecord{
		ID:     1,
		Images: []string{"asset://o/cover.jpg", "asset://o/second.jpg", "asset://o/oldest.jpg"},
		ImageInfos: []domain.ImageInfo{
			{Reference: "asset://o/cover.jpg"},
			{Reference: "asset://o/second.jpg"},
			{Reference: "asset://o/oldest.jpg"},
		},
	}
	if err := uc.Save(ctx, "owner-1", []domain.PlantRecord{record}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := uc.AppendImage(ctx, "owner-1", 1, domain.ImageInfo{Reference: "asset://o/new.jpg"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	outbox.Flush(ctx)

	result := uc.Load(ctx, "owner-1")
	images := result.Records[0].Images
	want := []string{"asset://o/cover.jpg", "asset://o/new.jpg", "asset://o/second.jpg"}
	if len(images) != 3 {
		t.Fatalf("cap not enforced: %v", images)
	}
	for i := range want {
		if images[i] != want[i] {
			t.Fatalf("image order wrong at %d: got %v want %v", i, images, want)
		}
	}
	if len(result.Records[0].ImageInfos) != 3 {
		t.Fatalf("image infos out of step: %+v", result.Records[0].ImageInfos)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	found := false
	for _, ref := range backend.deleted {
		if ref == "asset://o/oldest.jpg" {
			found = true
		}
	}
	if !found {
		t.Fatalf("evicted asset not queued for deletion: %v", backend.deleted)
	}
}

func TestFailedRemoveImageKeepsAsset(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	store := newMemStore()
	uc, outbox := newPlantUsecase(backend, store, nil)
	defer outbox.Close()

	record := domain.PlantRecord{
		ID:     1,
		Images: []string{"asset://o/cover.jpg", "asset://o/extra.jpg"},
		ImageInfos: []domain.ImageInfo{
			{Reference: "asset://o/cover.jpg"},
			{Reference: "asset://o/extra.jpg"},
		},
	}
	if err := uc.Save(ctx, "owner-1", []domain.PlantRecord{record}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	store.mu.Lock()
	store.setErr = errors.New("disk full")
	store.mu.Unlock()

	if err := uc.RemoveImage(ctx, "owner-1", 1, 1); err == nil {
		t.Fatal("expected the failed local write to surface")
	}
	outbox.Flush(ctx)

	// the list still references the asset, so it must not be deleted
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.deleted) != 0 {
		t.Fatalf("asset queued for deletion despite failed write: %v", backend.deleted)
	}
}

func TestRemoveLastImageRefused(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	uc, outbox := newPlantUsecase(backend, newMemStore(), nil)
	defer outbox.Close()

	record := domain.PlantRecord{
		ID:         1,
		Images:     []string{"asset://o/only.jpg"},
		ImageInfos: []domain.ImageInfo{{Reference: "asset://o/only.jpg"}},
	}
	if err := uc.Save(ctx, "owner-1", []domain.PlantRecord{record}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	err := uc.RemoveImage(ctx, "owner-1", 1, 0)
	if !errors.Is(err, ErrLastImage) {
		t.Fatalf("expected ErrLastImage, got %v", err)
	}
}

func TestRepairRebuildsImageInfoParity(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	uc, outbox := newPlantUsecase(backend, newMemStore(), nil)
	defer outbox.Close()

	record := domain.PlantRecord{
		ID:         1,
		Images:     []string{"asset://o/a.jpg", "asset://o/b.jpg"},
		ImageInfos: []domain.ImageInfo{{Reference: "asset://o/b.jpg", Memo: "keep me"}},
	}
	if err := uc.Save(ctx, "owner-1", []domain.PlantRecord{record}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	result := uc.Load(ctx, "owner-1")
	infos := result.Records[0].ImageInfos
	if len(infos) != 2 {
		t.Fatalf("parity not repaired: %+v", infos)
	}
	if infos[0].Reference != "asset://o/a.jpg" || infos[1].Reference != "asset://o/b.jpg" {
		t.Fatalf("references misaligned: %+v", infos)
	}
	if infos[1].Memo != "keep me" {
		t.Fatalf("existing info lost during repair: %+v", infos[1])
	}
}

func TestRecordCapTrimsTail(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	limits := func() domain.Settings {
		s := domain.DefaultSettings()
		s.MaxRecords = 2
		return s
	}
	uc, outbox := newPlantUsecase(backend, newMemStore(), limits)
	defer outbox.Close()

	list := []domain.PlantRecord{
		{ID: 3, Images: []string{"asset://o/3.jpg"}},
		{ID: 2, Images: []string{"asset://o/2.jpg"}},
		{ID: 1, Images: []string{"asset://o/1.jpg"}},
	}
	if err := uc.Save(ctx, "owner-1", list); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	outbox.Flush(ctx)

	result := uc.Load(ctx, "owner-1")
	if len(result.Records) != 2 {
		t.Fatalf("record cap not enforced: %+v", result.Records)
	}
	if result.Records[0].ID != 3 || result.Records[1].ID != 2 {
		t.Fatalf("wrong records kept: %+v", result.Records)
	}
}

func TestRecordWateringPrepends(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend()
	uc, outbox := newPlantUsecase(backend, newMemStore(), nil)
	defer outbox.Close()

	record := domain.PlantRecord{ID: 1, Images: []string{"asset://o/a.jpg"}}
	if err := uc.Save(ctx, "owner-1", []domain.PlantRecord{record}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := uc.RecordWatering(ctx, "owner-1", 1, "2026-08-30", 1756500000000); err != nil {
		t.Fatalf("watering failed: %v", err)
	}
	if err := uc.RecordWatering(ctx, "owner-1", 1, "2026-08-31", 1756590000000); err != nil {
		t.Fatalf("watering failed: %v", err)
	}

	result := uc.Load(ctx, "owner-1")
	rec := result.Records[0]
	if rec.LastWateringDate != "2026-08-31" {
		t.Fatalf("last watering date not updated: %s", rec.LastWateringDate)
	}
	if len(rec.WateringHistory) != 2 || rec.WateringHistory[0].Date != "2026-08-31" {
		t.Fatalf("history not newest-first: %+v", rec.WateringHistory)
	}
}
