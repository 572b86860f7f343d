package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/leaflog/leaflog"
	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/i18n"
	"github.com/leaflog/leaflog/internal/present/rest/middleware"
	"github.com/leaflog/leaflog/internal/service"
	"github.com/leaflog/leaflog/internal/usecase"
)

// --- mocks ---

type stubBackend struct {
	likes    map[string]map[string]bool
	shared   *domain.SharedPlant
	profiles map[string]domain.UserProfile
	plants   map[string][]domain.PlantRecord
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		likes:    make(map[string]map[string]bool),
		profiles: make(map[string]domain.UserProfile),
		plants:   make(map[string][]domain.PlantRecord),
	}
}

func (s *stubBackend) Kind() string                         { return "stub" }
func (s *stubBackend) IsAvailable(ctx context.Context) bool { return true }
func (s *stubBackend) Init(ctx context.Context) error       { return nil }

func (s *stubBackend) UploadImage(ctx context.Context, owner, localPath string) (string, error) {
	return leaflog.ComposeAssetRef(owner, "plants/x.jpg"), nil
}

func (s *stubBackend) ResolveDisplayURLs(ctx context.Context, refs []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (s *stubBackend) CanonicalRef(displayURL string) (string, bool) { return "", false }

func (s *stubBackend) DeleteFiles(ctx context.Context, refs []string) error { return nil }

func (s *stubBackend) SavePlantList(ctx context.Context, owner string, list []domain.PlantRecord) error {
	s.plants[owner] = list
	return nil
}

func (s *stubBackend) LoadPlantList(ctx context.Context, owner string) ([]domain.PlantRecord, error) {
	list, ok := s.plants[owner]
	if !ok {
		return nil, domain.NotFoundError{Resource: "plant document"}
	}
	return list, nil
}

func (s *stubBackend) LoadSharedPlantByOwner(ctx context.Context, owner string, plantID int64) (*domain.SharedPlant, error) {
	if s.shared == nil {
		return nil, domain.NotFoundError{Resource: "shared plant"}
	}
	return s.shared, nil
}

func (s *stubBackend) SaveShareComment(ctx context.Context, comment domain.ShareComment) (*domain.ShareComment, error) {
	comment.ID = 1
	return &comment, nil
}

func (s *stubBackend) ListShareComments(ctx context.Context, key, imageRef string) ([]domain.ShareComment, error) {
	return nil, nil
}

func (s *stubBackend) SaveShareLike(ctx context.Context, like domain.ShareLike) (int64, bool, error) {
	k := like.Key + "|" + like.ImageKey
	if s.likes[k] == nil {
		s.likes[k] = make(map[string]bool)
	}
	created := !s.likes[k][like.LikerOpenID]
	s.likes[k][like.LikerOpenID] = true
	return int64(len(s.likes[k])), created, nil
}

func (s *stubBackend) ListShareLikes(ctx context.Context, key, imageKey string) ([]domain.ShareLike, int64, error) {
	return nil, int64(len(s.likes[key+"|"+imageKey])), nil
}

func (s *stubBackend) GetUserProfile(ctx context.Context, openID string) (*domain.UserProfile, error) {
	p, ok := s.profiles[openID]
	if !ok {
		return nil, domain.NotFoundError{Resource: "profile"}
	}
	return &p, nil
}

func (s *stubBackend) SaveUserProfile(ctx context.Context, profile domain.UserProfile) error {
	s.profiles[profile.OpenID] = profile
	return nil
}

func (s *stubBackend) UpdateUserProfile(ctx context.Context, openID string, fields map[string]any) error {
	p, ok := s.profiles[openID]
	if !ok {
		return domain.NotFoundError{Resource: "profile"}
	}
	if nickname, ok := fields["nickname"].(string); ok {
		p.Nickname = nickname
	}
	s.profiles[openID] = p
	return nil
}

type stubNotificationRepo struct{}

func (stubNotificationRepo) Create(ctx context.Context, n domain.Notification) error { return nil }
func (stubNotificationRepo) List(ctx context.Context, owner string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	return []domain.Notification{}, nil
}
func (stubNotificationRepo) Stats(ctx context.Context, owner string) (domain.NotificationStats, error) {
	return domain.NotificationStats{}, nil
}
func (stubNotificationRepo) MarkAllRead(ctx context.Context, owner string) (int64, error) {
	return 0, nil
}
func (stubNotificationRepo) MarkReadByIDs(ctx context.Context, owner string, ids []int64) (int64, error) {
	return int64(len(ids)), nil
}

type envelope struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, backend *stubBackend) (*echo.Echo, *service.AuthService) {
	t.Helper()

	conf := domain.Config{FQDN: "leaflog.test", JWTSecret: "test-secret"}
	log := zap.NewNop()

	auth := service.NewAuthService(&conf)
	notifications := usecase.NewNotificationUsecase(stubNotificationRepo{})
	profiles := usecase.NewProfileUsecase(backend)
	share := usecase.NewShareUsecase(backend, nil, notifications, nil, log.Sugar())

	locales, err := i18n.Load()
	if err != nil {
		t.Fatalf("load locales: %v", err)
	}

	h := NewHandler(conf, backend, nil, share, notifications, profiles, auth, nil, nil, locales, log)

	e := echo.New()
	e.Use(middleware.NewAuthMiddleware(auth, conf).IdentifyRequester)
	h.RegisterRoutes(e)
	return e, auth
}

func doJSON(t *testing.T, e *echo.Echo, method, path, token string, body any) envelope {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("%s %s: unexpected status %d", method, path, res.Code)
	}

	var env envelope
	if err := json.Unmarshal(res.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: bad envelope: %v", method, path, err)
	}
	return env
}

// --- tests ---

func TestLoginIssuesUsableToken(t *testing.T) {
	e, _ := newTestServer(t, newStubBackend())

	env := doJSON(t, e, http.MethodPost, "/api/v1/login", "", map[string]string{
		"openId":   "user-1",
		"nickname": "Momo",
	})
	if !env.OK {
		t.Fatalf("login rejected: %+v", env)
	}

	var data struct {
		Token  string `json:"token"`
		OpenID string `json:"openId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("no token issued: %s", env.Data)
	}

	// the token must authenticate follow-up requests
	feed := doJSON(t, e, http.MethodGet, "/api/v1/notifications", data.Token, nil)
	if !feed.OK {
		t.Fatalf("issued token not accepted: %+v", feed)
	}
}

func TestLoginWithoutOpenIDRejected(t *testing.T) {
	e, _ := newTestServer(t, newStubBackend())

	env := doJSON(t, e, http.MethodPost, "/api/v1/login", "", map[string]string{"nickname": "Momo"})
	if env.OK || env.Error != leaflog.ErrCodeNoOpenID {
		t.Fatalf("expected no_openid, got %+v", env)
	}
}

func TestLikeRequiresIdentity(t *testing.T) {
	e, _ := newTestServer(t, newStubBackend())

	env := doJSON(t, e, http.MethodPost, "/api/v1/shares/likes", "", map[string]any{
		"key":      "owner-1#42",
		"imageKey": "0",
	})
	if env.OK || env.Error != leaflog.ErrCodeNoOpenID {
		t.Fatalf("expected no_openid, got %+v", env)
	}
}

func TestLikeIsIdempotentOverTheWire(t *testing.T) {
	e, auth := newTestServer(t, newStubBackend())
	token, err := auth.IssueToken("liker-1", "Momo")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	body := map[string]any{"key": "owner-1#42", "imageKey": "0"}

	first := doJSON(t, e, http.MethodPost, "/api/v1/shares/likes", token, body)
	second := doJSON(t, e, http.MethodPost, "/api/v1/shares/likes", token, body)

	var a, b struct {
		Count   int64 `json:"count"`
		Created bool  `json:"created"`
	}
	json.Unmarshal(first.Data, &a)
	json.Unmarshal(second.Data, &b)

	if a.Count != 1 || !a.Created {
		t.Fatalf("first like: %+v", a)
	}
	if b.Count != 1 || b.Created {
		t.Fatalf("double like changed the count: %+v", b)
	}
}

func TestSharedPlantNotFound(t *testing.T) {
	e, _ := newTestServer(t, newStubBackend())

	env := doJSON(t, e, http.MethodGet, "/api/v1/shares/owner-1/99", "", nil)
	if env.OK || env.Error != leaflog.ErrCodeNotFound {
		t.Fatalf("expected not_found, got %+v", env)
	}
	if env.Message != "Not found" {
		t.Fatalf("expected english default message, got %q", env.Message)
	}
}

func TestErrorMessagesLocalized(t *testing.T) {
	e, _ := newTestServer(t, newStubBackend())

	env := doJSON(t, e, http.MethodGet, "/api/v1/shares/owner-1/99?lang=zh", "", nil)
	if env.OK || env.Error != leaflog.ErrCodeNotFound {
		t.Fatalf("expected not_found, got %+v", env)
	}
	if env.Message != "未找到" {
		t.Fatalf("expected localized message, got %q", env.Message)
	}
}

func TestPlantRoundTripOverTheWire(t *testing.T) {
	backend := newStubBackend()
	e, auth := newTestServer(t, backend)
	token, err := auth.IssueToken("owner-1", "")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	save := doJSON(t, e, http.MethodPut, "/api/v1/plants", token, map[string]any{
		"records": []domain.PlantRecord{{ID: 1, Name: "monstera"}},
	})
	if !save.OK {
		t.Fatalf("save rejected: %+v", save)
	}

	load := doJSON(t, e, http.MethodGet, "/api/v1/plants", token, nil)
	if !load.OK {
		t.Fatalf("load rejected: %+v", load)
	}
	var records []domain.PlantRecord
	if err := json.Unmarshal(load.Data, &records); err != nil || len(records) != 1 || records[0].Name != "monstera" {
		t.Fatalf("roundtrip lost records: %s", load.Data)
	}
}

func TestLoadPlantsForUnknownOwnerIsNotFound(t *testing.T) {
	e, auth := newTestServer(t, newStubBackend())
	token, _ := auth.IssueToken("owner-1", "")

	env := doJSON(t, e, http.MethodGet, "/api/v1/plants", token, nil)
	if env.OK || env.Error != leaflog.ErrCodeNotFound {
		t.Fatalf("expected not_found for missing document, got %+v", env)
	}
}
