package rest

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/leaflog/leaflog"
	"github.com/leaflog/leaflog/internal/domain"
	"github.com/leaflog/leaflog/internal/i18n"
	"github.com/leaflog/leaflog/internal/infrastructure/gateway"
	"github.com/leaflog/leaflog/internal/present/rest/middleware"
	"github.com/leaflog/leaflog/internal/present/rest/presenter"
	"github.com/leaflog/leaflog/internal/service"
	"github.com/leaflog/leaflog/internal/usecase"
)

type Handler struct {
	config        domain.Config
	backend       usecase.Backend
	assets        *gateway.AssetGateway
	share         *usecase.ShareUsecase
	notifications *usecase.NotificationUsecase
	profiles      *usecase.ProfileUsecase
	auth          *service.AuthService
	signal        *service.SignalService
	recognition   usecase.RecognitionGateway
	locales       *i18n.Bundle
	log           *zap.Logger
}

func NewHandler(
	config domain.Config,
	backend usecase.Backend,
	assets *gateway.AssetGateway,
	share *usecase.ShareUsecase,
	notifications *usecase.NotificationUsecase,
	profiles *usecase.ProfileUsecase,
	auth *service.AuthService,
	signal *service.SignalService,
	recognition usecase.RecognitionGateway,
	locales *i18n.Bundle,
	log *zap.Logger,
) *Handler {
	return &Handler{
		config:        config,
		backend:       backend,
		assets:        assets,
		share:         share,
		notifications: notifications,
		profiles:      profiles,
		auth:          auth,
		signal:        signal,
		recognition:   recognition,
		locales:       locales,
		log:           log,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", h.handleHealth)
	e.POST("/api/v1/login", h.handleLogin)

	e.PUT("/api/v1/plants", h.handleSavePlants)
	e.GET("/api/v1/plants", h.handleLoadPlants)

	e.POST("/api/v1/assets", h.handleUploadAsset)
	e.POST("/api/v1/assets/resolve", h.handleResolveAssets)
	e.POST("/api/v1/assets/delete", h.handleDeleteAssets)

	e.GET("/api/v1/shares/:owner/:plantId", h.handleSharedPlant)
	e.POST("/api/v1/shares/likes", h.handleAddLike)
	e.GET("/api/v1/shares/likes", h.handleListLikes)
	e.POST("/api/v1/shares/comments", h.handleAddComment)
	e.GET("/api/v1/shares/comments", h.handleListComments)

	e.GET("/api/v1/profiles/:openId", h.handleGetProfile)
	e.PUT("/api/v1/profiles/:openId", h.handleSaveProfile)
	e.PATCH("/api/v1/profiles/:openId", h.handleUpdateProfile)

	e.GET("/api/v1/notifications", h.handleNotifications)
	e.GET("/api/v1/notifications/stats", h.handleNotificationStats)
	e.POST("/api/v1/notifications/read", h.handleNotificationsRead)

	e.POST("/api/v1/recognize", h.handleRecognize)

	e.GET("/realtime", h.handleRealtime)
}

// language picks the response language from the lang query parameter
// or the first Accept-Language tag.
func (h *Handler) language(c echo.Context) string {
	if lang := c.QueryParam("lang"); lang != "" {
		return lang
	}
	header := c.Request().Header.Get("Accept-Language")
	if header == "" {
		return "en"
	}
	tag := header
	if idx := strings.IndexAny(header, ",;"); idx >= 0 {
		tag = header[:idx]
	}
	return strings.TrimSpace(tag)
}

func (h *Handler) fail(c echo.Context, code string) error {
	message := h.locales.Resolve(h.language(c), "errors."+code, nil)
	return presenter.Err(c, code, message)
}

func (h *Handler) failErr(c echo.Context, err error) error {
	code := presenter.CodeFor(err)
	if code == leaflog.ErrCodeDBError {
		h.log.Warn("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return h.fail(c, code)
}

func (h *Handler) handleHealth(c echo.Context) error {
	if !h.backend.IsAvailable(c.Request().Context()) {
		return h.fail(c, leaflog.ErrCodeDBError)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		OpenID   string `json:"openId"`
		Nickname string `json:"nickname"`
	}
	if err := c.Bind(&req); err != nil {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}
	if req.OpenID == "" {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}

	profile, err := h.profiles.Get(ctx, req.OpenID)
	if err != nil {
		return h.failErr(c, err)
	}
	if req.Nickname != "" && profile.Nickname != req.Nickname {
		if err := h.profiles.Update(ctx, req.OpenID, map[string]any{"nickname": req.Nickname}); err != nil {
			h.log.Warn("nickname update failed", zap.String("openId", req.OpenID), zap.Error(err))
		}
	}

	token, err := h.auth.IssueToken(req.OpenID, req.Nickname)
	if err != nil {
		return h.failErr(c, err)
	}

	return presenter.OK(c, echo.Map{"token": token, "openId": req.OpenID})
}

// requester resolves the acting openID: the authenticated identity
// wins, an explicit parameter is only honored without one.
func requester(c echo.Context, explicit string) string {
	if openID, ok := middleware.RequesterID(c.Request().Context()); ok {
		return openID
	}
	return explicit
}

func (h *Handler) handleSavePlants(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Owner   string               `json:"owner"`
		Records []domain.PlantRecord `json:"records"`
	}
	if err := c.Bind(&req); err != nil {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}

	owner := requester(c, req.Owner)
	if owner == "" {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}

	if err := h.backend.SavePlantList(ctx, owner, req.Records); err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, echo.Map{"saved": len(req.Records)})
}

func (h *Handler) handleLoadPlants(c echo.Context) error {
	ctx := c.Request().Context()

	owner := requester(c, c.QueryParam("owner"))
	if owner == "" {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}

	records, err := h.backend.LoadPlantList(ctx, owner)
	if err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, records)
}

func (h *Handler) handleUploadAsset(c echo.Context) error {
	ctx := c.Request().Context()

	owner := requester(c, c.QueryParam("owner"))
	if owner == "" {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}
	src, err := file.Open()
	if err != nil {
		return h.fail(c, leaflog.ErrCodeUploadFailed)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return h.fail(c, leaflog.ErrCodeUploadFailed)
	}

	ref, err := h.assets.UploadBytes(ctx, owner, file.Filename, data)
	if err != nil {
		h.log.Warn("asset upload failed", zap.String("owner", owner), zap.Error(err))
		return h.fail(c, leaflog.ErrCodeUploadFailed)
	}
	return presenter.OK(c, echo.Map{"ref": ref})
}

func (h *Handler) handleResolveAssets(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Refs []string `json:"refs"`
	}
	if err := c.Bind(&req); err != nil || len(req.Refs) == 0 {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}

	resolved, err := h.assets.Resolve(ctx, req.Refs)
	if err != nil {
		h.log.Warn("asset resolve failed", zap.Error(err))
		return h.fail(c, leaflog.ErrCodeDownloadFailed)
	}
	return presenter.OK(c, resolved)
}

func (h *Handler) handleDeleteAssets(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Refs []string `json:"refs"`
	}
	if err := c.Bind(&req); err != nil || len(req.Refs) == 0 {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}

	if err := h.assets.Delete(ctx, req.Refs); err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, echo.Map{"deleted": len(req.Refs)})
}

func (h *Handler) handleSharedPlant(c echo.Context) error {
	ctx := c.Request().Context()

	owner := c.Param("owner")
	plantID, err := strconv.ParseInt(c.Param("plantId"), 10, 64)
	if err != nil {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}

	shared, err := h.backend.LoadSharedPlantByOwner(ctx, owner, plantID)
	if err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, shared)
}

func (h *Handler) handleAddLike(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Key        string `json:"key"`
		ImageKey   string `json:"imageKey"`
		ImageIndex *int   `json:"imageIndex"`
		ImageRef   string `json:"imageRef"`
		Nickname   string `json:"likerNickname"`
	}
	if err := c.Bind(&req); err != nil || req.Key == "" {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}

	liker, ok := middleware.RequesterID(ctx)
	if !ok {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}
	nickname := req.Nickname
	if nickname == "" {
		nickname = middleware.RequesterNickname(ctx)
	}

	imageKey := req.ImageKey
	if imageKey == "" {
		imageKey = usecase.NormalizeImageKey(req.ImageIndex, req.ImageRef)
	}

	count, created, err := h.share.AddLike(ctx, req.Key, imageKey, liker, nickname)
	if err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, echo.Map{"count": count, "created": created})
}

func (h *Handler) handleListLikes(c echo.Context) error {
	ctx := c.Request().Context()

	key := c.QueryParam("key")
	if key == "" {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}

	likes, count, err := h.share.ListLikes(ctx, key, c.QueryParam("imageKey"))
	if err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, echo.Map{"likes": likes, "count": count})
}

func (h *Handler) handleAddComment(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Key      string `json:"key"`
		ImageRef string `json:"imageRef"`
		Content  string `json:"content"`
		Nickname string `json:"authorNickname"`
	}
	if err := c.Bind(&req); err != nil || req.Key == "" {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}

	author, ok := middleware.RequesterID(ctx)
	if !ok {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}
	nickname := req.Nickname
	if nickname == "" {
		nickname = middleware.RequesterNickname(ctx)
	}

	saved, err := h.share.AddComment(ctx, req.Key, req.ImageRef, author, nickname, req.Content)
	if err != nil {
		switch err {
		case usecase.ErrEmptyComment:
			return presenter.Err(c, leaflog.ErrCodeMissingParams,
				h.locales.Resolve(h.language(c), "share.comment_empty", nil))
		case usecase.ErrCommentTooLong:
			return presenter.Err(c, leaflog.ErrCodeMissingParams,
				h.locales.Resolve(h.language(c), "share.comment_too_long", nil))
		}
		return h.failErr(c, err)
	}
	return presenter.OK(c, saved)
}

func (h *Handler) handleListComments(c echo.Context) error {
	ctx := c.Request().Context()

	key := c.QueryParam("key")
	if key == "" {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}

	comments, err := h.share.ListComments(ctx, key, c.QueryParam("imageRef"))
	if err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, comments)
}

func (h *Handler) handleGetProfile(c echo.Context) error {
	ctx := c.Request().Context()

	openID := c.Param("openId")
	if openID == "" {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}

	profile, err := h.profiles.Get(ctx, openID)
	if err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, profile)
}

func (h *Handler) handleSaveProfile(c echo.Context) error {
	ctx := c.Request().Context()

	var profile domain.UserProfile
	if err := c.Bind(&profile); err != nil {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}
	profile.OpenID = c.Param("openId")
	if profile.OpenID == "" {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}

	if err := h.backend.SaveUserProfile(ctx, profile); err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, profile)
}

func (h *Handler) handleUpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()

	openID := c.Param("openId")
	if openID == "" {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}

	var fields map[string]any
	if err := c.Bind(&fields); err != nil || len(fields) == 0 {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}

	if err := h.profiles.Update(ctx, openID, fields); err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, echo.Map{"updated": true})
}

func (h *Handler) handleNotifications(c echo.Context) error {
	ctx := c.Request().Context()

	owner, ok := middleware.RequesterID(ctx)
	if !ok {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}

	unreadOnly := c.QueryParam("unread") == "true"
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	items, err := h.notifications.List(ctx, owner, unreadOnly, limit, offset)
	if err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, items)
}

func (h *Handler) handleNotificationStats(c echo.Context) error {
	ctx := c.Request().Context()

	owner, ok := middleware.RequesterID(ctx)
	if !ok {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}

	stats, err := h.notifications.Stats(ctx, owner)
	if err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, stats)
}

func (h *Handler) handleNotificationsRead(c echo.Context) error {
	ctx := c.Request().Context()

	owner, ok := middleware.RequesterID(ctx)
	if !ok {
		return h.fail(c, leaflog.ErrCodeNoOpenID)
	}

	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.Bind(&req); err != nil {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}

	var affected int64
	var err error
	if len(req.IDs) == 0 {
		affected, err = h.notifications.MarkAllRead(ctx, owner)
	} else {
		affected, err = h.notifications.MarkReadByIDs(ctx, owner, req.IDs)
	}
	if err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, echo.Map{"marked": affected})
}

func (h *Handler) handleRecognize(c echo.Context) error {
	ctx := c.Request().Context()

	file, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, leaflog.ErrCodeMissingParams)
	}
	src, err := file.Open()
	if err != nil {
		return h.fail(c, leaflog.ErrCodeUploadFailed)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return h.fail(c, leaflog.ErrCodeUploadFailed)
	}

	result, err := h.recognition.Recognize(ctx, data)
	if err != nil {
		return h.failErr(c, err)
	}
	return presenter.OK(c, result)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type string `json:"type"`
}

// handleRealtime streams interaction events for the requester over a
// websocket. The token travels in the query string since browsers
// cannot set headers on a socket upgrade.
func (h *Handler) handleRealtime(c echo.Context) error {
	ctx := c.Request().Context()

	owner, ok := middleware.RequesterID(ctx)
	if !ok {
		token := c.QueryParam("token")
		if token == "" {
			return c.NoContent(http.StatusUnauthorized)
		}
		result, err := h.auth.AuthToken(ctx, token)
		if err != nil {
			return c.NoContent(http.StatusUnauthorized)
		}
		owner = result.OpenID
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("failed to upgrade websocket", zap.Error(err))
		return err
	}
	defer ws.Close()

	events, err := h.signal.Subscribe(ctx, owner)
	if err != nil {
		h.log.Error("failed to subscribe interactions", zap.String("owner", owner), zap.Error(err))
		return nil
	}

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						h.log.Debug("websocket closed", zap.Error(wsErr))
					}
				} else {
					h.log.Debug("websocket read failed", zap.Error(err))
				}
				return
			}

			switch req.Type {
			case "h": // heartbeat
				// do nothing
			default:
				h.log.Info("unknown socket request type", zap.String("type", req.Type))
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(event); err != nil {
				h.log.Debug("websocket write failed", zap.Error(err))
				return nil
			}
		}
	}
}
