package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/leaflog/leaflog"
	"github.com/leaflog/leaflog/internal/domain"
)

// ErrEmptyComment rejects blank comment content before any network
// call is made.
var ErrEmptyComment = errors.New("comment content is empty")

// ErrCommentTooLong rejects comments over the length cap.
var ErrCommentTooLong = errors.New("comment content too long")

// ErrNoLiker is returned when the caller identity is missing.
var ErrNoLiker = errors.New("missing liker identity")

// NormalizeImageKey scopes a like to one photo: a numeric index when
// one is supplied, otherwise the stable image reference.
func NormalizeImageKey(index *int, imageRef string) string {
	if index != nil && *index >= 0 {
		return strconv.Itoa(*index)
	}
	return imageRef
}

// ShareUsecase handles likes and comments on shared plants. Remote
// writes go through the active backend; on remote failure the local
// caches keep a usable feed with no distinction of origin.
type ShareUsecase struct {
	backend Backend
	local   LocalStore
	notify  NotificationSink
	events  EventPublisher
	log     *zap.SugaredLogger
}

func NewShareUsecase(
	backend Backend,
	local LocalStore,
	notify NotificationSink,
	events EventPublisher,
	log *zap.SugaredLogger,
) *ShareUsecase {
	return &ShareUsecase{
		backend: backend,
		local:   local,
		notify:  notify,
		events:  events,
		log:     log,
	}
}

// AddLike records at most one like per (key, imageKey, liker). Liking
// twice yields the same count as liking once. A new like from someone
// other than the owner fans out a notification and a realtime event;
// neither side effect can fail the like.
func (uc *ShareUsecase) AddLike(ctx context.Context, key, imageKey, liker, nickname string) (int64, bool, error) {
	if liker == "" {
		return 0, false, ErrNoLiker
	}

	like := domain.ShareLike{
		Key:           key,
		ImageKey:      imageKey,
		LikerOpenID:   liker,
		LikerNickname: nickname,
		CreatedAt:     time.Now(),
	}

	count, created, err := uc.backend.SaveShareLike(ctx, like)
	if err != nil {
		count, created = uc.cacheLike(ctx, like)
		return count, created, nil
	}

	if created {
		uc.fanOut(ctx, domain.NotificationTypeLike, key, imageKey, liker, nickname)
	}
	return count, created, nil
}

// ListLikes returns the likes on one photo plus the authoritative
// count, falling back to the local cache on remote failure.
func (uc *ShareUsecase) ListLikes(ctx context.Context, key, imageKey string) ([]domain.ShareLike, int64, error) {
	items, count, err := uc.backend.ListShareLikes(ctx, key, imageKey)
	if err == nil {
		return items, count, nil
	}

	cached := uc.cachedLikes(ctx, key, imageKey)
	return cached, int64(len(cached)), nil
}

// AddComment appends a comment. Content is validated locally before
// any network call: empty is rejected, length is capped.
func (uc *ShareUsecase) AddComment(ctx context.Context, key, imageRef, author, nickname, content string) (*domain.ShareComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}
	if len([]rune(content)) > domain.MaxCommentLength {
		return nil, ErrCommentTooLong
	}
	if author == "" {
		return nil, ErrNoLiker
	}

	comment := domain.ShareComment{
		Key:            key,
		ImageRef:       imageRef,
		AuthorOpenID:   author,
		AuthorNickname: nickname,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	saved, err := uc.backend.SaveShareComment(ctx, comment)
	if err != nil {
		if cerr := uc.cacheComment(ctx, comment); cerr != nil {
			uc.log.Warnw("comment cache write failed", "error", cerr)
		}
		return &comment, nil
	}

	uc.fanOut(ctx, domain.NotificationTypeComment, key, imageRef, author, nickname)
	return saved, nil
}

// ListComments returns one photo's thread, newest-first, with the
// local cache as fallback.
func (uc *ShareUsecase) ListComments(ctx context.Context, key, imageRef string) ([]domain.ShareComment, error) {
	items, err := uc.backend.ListShareComments(ctx, key, imageRef)
	if err == nil {
		return items, nil
	}
	return uc.cachedComments(ctx, key, imageRef), nil
}

// fanOut delivers the interaction side effects, skipping
// self-interactions. Best-effort by contract.
func (uc *ShareUsecase) fanOut(ctx context.Context, kind, key, imageKey, actor, nickname string) {
	owner, plantID, err := leaflog.ParseShareKey(key)
	if err != nil || owner == actor {
		return
	}

	if uc.notify != nil {
		n := domain.Notification{
			OwnerOpenID:   owner,
			Type:          kind,
			PlantID:       plantID,
			ActorOpenID:   actor,
			ActorNickname: nickname,
			Time:          time.Now(),
		}
		if err := uc.notify.Notify(ctx, n); err != nil {
			uc.log.Warnw("interaction notification failed", "type", kind, "owner", owner, "error", err)
		}
	}

	if uc.events != nil {
		event := leaflog.InteractionEvent{
			Type:          kind,
			OwnerOpenID:   owner,
			PlantID:       plantID,
			ImageKey:      imageKey,
			ActorOpenID:   actor,
			ActorNickname: nickname,
			Time:          time.Now(),
		}
		if err := uc.events.PublishInteraction(ctx, owner, event); err != nil {
			uc.log.Warnw("interaction event publish failed", "type", kind, "owner", owner, "error", err)
		}
	}
}

func cacheKey(key, sub string) string {
	return key + "|" + sub
}

func (uc *ShareUsecase) cacheLike(ctx context.Context, like domain.ShareLike) (int64, bool) {
	if uc.local == nil {
		return 0, false
	}

	var cache map[string][]domain.ShareLike
	if _, err := uc.local.Get(ctx, LocalKeyLikeCache, &cache); err != nil {
		return 0, false
	}
	if cache == nil {
		cache = make(map[string][]domain.ShareLike)
	}

	k := cacheKey(like.Key, like.ImageKey)
	for _, existing := range cache[k] {
		if existing.LikerOpenID == like.LikerOpenID {
			return int64(len(cache[k])), false
		}
	}
	cache[k] = append(cache[k], like)
	if err := uc.local.Set(ctx, LocalKeyLikeCache, cache); err != nil {
		uc.log.Warnw("like cache write failed", "error", err)
	}
	return int64(len(cache[k])), true
}

func (uc *ShareUsecase) cachedLikes(ctx context.Context, key, imageKey string) []domain.ShareLike {
	if uc.local == nil {
		return nil
	}
	var cache map[string][]domain.ShareLike
	if _, err := uc.local.Get(ctx, LocalKeyLikeCache, &cache); err != nil {
		return nil
	}
	return cache[cacheKey(key, imageKey)]
}

func (uc *ShareUsecase) cacheComment(ctx context.Context, comment domain.ShareComment) error {
	if uc.local == nil {
		return nil
	}
	var cache map[string][]domain.ShareComment
	if _, err := uc.local.Get(ctx, LocalKeyCommentCache, &cache); err != nil {
		return err
	}
	if cache == nil {
		cache = make(map[string][]domain.ShareComment)
	}
	k := cacheKey(comment.Key, comment.ImageRef)
	cache[k] = append([]domain.ShareComment{comment}, cache[k]...)
	return uc.local.Set(ctx, LocalKeyCommentCache, cache)
}

func (uc *ShareUsecase) cachedComments(ctx context.Context, key, imageRef string) []domain.ShareComment {
	if uc.local == nil {
		return nil
	}
	var cache map[string][]domain.ShareComment
	if _, err := uc.local.Get(ctx, LocalKeyCommentCache, &cache); err != nil {
		return nil
	}
	return cache[cacheKey(key, imageRef)]
}
