package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leaflog/leaflog"
	"github.com/leaflog/leaflog/internal/domain"
)

// FollowUsecase keeps the viewer's local follow list of other users'
// shared plants. The list lives on-device only; lastStatus and thumb
// are refreshed opportunistically on each feed view.
type FollowUsecase struct {
	backend Backend
	local   LocalStore
	log     *zap.SugaredLogger
}

func NewFollowUsecase(backend Backend, local LocalStore, log *zap.SugaredLogger) *FollowUsecase {
	return &FollowUsecase{backend: backend, local: local, log: log}
}

// Follow adds a shared plant to the follow list. Following an already
// followed plant updates its cached fields in place.
func (uc *FollowUsecase) Follow(ctx context.Context, card domain.FollowCard) error {
	if card.Key == "" {
		card.Key = leaflog.ShareKey(card.OwnerOpenID, card.PlantID)
	}
	if card.FollowedAt.IsZero() {
		card.FollowedAt = time.Now()
	}

	list, err := uc.list(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].Key == card.Key {
			card.FollowedAt = list[i].FollowedAt
			list[i] = card
			return uc.local.Set(ctx, LocalKeyFollowList, list)
		}
	}
	list = append(list, card)
	return uc.local.Set(ctx, LocalKeyFollowList, list)
}

// Unfollow removes a card by key.
func (uc *FollowUsecase) Unfollow(ctx context.Context, key string) error {
	list, err := uc.list(ctx)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, card := range list {
		if card.Key != key {
			kept = append(kept, card)
		}
	}
	return uc.local.Set(ctx, LocalKeyFollowList, kept)
}

// Feed returns the follow list, refreshing each card's last known
// status and thumbnail from the shared record. Refresh failures keep
// the stale card; the feed never fails on a bad network.
func (uc *FollowUsecase) Feed(ctx context.Context) ([]domain.FollowCard, error) {
	list, err := uc.list(ctx)
	if err != nil {
		return nil, err
	}

	changed := false
	for i := range list {
		shared, err := uc.backend.LoadSharedPlantByOwner(ctx, list[i].OwnerOpenID, list[i].PlantID)
		if err != nil {
			uc.log.Debugw("follow card refresh failed", "key", list[i].Key, "error", err)
			continue
		}
		if shared.LastStatus != "" && shared.LastStatus != list[i].LastStatus {
			list[i].LastStatus = shared.LastStatus
			changed = true
		}
		if len(shared.ImageRefs) > 0 && shared.ImageRefs[0] != list[i].Thumb {
			list[i].Thumb = shared.ImageRefs[0]
			changed = true
		}
		if shared.Name != "" && shared.Name != list[i].Name {
			list[i].Name = shared.Name
			changed = true
		}
	}

	if changed {
		if err := uc.local.Set(ctx, LocalKeyFollowList, list); err != nil {
			uc.log.Warnw("follow list write failed", "error", err)
		}
	}
	return list, nil
}

func (uc *FollowUsecase) list(ctx context.Context) ([]domain.FollowCard, error) {
	var list []domain.FollowCard
	if _, err := uc.local.Get(ctx, LocalKeyFollowList, &list); err != nil {
		return nil, err
	}
	return list, nil
}
