package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/leaflog/leaflog"
)

const interactionChannelPrefix = "interaction:"

// SignalService fans interaction events out over redis pubsub. Each
// owner has their own channel so the realtime socket only streams what
// its requester cares about.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) PublishInteraction(ctx context.Context, ownerOpenID string, event any) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, interactionChannelPrefix+ownerOpenID, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Subscribe streams interaction events for one owner until the context
// is cancelled. Malformed payloads are skipped.
func (s *SignalService) Subscribe(ctx context.Context, ownerOpenID string) (<-chan leaflog.InteractionEvent, error) {
	pubsub := s.rdb.Subscribe(ctx, interactionChannelPrefix+ownerOpenID)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	events := make(chan leaflog.InteractionEvent)
	go func() {
		defer close(events)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var event leaflog.InteractionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}
