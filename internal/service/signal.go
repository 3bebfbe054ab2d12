package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/caselaw-dupcheck"
)

const EventChannel = "dupcheck:events"

// SignalService fans cycle events out to every process through redis pub/sub.
type SignalService struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewSignalService(redisClient *redis.Client, logger *slog.Logger) *SignalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignalService{
		rdb:    redisClient,
		logger: logger.With(slog.String("module", "signal")),
	}
}

func (s *SignalService) Publish(ctx context.Context, event dupcheck.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.rdb.Publish(ctx, EventChannel, jsonstr).Err()
}

// Realtime forwards events to output until ctx is done.
func (s *SignalService) Realtime(ctx context.Context, output chan<- dupcheck.Event) error {
	pubsub := s.rdb.Subscribe(ctx, EventChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event dupcheck.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.WarnContext(ctx, "malformed event on channel", slog.String("error", err.Error()))
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
