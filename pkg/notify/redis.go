package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/wBanano/wban-backend/pkg/store"
)

// channel carries operation outcomes to the frontend gateway
const channel = "events:operations"

// RedisSink publishes events on a redis pub/sub channel
type RedisSink struct {
	store  *store.Store
	logger *zap.Logger
}

func NewRedisSink(s *store.Store, logger *zap.Logger) *RedisSink {
	return &RedisSink{store: s, logger: logger}
}

func (s *RedisSink) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to encode event", zap.Error(err))
		return
	}
	if err := s.store.Client().Publish(ctx, channel, payload).Err(); err != nil {
		s.logger.Warn("Failed to publish event", zap.Error(err))
	}
}
