// Package notify fans out operation outcomes to interested parties, such
// as the frontend event feed.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Event is one finished operation
type Event struct {
	// Kind is the operation name, e.g. "banano-deposit"
	Kind string `json:"kind"`
	// Wallet identifies the affected user
	Wallet string `json:"wallet"`
	// Outcome is "completed" or "failed"
	Outcome string `json:"outcome"`
	// Detail carries the human-readable result or error
	Detail string `json:"detail"`
}

// Sink consumes events. Implementations must not block the caller for long.
type Sink interface {
	Publish(ctx context.Context, event Event)
}

// LogSink writes events to the application log
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, event Event) {
	s.logger.Info("Operation finished",
		zap.String("kind", event.Kind),
		zap.String("wallet", event.Wallet),
		zap.String("outcome", event.Outcome),
		zap.String("detail", event.Detail))
}

// Multi fans one event out to several sinks
type Multi []Sink

func (m Multi) Publish(ctx context.Context, event Event) {
	for _, sink := range m {
		sink.Publish(ctx, event)
	}
}
