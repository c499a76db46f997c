package queue

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler triggers recurring enqueues on cron schedules. Job IDs carry the
// firing time, so a schedule firing while a previous run is still enqueued
// produces a distinct job while true duplicates still collapse.
type Scheduler struct {
	cron   *cron.Cron
	queue  *Queue
	logger *zap.Logger
}

func NewScheduler(queue *Queue, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		queue:  queue,
		logger: logger,
	}
}

// Repeat enqueues a job with the given name every time the cron spec fires
func (s *Scheduler) Repeat(spec, name string, payload any) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		id := name + "-" + time.Now().UTC().Format("2006-01-02T15:04:05")
		if _, err := s.queue.Enqueue(ctx, name, id, payload); err != nil {
			s.logger.Error("Failed to enqueue scheduled job",
				zap.String("name", name),
				zap.Error(err))
		}
	})
	return err
}

// RepeatFunc runs fn directly on the cron schedule, outside the queue
func (s *Scheduler) RepeatFunc(spec string, fn func()) error {
	_, err := s.cron.AddFunc(spec, fn)
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
