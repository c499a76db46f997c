package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/wBanano/wban-backend/pkg/app/errors"
)

const pollInterval = 250 * time.Millisecond

// WorkerConfig bounds job execution
type WorkerConfig struct {
	// Concurrency is the number of jobs processed in parallel. The deposit
	// and swap pipelines run with 1 so ledger mutations for one scan pass
	// apply in order.
	Concurrency int
	// Attempts is the number of executions before a job fails terminally
	Attempts int
	// Backoff is the base delay of the exponential retry schedule
	Backoff time.Duration
	// JobTimeout cancels a handler that runs too long
	JobTimeout time.Duration
}

// Worker drains the queue, dispatching each job to the handler registered
// for its name.
type Worker struct {
	queue     *Queue
	cfg       WorkerConfig
	logger    *zap.Logger
	handlers  map[string]Handler
	completed []CompletionListener
	failed    []FailureListener
	mu        sync.RWMutex
}

func NewWorker(queue *Queue, cfg WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	return &Worker{
		queue:    queue,
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a job name. Enqueued jobs with no handler
// fail terminally.
func (w *Worker) Register(name string, handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = handler
}

// OnCompleted registers a listener called after each successful job
func (w *Worker) OnCompleted(l CompletionListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.completed = append(w.completed, l)
}

// OnFailed registers a listener called when a job fails terminally
func (w *Worker) OnFailed(l FailureListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failed = append(w.failed, l)
}

// Run processes jobs until the context is cancelled
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.recover(ctx)
			w.drain(ctx)
		}
	}
}

// recover redelivers jobs claimed by workers that died mid-flight
func (w *Worker) recover(ctx context.Context) {
	requeued, err := w.queue.requeueStale(ctx)
	if err != nil {
		w.logger.Error("Failed to recover orphaned jobs", zap.Error(err))
		return
	}
	if requeued > 0 {
		w.logger.Warn("Requeued jobs orphaned by a dead worker", zap.Int64("count", requeued))
	}
}

// drain claims and runs due jobs until the ready set is empty
func (w *Worker) drain(ctx context.Context) {
	for {
		job, err := w.queue.pop(ctx)
		if err != nil {
			w.logger.Error("Failed to claim job", zap.Error(err))
			return
		}
		if job == nil {
			return
		}
		w.process(ctx, *job)
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	w.mu.RLock()
	handler, ok := w.handlers[job.Name]
	w.mu.RUnlock()
	if !ok {
		w.terminate(ctx, job, fmt.Errorf("no handler registered for %q", job.Name))
		return
	}

	result, err := w.invoke(ctx, handler, job)
	if err == nil {
		if cerr := w.queue.complete(ctx, job); cerr != nil {
			w.logger.Error("Failed to finalize job", zap.String("job", job.ID), zap.Error(cerr))
		}
		w.logger.Info("Job completed",
			zap.String("name", job.Name),
			zap.String("job", job.ID),
			zap.String("result", result))
		w.mu.RLock()
		listeners := w.completed
		w.mu.RUnlock()
		for _, l := range listeners {
			l(job, result)
		}
		return
	}

	// Recoverable conditions wait for the world to change instead of
	// burning attempts.
	if apperrors.IsRecoverable(err) {
		delay := w.cfg.Backoff
		if delay == 0 {
			delay = time.Second
		}
		w.logger.Warn("Job hit a recoverable condition, re-delaying",
			zap.String("name", job.Name),
			zap.String("job", job.ID),
			zap.Duration("delay", delay),
			zap.Error(err))
		if perr := w.queue.push(ctx, job, delay); perr != nil {
			w.logger.Error("Failed to re-delay job", zap.String("job", job.ID), zap.Error(perr))
		}
		return
	}

	job.Attempt++
	if job.Attempt >= w.cfg.Attempts {
		w.terminate(ctx, job, err)
		return
	}

	// exponential backoff: base, 2*base, 4*base, ...
	delay := w.cfg.Backoff << (job.Attempt - 1)
	w.logger.Warn("Job failed, scheduling retry",
		zap.String("name", job.Name),
		zap.String("job", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err))
	if perr := w.queue.push(ctx, job, delay); perr != nil {
		w.logger.Error("Failed to schedule retry", zap.String("job", job.ID), zap.Error(perr))
	}
}

func (w *Worker) invoke(ctx context.Context, handler Handler, job Job) (result string, err error) {
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (w *Worker) terminate(ctx context.Context, job Job, cause error) {
	w.logger.Error("Job failed terminally",
		zap.String("name", job.Name),
		zap.String("job", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Error(cause))
	if err := w.queue.fail(ctx, job, cause); err != nil {
		w.logger.Error("Failed to park job", zap.String("job", job.ID), zap.Error(err))
	}
	w.mu.RLock()
	listeners := w.failed
	w.mu.RUnlock()
	for _, l := range listeners {
		l(job, cause)
	}
}
