package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wBanano/wban-backend/pkg/store"
)

const (
	keyJobIDs     = "queue:ids"
	keyJobData    = "queue:jobs:"
	keyReady      = "queue:ready"
	keyProcessing = "queue:processing"
	keyFailed     = "queue:failed"

	// defaultVisibility is how long a claimed job may run before a worker
	// restart hands it to someone else.
	defaultVisibility = 2 * time.Minute
)

// popScript moves the oldest due job from the ready set to the processing
// set, scored by its visibility deadline. Claimed jobs are never deleted:
// a worker that dies mid-job leaves an entry that requeueScript recovers.
var popScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
if #due == 0 then
	return false
end
redis.call("ZREM", KEYS[1], due[1])
redis.call("ZADD", KEYS[2], ARGV[2], due[1])
return due[1]
`)

// requeueScript returns jobs whose visibility deadline has passed to the
// ready set, making them immediately due again.
var requeueScript = redis.NewScript(`
local stale = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
for _, id in ipairs(stale) do
	redis.call("ZREM", KEYS[1], id)
	redis.call("ZADD", KEYS[2], ARGV[1], id)
end
return #stale
`)

// Queue is a durable named-job queue backed by redis. Jobs survive process
// restarts: the ready set and job bodies live server-side, a claimed job is
// parked in a processing set until it completes or fails terminally, and
// jobs orphaned by a dead worker are requeued once their visibility deadline
// passes.
type Queue struct {
	store      *store.Store
	logger     *zap.Logger
	now        func() time.Time
	visibility time.Duration
}

func NewQueue(s *store.Store, logger *zap.Logger) *Queue {
	return &Queue{store: s, logger: logger, now: time.Now, visibility: defaultVisibility}
}

// Enqueue schedules a job for immediate execution. Returns false when a job
// with the same ID was enqueued before and the call was a no-op.
func (q *Queue) Enqueue(ctx context.Context, name, id string, payload any) (bool, error) {
	return q.EnqueueDelayed(ctx, name, id, payload, 0)
}

// EnqueueDelayed schedules a job to become due after the given delay
func (q *Queue) EnqueueDelayed(ctx context.Context, name, id string, payload any, delay time.Duration) (bool, error) {
	added, err := q.store.Client().SAdd(ctx, keyJobIDs, id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to register job id: %w", err)
	}
	if added == 0 {
		q.logger.Debug("Job already enqueued, skipping", zap.String("job", id))
		return false, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to encode job payload: %w", err)
	}
	job := Job{
		ID:         id,
		Name:       name,
		Payload:    body,
		EnqueuedAt: q.now().UnixMilli(),
	}
	if err := q.push(ctx, job, delay); err != nil {
		return false, err
	}
	q.logger.Info("Enqueued job",
		zap.String("name", name),
		zap.String("job", id),
		zap.Duration("delay", delay))
	return true, nil
}

// push writes the job body and its due time. Used both for fresh jobs and
// for retries, which pass an updated Attempt counter.
func (q *Queue) push(ctx context.Context, job Job, delay time.Duration) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	due := q.now().Add(delay).UnixMilli()
	return q.store.Atomically(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyJobData+job.ID, string(encoded), 0)
		pipe.ZRem(ctx, keyProcessing, job.ID)
		pipe.ZAdd(ctx, keyReady, redis.Z{Score: float64(due), Member: job.ID})
		return nil
	})
}

// pop claims the next due job, or returns (nil, nil) when none is due
func (q *Queue) pop(ctx context.Context) (*Job, error) {
	now := q.now().UnixMilli()
	deadline := q.now().Add(q.visibility).UnixMilli()
	id, err := popScript.Run(ctx, q.store.Client(), []string{keyReady, keyProcessing}, now, deadline).Text()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	raw, err := q.store.Get(ctx, keyJobData+id)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		q.logger.Warn("Claimed job has no body, dropping", zap.String("job", id))
		_ = q.store.Atomically(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, keyProcessing, id)
			pipe.SRem(ctx, keyJobIDs, id)
			return nil
		})
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("malformed job %s: %w", id, err)
	}
	return &job, nil
}

// complete removes all traces of a finished job
func (q *Queue) complete(ctx context.Context, job Job) error {
	return q.store.Atomically(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyJobData+job.ID)
		pipe.ZRem(ctx, keyProcessing, job.ID)
		pipe.SRem(ctx, keyJobIDs, job.ID)
		return nil
	})
}

// fail parks a terminally failed job, with its failure reason, in the failed
// set for inspection. The ID stays registered so the same job cannot be
// enqueued again.
func (q *Queue) fail(ctx context.Context, job Job, cause error) error {
	if cause != nil {
		job.Error = cause.Error()
	}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.store.Atomically(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyJobData+job.ID)
		pipe.ZRem(ctx, keyProcessing, job.ID)
		pipe.ZAdd(ctx, keyFailed, redis.Z{
			Score:  float64(q.now().UnixMilli()),
			Member: string(encoded),
		})
		return nil
	})
}

// requeueStale returns claimed jobs whose visibility deadline has passed to
// the ready set. Runs on every worker tick so jobs orphaned by a crashed
// worker are redelivered.
func (q *Queue) requeueStale(ctx context.Context) (int64, error) {
	now := q.now().UnixMilli()
	requeued, err := requeueScript.Run(ctx, q.store.Client(), []string{keyProcessing, keyReady}, now).Int64()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("failed to requeue stale jobs: %w", err)
	}
	return requeued, nil
}

// FailedJobs returns the most recent terminally failed jobs
func (q *Queue) FailedJobs(ctx context.Context, count int64) ([]Job, error) {
	members, err := q.store.LatestScored(ctx, keyFailed, count)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(members))
	for _, member := range members {
		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
