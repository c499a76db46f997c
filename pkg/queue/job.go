package queue

import (
	"context"
	"encoding/json"
)

// Job is one unit of work. The ID doubles as the deduplication key: two
// enqueues with the same ID collapse into one execution.
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt int64           `json:"enqueued_at"`
	// Error is the failure reason, set only on jobs parked in the failed set
	Error string `json:"error,omitempty"`
}

// Decode unmarshals the job payload into v
func (j Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// Handler processes one job and returns a human-readable result for the
// completion listeners.
type Handler func(ctx context.Context, job Job) (string, error)

// CompletionListener is notified after a job handler returns without error
type CompletionListener func(job Job, result string)

// FailureListener is notified when a job has exhausted its attempts
type FailureListener func(job Job, err error)
