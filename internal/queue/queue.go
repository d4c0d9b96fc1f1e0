// Package queue defines the external task queue contract: function
// registration by name, JSON-serialized arguments, and a typed retry
// signal carrying a defer duration. The Redis-backed implementation is
// arq-shaped; it removes a task when it is consumed and does not
// redeliver it.
package queue

import (
	"context"
	"time"
)

// Names of the two background functions the worker registers.
const (
	FuncIngestMaterial    = "arq_ingest_material"
	FuncGenerateStructure = "arq_generate_structure"
)

// Retry is returned by a handler to signal the queue should re-deliver the
// task after DeferSeconds instead of treating it as failed. It does not
// consume one of the job's max_tries.
type Retry struct {
	DeferSeconds int64
}

func (r *Retry) Error() string { return "deferred" }

// Envelope is one queued task invocation.
type Envelope struct {
	FuncName  string
	JobID     string
	Payload   []byte // JSON
	EnqueuedAt time.Time
}

// Queue is the external task queue contract used by the enqueue helpers.
type Queue interface {
	// Submit enqueues funcName with a JSON payload, returning a queue-side
	// identifier (the "arq_job_id").
	Submit(ctx context.Context, funcName, jobID string, payload []byte) (queueJobID string, err error)

	// Defer re-queues an already-submitted task to run after delay.
	Defer(ctx context.Context, funcName, queueJobID string, payload []byte, delay time.Duration) error

	// Consume blocks until a task for funcName is available, returning it
	// along with an ack function the caller must invoke on success.
	Consume(ctx context.Context, funcName string) (Envelope, func() error, error)
}
