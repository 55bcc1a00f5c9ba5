// Package queue defines the job hand-off contract between the engine and
// the scheduling substrate that runs delivery work.
//
// The engine only states what must run and when; how jobs are executed is
// the queue implementation's concern. At-least-once job delivery is
// assumed: duplicates are absorbed by the executor's PENDING-only claim.
package queue

import (
	"context"
	"time"

	"github.com/xraph/courier/id"
)

// Queue accepts delivery jobs for immediate or deferred execution.
type Queue interface {
	// Enqueue requests that the webhook be executed as soon as possible.
	Enqueue(ctx context.Context, whID id.ID) error

	// EnqueueAt requests that the webhook be executed at the given absolute
	// time. Times in the past behave like Enqueue.
	EnqueueAt(ctx context.Context, whID id.ID, at time.Time) error
}

// Runner executes one delivery job. Implemented by the delivery executor.
type Runner interface {
	Execute(ctx context.Context, whID id.ID) error
}

// Worker is implemented by in-process queues that drive a Runner
// themselves. External substrates invoke the executor on their own and do
// not implement it.
type Worker interface {
	// Bind sets the runner jobs are dispatched to. Must be called before Start.
	Bind(r Runner)

	// Start begins dispatching due jobs.
	Start(ctx context.Context)

	// Stop halts dispatch and waits for in-flight jobs to complete.
	Stop(ctx context.Context)
}
