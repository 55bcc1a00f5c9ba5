package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/queue/memory"
)

// recorder collects executed webhook IDs.
type recorder struct {
	mu   sync.Mutex
	runs []id.ID
	done chan struct{} // closed-ish signal via buffered channel
}

func newRecorder(capacity int) *recorder {
	return &recorder{done: make(chan struct{}, capacity)}
}

func (r *recorder) Execute(_ context.Context, whID id.ID) error {
	r.mu.Lock()
	r.runs = append(r.runs, whID)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func waitN(t *testing.T, r *recorder, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %d executions, saw %d", n, r.count())
		}
	}
}

func TestEnqueueDispatchesImmediately(t *testing.T) {
	q := memory.New(2, nil)
	r := newRecorder(8)
	q.Bind(r)
	q.Start(context.Background())
	defer q.Stop(context.Background())

	whID := id.NewWebhookID()
	if err := q.Enqueue(context.Background(), whID); err != nil {
		t.Fatal(err)
	}

	waitN(t, r, 1)
	if r.runs[0] != whID {
		t.Fatalf("wrong job executed: %s", r.runs[0])
	}
}

func TestEnqueueAtHonorsDelay(t *testing.T) {
	q := memory.New(2, nil)
	r := newRecorder(8)
	q.Bind(r)
	q.Start(context.Background())
	defer q.Stop(context.Background())

	start := time.Now()
	if err := q.EnqueueAt(context.Background(), id.NewWebhookID(), start.Add(100*time.Millisecond)); err != nil {
		t.Fatal(err)
	}

	waitN(t, r, 1)
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("job fired after %v, before its scheduled time", elapsed)
	}
}

func TestBacklogBeforeStart(t *testing.T) {
	q := memory.New(2, nil)
	r := newRecorder(8)
	q.Bind(r)

	// Accepted while not yet started.
	if err := q.Enqueue(context.Background(), id.NewWebhookID()); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(context.Background(), id.NewWebhookID()); err != nil {
		t.Fatal(err)
	}

	q.Start(context.Background())
	defer q.Stop(context.Background())

	waitN(t, r, 2)
}

func TestStopRejectsNewJobs(t *testing.T) {
	q := memory.New(2, nil)
	r := newRecorder(8)
	q.Bind(r)
	q.Start(context.Background())
	q.Stop(context.Background())

	if err := q.Enqueue(context.Background(), id.NewWebhookID()); err != memory.ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestStopCancelsPendingTimers(t *testing.T) {
	q := memory.New(2, nil)
	r := newRecorder(8)
	q.Bind(r)
	q.Start(context.Background())

	if err := q.EnqueueAt(context.Background(), id.NewWebhookID(), time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	q.Stop(context.Background())

	if r.count() != 0 {
		t.Fatalf("job scheduled an hour out ran anyway: %d executions", r.count())
	}
}
