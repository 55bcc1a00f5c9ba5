package deliver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/courier/queue"
	"github.com/xraph/courier/webhook"
)

// Sweeper is the safety net under the queue. A retry whose scheduled job
// was lost (process restart, queue hiccup, crash between update and
// enqueue) still has a durable PENDING row with a due next_retry_at; the
// sweeper periodically finds those rows and re-enqueues them.
//
// Re-enqueueing an already scheduled webhook is harmless: the executor's
// PENDING-only claim absorbs the duplicate.
type Sweeper struct {
	store      webhook.Store
	queue      queue.Queue
	interval   time.Duration
	maxRetries int
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a missed-retry sweeper.
func NewSweeper(store webhook.Store, q queue.Queue, interval time.Duration, maxRetries int, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:      store,
		queue:      q,
		interval:   interval,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Start begins the periodic sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Sweep(ctx); err != nil {
					s.logger.ErrorContext(ctx, "sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for it to exit.
func (s *Sweeper) Stop(_ context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Sweep runs one pass: every PENDING webhook whose next_retry_at has
// passed and whose retry budget remains is handed back to the queue for
// immediate execution.
func (s *Sweeper) Sweep(ctx context.Context) error {
	due, err := s.store.ListDueRetries(ctx, time.Now().UTC(), s.maxRetries)
	if err != nil {
		return err
	}

	for _, wh := range due {
		s.logger.InfoContext(ctx, "re-enqueueing missed retry",
			"webhook_id", wh.ID, "retry_count", wh.RetryCount, "next_retry_at", wh.NextRetryAt)
		if err := s.queue.Enqueue(ctx, wh.ID); err != nil {
			// Leave the row as-is; the next sweep will see it again.
			s.logger.ErrorContext(ctx, "re-enqueue missed retry failed",
				"webhook_id", wh.ID, "error", err)
		}
	}
	return nil
}
