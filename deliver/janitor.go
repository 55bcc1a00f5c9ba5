package deliver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/webhook"
)

// Janitor enforces the retention window on the attempt ledger. Webhook
// rows are never touched; only attempt records older than the window are
// deleted. Runs are idempotent, so overlapping or repeated passes are safe.
type Janitor struct {
	store     webhook.Store
	interval  time.Duration
	retention time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a retention janitor that deletes attempts older than
// retention, checking every interval.
func NewJanitor(store webhook.Store, interval, retention time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:     store,
		interval:  interval,
		retention: retention,
		metrics:   metrics,
		logger:    logger,
	}
}

// Start begins the periodic cleanup loop.
func (j *Janitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := j.Clean(ctx); err != nil {
					j.logger.ErrorContext(ctx, "retention cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the cleanup loop and waits for it to exit.
func (j *Janitor) Stop(_ context.Context) {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

// Clean runs one retention pass and returns the number of attempts deleted.
func (j *Janitor) Clean(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-j.retention)

	deleted, err := j.store.DeleteAttemptsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		if j.metrics != nil {
			j.metrics.AttemptsPurgedTotal.Add(float64(deleted))
		}
		j.logger.InfoContext(ctx, "purged old delivery attempts",
			"deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
