// Package redis provides a Redis-backed delayed queue implementation.
//
// Jobs are members of a sorted set scored by their run-at time. A poll
// loop atomically claims due members with a Lua script and dispatches them
// to a bounded worker pool. Claims are at-least-once: a job lost between
// claim and execution is re-surfaced by the missed-retry sweeper, and
// duplicates are absorbed by the executor's PENDING-only claim.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/queue"
)

const defaultKey = "courier:z:queue"

// claimScript atomically claims due job IDs from the sorted set.
// KEYS[1] = queue sorted set
// ARGV[1] = current unix timestamp (score threshold)
// ARGV[2] = limit
var claimScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #ids == 0 then return {} end
for i, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
end
return ids
`)

// Config holds queue tuning knobs.
type Config struct {
	// Key is the sorted set key. Defaults to "courier:z:queue".
	Key string

	// PollInterval is how often due jobs are claimed.
	PollInterval time.Duration

	// BatchSize is the maximum jobs claimed per poll cycle.
	BatchSize int

	// Concurrency bounds parallel job execution.
	Concurrency int
}

func (c *Config) applyDefaults() {
	if c.Key == "" {
		c.Key = defaultKey
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}
}

// Queue implements queue.Queue and queue.Worker on a Redis sorted set.
type Queue struct {
	rdb    goredis.UniversalClient
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	runner queue.Runner
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Redis-backed queue using the given client.
func New(rdb goredis.UniversalClient, cfg Config, logger *slog.Logger) *Queue {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		rdb:    rdb,
		config: cfg,
		logger: logger,
	}
}

// Enqueue schedules the webhook for immediate execution.
func (q *Queue) Enqueue(ctx context.Context, whID id.ID) error {
	return q.EnqueueAt(ctx, whID, time.Now())
}

// EnqueueAt schedules the webhook for execution at the given absolute time.
func (q *Queue) EnqueueAt(ctx context.Context, whID id.ID, at time.Time) error {
	err := q.rdb.ZAdd(ctx, q.config.Key, goredis.Z{
		Score:  float64(at.UnixNano()) / 1e9,
		Member: whID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("courier/queue: enqueue %s: %w", whID, err)
	}
	return nil
}

// Bind sets the runner jobs are dispatched to. Must be called before Start.
func (q *Queue) Bind(r queue.Runner) {
	q.mu.Lock()
	q.runner = r
	q.mu.Unlock()
}

// Start begins the poll loop.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight jobs to complete.
func (q *Queue) Stop(_ context.Context) {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// pollLoop periodically claims due jobs and dispatches them to workers.
func (q *Queue) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, q.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := q.claim(ctx)
			if err != nil {
				q.logger.ErrorContext(ctx, "claim due jobs failed", "error", err)
				continue
			}

			for _, whID := range due {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				q.wg.Add(1)
				go func(whID id.ID) {
					defer q.wg.Done()
					defer func() { <-sem }()
					if err := q.runner.Execute(ctx, whID); err != nil {
						q.logger.ErrorContext(ctx, "delivery job failed", "webhook_id", whID, "error", err)
					}
				}(whID)
			}
		}
	}
}

// claim atomically removes and returns due job IDs.
func (q *Queue) claim(ctx context.Context) ([]id.ID, error) {
	nowScore := fmt.Sprintf("%f", float64(time.Now().UnixNano())/1e9)
	raw, err := claimScript.Run(ctx, q.rdb, []string{q.config.Key}, nowScore, q.config.BatchSize).StringSlice()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	ids := make([]id.ID, 0, len(raw))
	for _, s := range raw {
		whID, parseErr := id.ParseWebhookID(s)
		if parseErr != nil {
			q.logger.WarnContext(ctx, "dropping malformed job id", "raw", s, "error", parseErr)
			continue
		}
		ids = append(ids, whID)
	}
	return ids, nil
}
