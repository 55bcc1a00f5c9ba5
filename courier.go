package courier

import (
	"context"
	"log/slog"

	"github.com/xraph/courier/cache"
	cachememory "github.com/xraph/courier/cache/memory"
	"github.com/xraph/courier/deliver"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/ingest"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/queue"
	queuememory "github.com/xraph/courier/queue/memory"
	"github.com/xraph/courier/store"
	"github.com/xraph/courier/subscription"
	"github.com/xraph/courier/webhook"
)

// Courier is the root webhook delivery engine.
type Courier struct {
	config  Config
	store   store.Store
	cache   cache.Cache
	queue   queue.Queue
	metrics *observability.Metrics
	tracer  *observability.Tracer
	logger  *slog.Logger

	resolver *subscription.Resolver
	subSvc   *subscription.Service
	gate     *ingest.Gate
	executor *deliver.Executor
	sweeper  *deliver.Sweeper
	janitor  *deliver.Janitor

	worker queue.Worker
}

// Option configures a Courier instance.
type Option func(*Courier) error

// New creates a new Courier with the given options. A store is required;
// the cache and queue default to in-process implementations.
func New(opts ...Option) (*Courier, error) {
	c := &Courier{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.store == nil {
		return nil, ErrNoStore
	}
	if c.cache == nil {
		c.cache = cachememory.New()
	}
	if c.queue == nil {
		c.queue = queuememory.New(c.config.Concurrency, c.logger)
	}
	c.wireServices()
	return c, nil
}

// wireServices initializes the internal services after options have been applied.
func (c *Courier) wireServices() {
	c.resolver = subscription.NewResolver(c.store, c.cache, c.config.CacheTTL, c.logger)
	c.subSvc = subscription.NewService(c.store, c.resolver, c.logger)

	c.gate = ingest.NewGate(c.resolver, c.store, c.queue, c.metrics, c.logger)

	sender := deliver.NewSender(c.config.DeliveryTimeout)
	scheduler := deliver.NewScheduler(c.store, c.queue, c.config.MaxRetries, c.config.Backoff, c.metrics, c.logger)
	c.executor = deliver.NewExecutor(c.store, c.resolver, sender, scheduler, c.config.MaxRetries, c.metrics, c.tracer, c.logger)

	c.sweeper = deliver.NewSweeper(c.store, c.queue, c.config.SweepInterval, c.config.MaxRetries, c.logger)
	c.janitor = deliver.NewJanitor(c.store, c.config.RetentionInterval, c.config.RetentionWindow, c.metrics, c.logger)

	// In-process queues dispatch back into the executor. Queues consumed by
	// an external process expose the same runner via Runner().
	if w, ok := c.queue.(queue.Worker); ok {
		w.Bind(c.executor)
		c.worker = w
	}
}

// Start begins background processing: the queue worker, the missed-retry
// sweeper and the retention janitor.
func (c *Courier) Start(ctx context.Context) {
	if c.worker != nil {
		c.worker.Start(ctx)
	}
	c.sweeper.Start(ctx)
	c.janitor.Start(ctx)
}

// Stop gracefully shuts down background processing, waiting for in-flight
// deliveries to complete.
func (c *Courier) Stop(ctx context.Context) {
	c.sweeper.Stop(ctx)
	c.janitor.Stop(ctx)
	if c.worker != nil {
		c.worker.Stop(ctx)
	}
}

// Ingest admits an event for a subscription and returns the new webhook's
// ID. Delivery happens asynchronously; progress is observable through
// Webhook and Attempts.
func (c *Courier) Ingest(ctx context.Context, subID id.ID, eventType string, payload []byte, signatureHeader string) (id.ID, error) {
	return c.gate.Ingest(ctx, subID, eventType, payload, signatureHeader)
}

// Webhook returns the current state of a webhook.
func (c *Courier) Webhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	return c.store.GetWebhook(ctx, whID)
}

// Webhooks returns the most recent webhooks for a subscription.
func (c *Courier) Webhooks(ctx context.Context, subID id.ID, limit int) ([]*webhook.Webhook, error) {
	return c.store.ListBySubscription(ctx, subID, limit)
}

// Attempts returns the delivery attempt ledger for a webhook.
func (c *Courier) Attempts(ctx context.Context, whID id.ID) ([]*webhook.DeliveryAttempt, error) {
	return c.store.ListAttempts(ctx, whID)
}

// Subscriptions returns the subscription management service.
func (c *Courier) Subscriptions() *subscription.Service {
	return c.subSvc
}

// Store returns the underlying store.
func (c *Courier) Store() store.Store {
	return c.store
}

// Runner returns the delivery executor as a queue.Runner, for wiring into
// queue substrates consumed outside this process.
func (c *Courier) Runner() queue.Runner {
	return c.executor
}
