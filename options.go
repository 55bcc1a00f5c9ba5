package courier

import (
	"log/slog"
	"time"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/courier/cache"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/queue"
	"github.com/xraph/courier/store"
)

// WithStore sets the persistence backend for the Courier instance.
func WithStore(s store.Store) Option {
	return func(c *Courier) error {
		c.store = s
		return nil
	}
}

// WithCache sets the cache used for subscription lookups.
func WithCache(ca cache.Cache) Option {
	return func(c *Courier) error {
		c.cache = ca
		return nil
	}
}

// WithQueue sets the delivery queue substrate.
func WithQueue(q queue.Queue) Option {
	return func(c *Courier) error {
		c.queue = q
		return nil
	}
}

// WithLogger sets the structured logger for the Courier instance.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Courier) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metric instrumentation using the given factory.
func WithMetrics(factory gu.MetricFactory) Option {
	return func(c *Courier) error {
		c.metrics = observability.NewMetrics(factory)
		return nil
	}
}

// WithTracing enables OpenTelemetry spans around delivery attempts.
func WithTracing() Option {
	return func(c *Courier) error {
		c.tracer = observability.NewTracer()
		return nil
	}
}

// WithConcurrency sets the number of delivery worker goroutines.
func WithConcurrency(n int) Option {
	return func(c *Courier) error {
		c.config.Concurrency = n
		return nil
	}
}

// WithDeliveryTimeout sets the HTTP timeout per delivery attempt.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.DeliveryTimeout = d
		return nil
	}
}

// WithMaxRetries sets the maximum number of delivery rounds per webhook.
func WithMaxRetries(n int) Option {
	return func(c *Courier) error {
		c.config.MaxRetries = n
		return nil
	}
}

// WithBackoff sets the retry delay schedule.
func WithBackoff(schedule []time.Duration) Option {
	return func(c *Courier) error {
		c.config.Backoff = schedule
		return nil
	}
}

// WithCacheTTL sets the TTL for cached subscription lookups.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.CacheTTL = d
		return nil
	}
}

// WithSweepInterval sets how often the sweeper scans for missed retries.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.SweepInterval = d
		return nil
	}
}

// WithRetention sets the attempt retention window and how often it is enforced.
func WithRetention(window, interval time.Duration) Option {
	return func(c *Courier) error {
		c.config.RetentionWindow = window
		c.config.RetentionInterval = interval
		return nil
	}
}
