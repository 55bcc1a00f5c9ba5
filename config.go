package courier

import "time"

// Config holds the configuration for a Courier instance.
type Config struct {
	// Concurrency is the number of delivery worker goroutines.
	Concurrency int

	// DeliveryTimeout is the HTTP timeout per delivery attempt.
	DeliveryTimeout time.Duration

	// MaxRetries is the maximum number of delivery rounds per webhook.
	MaxRetries int

	// Backoff defines the delay before each retry, indexed by retry count.
	// Retry counts past the end of the schedule reuse the last entry.
	Backoff []time.Duration

	// CacheTTL is the TTL for cached subscription lookups.
	CacheTTL time.Duration

	// SweepInterval is how often the sweeper scans for missed retries.
	SweepInterval time.Duration

	// RetentionWindow is how long delivery attempt records are kept.
	RetentionWindow time.Duration

	// RetentionInterval is how often the retention janitor runs.
	RetentionInterval time.Duration
}

// DefaultBackoff is the default retry delay schedule.
var DefaultBackoff = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       10,
		DeliveryTimeout:   10 * time.Second,
		MaxRetries:        5,
		Backoff:           DefaultBackoff,
		CacheTTL:          time.Hour,
		SweepInterval:     5 * time.Minute,
		RetentionWindow:   72 * time.Hour,
		RetentionInterval: 6 * time.Hour,
	}
}
