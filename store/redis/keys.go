package redis

// Key prefixes for primary entity storage.
const (
	prefixSubscription = "courier:sub:" // JSON blob
	prefixWebhook      = "courier:wh:"  // hash, field-level access for the claim CAS
	prefixAttempt      = "courier:att:" // JSON blob
)

// Key prefixes for sorted set indexes.
const (
	zSubscriptionAll = "courier:z:sub:all"
	zWebhookSub      = "courier:z:wh:sub:" // + subscription ID, scored by created_at
	zWebhookDue      = "courier:z:wh:due"  // scored by next_retry_at
	zAttemptWebhook  = "courier:z:att:wh:" // + webhook ID, scored by attempt number
	zAttemptTime     = "courier:z:att:time"
)

// Key prefix for status membership sets.
const sWebhookStatus = "courier:s:wh:status:" // + status

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// statusSetKey returns the membership set key for a webhook status.
func statusSetKey(status string) string {
	return sWebhookStatus + status
}
