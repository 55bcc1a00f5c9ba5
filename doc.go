// Package courier provides an embeddable webhook delivery engine for Go.
//
// Courier is a library, not a service. Import it into your application to
// get at-least-once HTTP delivery of event payloads to subscriber
// endpoints, with HMAC-SHA256 origin proof, persistent delivery state, a
// bounded retry schedule, and an append-only attempt ledger.
//
// Key pieces:
//   - Subscriptions name a target URL, an optional signing secret and an
//     optional event type allow-list.
//   - Ingest admits an event synchronously and creates a PENDING webhook;
//     everything after that is asynchronous.
//   - The executor claims PENDING webhooks with an atomic compare-and-set,
//     so duplicate queue jobs collapse into no-ops.
//   - Failed attempts are retried on a saturating backoff schedule until
//     the retry budget is spent, then the webhook is FAILED for good.
//   - A sweeper rescues retries whose scheduled wake-up was lost, and a
//     janitor prunes attempt records past the retention window.
//
// Quick start:
//
//	c, err := courier.New(
//	    courier.WithStore(memory.New()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.Start(ctx)
//	defer c.Stop(ctx)
//
//	sub, _ := c.Subscriptions().Create(ctx, subscription.Input{
//	    TargetURL: "https://example.com/hooks",
//	    Secret:    signature.GenerateSecret(),
//	})
//
//	whID, _ := c.Ingest(ctx, sub.ID, "invoice.created", payload, sig)
package courier
