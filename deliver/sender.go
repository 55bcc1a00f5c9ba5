package deliver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xraph/courier/signature"
	"github.com/xraph/courier/subscription"
	"github.com/xraph/courier/webhook"
)

// maxResponseBody caps how much of a target's response body is read for
// the attempt ledger. Matches webhook.MaxErrorDetail.
const maxResponseBody = webhook.MaxErrorDetail

const userAgent = "Courier/1.0"

// Result holds the outcome of a single HTTP delivery try.
//
// A zero StatusCode means the failure was at the transport level and no
// response arrived at all.
type Result struct {
	StatusCode int
	Error      string
	Body       string
	LatencyMs  int
}

// Received reports whether an HTTP response arrived, regardless of status.
func (r Result) Received() bool {
	return r.StatusCode != 0
}

// Success reports whether the target accepted the payload with a 2xx.
func (r Result) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Detail returns the failure detail for the attempt ledger: the transport
// or read error when one occurred, the response body otherwise.
func (r Result) Detail() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Body
}

// Sender performs HTTP webhook delivery.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with the given per-request timeout.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{Timeout: timeout},
	}
}

// Send POSTs the webhook's payload to the subscription's target and
// returns the result. Send never returns an error; every failure mode is
// encoded in the Result so the caller records exactly one attempt per call.
func (s *Sender) Send(ctx context.Context, sub *subscription.Subscription, wh *webhook.Webhook) Result {
	body := []byte(wh.Payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.TargetURL, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-ID", wh.ID.String())
	if wh.EventType != "" {
		req.Header.Set("X-Webhook-Event", wh.EventType)
	}
	if sub.Secret != "" {
		req.Header.Set(signature.Header, signature.Sign(body, sub.Secret))
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is a user-configured webhook destination; SSRF is by design.
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:     err.Error(),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  int(latency),
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		LatencyMs:  int(latency),
	}
}
