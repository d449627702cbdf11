// Package notify relays site events to a Discord webhook as rich embeds.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingEventType = errors.New("event type is required")
	ErrNotConfigured    = errors.New("webhook url is not configured")
)

const missingTypeWarning = "⚠️ An event without an event type was received."

// Notifier delivers site events
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// DeliveryError is returned when the webhook answers with a non-2xx status
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook responded %d: %s", e.StatusCode, e.Body)
}

// WebhookNotifier posts embeds to a Discord webhook URL
type WebhookNotifier struct {
	url      string
	client   *http.Client
	attempts uint
	delay    time.Duration
	now      func() time.Time
}

type WebhookOption func(*WebhookNotifier)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(n *WebhookNotifier) { n.client = c }
}

// WithRetry sets the number of delivery attempts and the delay between them
func WithRetry(attempts uint, delay time.Duration) WebhookOption {
	return func(n *WebhookNotifier) {
		if attempts > 0 {
			n.attempts = attempts
		}
		n.delay = delay
	}
}

// WithClock overrides the clock used for events without a timestamp
func WithClock(now func() time.Time) WebhookOption {
	return func(n *WebhookNotifier) { n.now = now }
}

// NewWebhookNotifier creates a notifier for the given webhook URL. An empty URL
// yields a notifier that fails every call with ErrNotConfigured.
func NewWebhookNotifier(url string, opts ...WebhookOption) *WebhookNotifier {
	n := &WebhookNotifier{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: 3,
		delay:    500 * time.Millisecond,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify formats the event and delivers it
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if n.url == "" {
		return ErrNotConfigured
	}

	if event.EventType == "" {
		if err := n.post(ctx, map[string]any{"content": missingTypeWarning}); err != nil {
			log.Warn().Err(err).Msg("Failed to post missing event type warning")
		}
		return ErrMissingEventType
	}

	payload := map[string]any{"embeds": BuildEmbeds(event, n.now())}
	if err := n.post(ctx, payload); err != nil {
		return fmt.Errorf("deliver %s: %w", event.EventType, err)
	}

	log.Debug().Str("event_type", event.EventType).Msg("Webhook notification delivered")
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := n.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			derr := &DeliveryError{StatusCode: resp.StatusCode, Body: string(msg)}
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Unrecoverable(derr)
			}
			return derr
		},
		retry.Attempts(n.attempts),
		retry.Delay(n.delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			log.Warn().Err(err).Uint("attempt", attempt+1).Msg("Retrying webhook delivery")
		}),
	)
}

// NopNotifier drops every event
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }
