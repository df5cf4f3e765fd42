// Package notify delivers alerts to a Slack-compatible webhook.
//
// DESIGN: One HTTP POST per alert, no batching, best effort. Timeout runs
// through the request context so a dead webhook can never block the caller
// past the configured bound. The Block Kit body is assembled with sjson on
// a fixed template rather than a tree of nested structs.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/sjson"

	"github.com/poolwatch/poolwatch/internal/watcher"
)

const (
	// DefaultTimeout bounds one webhook delivery attempt.
	DefaultTimeout = 10 * time.Second

	maxResponseSize = 4 << 10

	payloadTemplate = `{"text":"","blocks":[` +
		`{"type":"header","text":{"type":"plain_text","text":"","emoji":true}},` +
		`{"type":"section","text":{"type":"mrkdwn","text":""}},` +
		`{"type":"context","elements":[{"type":"mrkdwn","text":""}]}]}`
)

// Slack posts alerts to an incoming-webhook URL.
type Slack struct {
	webhookURL string
	timeout    time.Duration
	client     *http.Client
}

// Option configures a Slack notifier.
type Option func(*Slack)

// WithTimeout overrides the per-delivery timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Slack) { s.timeout = d }
}

// WithHTTPClient injects the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Slack) { s.client = c }
}

// NewSlack creates a notifier for the given webhook URL.
func NewSlack(webhookURL string, opts ...Option) *Slack {
	s := &Slack{
		webhookURL: webhookURL,
		timeout:    DefaultTimeout,
		client:     &http.Client{}, // timeout via context, not client
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers one alert. A non-2xx response or a timeout is a delivery
// failure; the caller decides whether and when to try again.
func (s *Slack) Send(ctx context.Context, alert watcher.Alert) error {
	body, err := buildPayload(alert)
	if err != nil {
		return fmt.Errorf("failed to build slack payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		return fmt.Errorf("slack returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// buildPayload fills the Block Kit template: header, mrkdwn body, and a
// context line with the alert timestamp.
func buildPayload(alert watcher.Alert) ([]byte, error) {
	header := fmt.Sprintf("%s %s", emojiFor(alert.Kind), alert.Title)

	body := payloadTemplate
	var err error
	if body, err = sjson.Set(body, "text", header); err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "blocks.0.text.text", header); err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "blocks.1.text.text", alert.Message); err != nil {
		return nil, err
	}
	stamp := fmt.Sprintf("*Severity:* %s | *Timestamp:* %s",
		alert.Severity, alert.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	if body, err = sjson.Set(body, "blocks.2.elements.0.text", stamp); err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func emojiFor(kind watcher.Kind) string {
	switch kind {
	case watcher.KindFailover:
		return "🔄"
	case watcher.KindHighErrorRate:
		return "🚨"
	default:
		return "ℹ️"
	}
}
