// Package notify delivers the per-run summary to a chat webhook. Delivery
// is best-effort: a failed notification is logged, never escalated, so it
// cannot fail a run that already synced.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

// Notifier receives one text summary per run.
type Notifier interface {
	Notify(ctx context.Context, summary string) error
}

// Webhook posts summaries as JSON to a chat webhook URL.
type Webhook struct {
	client  *resty.Client
	url     string
	maxWait time.Duration
}

// NewWebhook creates a webhook notifier. maxWait bounds the total retry
// window.
func NewWebhook(url string, timeout, maxWait time.Duration) *Webhook {
	return &Webhook{
		client:  resty.New().SetTimeout(timeout),
		url:     url,
		maxWait: maxWait,
	}
}

type webhookPayload struct {
	Text string `json:"text"`
}

// Notify posts the summary, retrying transient failures with exponential
// backoff until maxWait elapses.
func (w *Webhook) Notify(ctx context.Context, summary string) error {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(w.maxWait),
	), ctx)

	op := func() error {
		resp, err := w.client.R().
			SetContext(ctx).
			SetBody(webhookPayload{Text: summary}).
			Post(w.url)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("webhook returned %s", resp.Status())
		}
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	return nil
}

// Log is the fallback notifier used when no webhook is configured.
type Log struct{}

// Notify writes the summary to the default logger.
func (Log) Notify(ctx context.Context, summary string) error {
	slog.InfoContext(ctx, "Run summary", "summary", summary)
	return nil
}
