// Package notify delivers best-effort alerts to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vulnverified/watchtower/internal/logger"
)

// Notifier sends one message and reports whether it was accepted.
// Implementations never return errors; failures are only logged.
type Notifier interface {
	Notify(ctx context.Context, msg string) bool
}

// WebhookConfig configures a Webhook.
type WebhookConfig struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	Rate      float64 // messages per second; 0 disables limiting
	Burst     int
}

// Webhook posts {"content": msg} to a Discord-compatible endpoint.
type Webhook struct {
	url       string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	log       logger.Logger
}

// NewWebhook returns nil when cfg.URL is empty, so callers can pass the
// result straight through as an absent notifier.
func NewWebhook(cfg WebhookConfig, log logger.Logger) *Webhook {
	if cfg.URL == "" {
		return nil
	}
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "watch_tower/1.0"
	}

	w := &Webhook{
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		log:       log,
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return w
}

// Notify wraps msg in a code block and posts it. A 2xx response is success.
func (w *Webhook) Notify(ctx context.Context, msg string) bool {
	if w == nil {
		return false
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			w.log.Warn("notification dropped", logger.Error(err))
			return false
		}
	}

	body, err := json.Marshal(map[string]string{"content": "```" + msg + "```"})
	if err != nil {
		w.log.Error("encoding notification", logger.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.log.Error("building notification request", logger.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Warn("notification failed", logger.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		w.log.Warn("notification rejected",
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(snippet)),
		)
		return false
	}
	return true
}

// Recorder keeps every message in memory. Useful in tests and dry runs.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *Recorder) Notify(_ context.Context, msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return true
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Reset drops recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

// Send is a nil-safe helper: a nil Notifier is a no-op.
func Send(ctx context.Context, n Notifier, format string, args ...interface{}) bool {
	if n == nil {
		return false
	}
	return n.Notify(ctx, fmt.Sprintf(format, args...))
}
