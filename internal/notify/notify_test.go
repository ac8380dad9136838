package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhook_Notify(t *testing.T) {
	var got map[string]string
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{URL: srv.URL}, nil)
	if !w.Notify(context.Background(), "hello") {
		t.Fatal("Notify() = false, want true")
	}
	if got["content"] != "```hello```" {
		t.Errorf("content = %q, want code block", got["content"])
	}
	if ua != "watch_tower/1.0" {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestWebhook_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{URL: srv.URL}, nil)
	if w.Notify(context.Background(), "x") {
		t.Error("Notify() = true for 429, want false")
	}
}

func TestWebhook_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	w := NewWebhook(WebhookConfig{URL: url, Timeout: time.Second}, nil)
	if w.Notify(context.Background(), "x") {
		t.Error("Notify() = true for closed server, want false")
	}
}

func TestWebhook_RateLimitCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{URL: srv.URL, Rate: 0.001, Burst: 1}, nil)
	if !w.Notify(context.Background(), "first") {
		t.Fatal("first message should use the burst")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if w.Notify(ctx, "second") {
		t.Error("second message should be dropped by the limiter")
	}
}

func TestNewWebhook_EmptyURL(t *testing.T) {
	w := NewWebhook(WebhookConfig{}, nil)
	if w != nil {
		t.Fatal("expected nil webhook for empty url")
	}
	if w.Notify(context.Background(), "x") {
		t.Error("nil webhook should not report success")
	}
}

func TestSend_NilNotifier(t *testing.T) {
	if Send(context.Background(), nil, "x %d", 1) {
		t.Error("Send with nil notifier = true")
	}

	rec := &Recorder{}
	Send(context.Background(), rec, "port %d", 443)
	msgs := rec.Messages()
	if len(msgs) != 1 || msgs[0] != "port 443" {
		t.Errorf("messages = %v", msgs)
	}
	rec.Reset()
	if len(rec.Messages()) != 0 {
		t.Error("Reset() left messages")
	}
}
