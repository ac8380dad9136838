package recon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHackertargetParsesResponse(t *testing.T) {
	body := `www.example.com,1.2.3.4
api.example.com,5.6.7.8
MAIL.example.com,9.10.11.12
other.notexample.com,13.14.15.16
www.example.com,1.2.3.4`

	hosts := parseHackertargetResponse(body, "example.com")

	expected := map[string]bool{
		"www.example.com":  true,
		"api.example.com":  true,
		"mail.example.com": true,
	}
	if len(hosts) != len(expected) {
		t.Errorf("got %d hosts, want %d: %v", len(hosts), len(expected), hosts)
	}
	for _, h := range hosts {
		if !expected[h] {
			t.Errorf("unexpected host: %s", h)
		}
	}
}

func TestHackertargetEmptyLines(t *testing.T) {
	body := `www.example.com,1.2.3.4

api.example.com,5.6.7.8

`
	hosts := parseHackertargetResponse(body, "example.com")
	if len(hosts) != 2 {
		t.Errorf("got %d hosts, want 2: %v", len(hosts), hosts)
	}
}

func TestHackerTarget_Subdomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hostsearch/" || r.URL.Query().Get("q") != "example.com" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Write([]byte("www.example.com,1.2.3.4\napi.example.com,5.6.7.8\n"))
	}))
	defer srv.Close()

	h := &HackerTarget{BaseURL: srv.URL}
	if h.Name() != "hackertarget" {
		t.Errorf("Name() = %q", h.Name())
	}
	hosts, err := h.Subdomains(context.Background(), writeTargets(t, "example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 2 {
		t.Errorf("got %d hosts, want 2", len(hosts))
	}
}

func TestHackerTarget_RateLimitBody(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Write([]byte("error API count exceeded - Increase Quota with Membership"))
	}))
	defer srv.Close()

	h := &HackerTarget{BaseURL: srv.URL, RetryDelay: time.Millisecond}
	_, err := h.Subdomains(context.Background(), writeTargets(t, "example.com"))
	if !errors.Is(err, errRateLimited) {
		t.Fatalf("err = %v, want rate limited", err)
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestHackerTarget_429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	h := &HackerTarget{BaseURL: srv.URL, RetryDelay: time.Millisecond}
	if _, err := h.Subdomains(context.Background(), writeTargets(t, "example.com")); err == nil {
		t.Fatal("expected error on 429")
	}
}
