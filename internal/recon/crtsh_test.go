package recon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseCrtshResponse(t *testing.T) {
	entries := []crtshEntry{
		{NameValue: "www.example.com"},
		{NameValue: "api.example.com\nMail.Example.com"},
		{NameValue: "*.example.com"},
		{NameValue: "www.example.com"}, // duplicate
		{NameValue: "other.notexample.com"},
	}
	body, _ := json.Marshal(entries)

	hosts, err := parseCrtshResponse(body, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]bool{
		"www.example.com":  true,
		"api.example.com":  true,
		"mail.example.com": true,
		"example.com":      true,
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

func TestParseCrtshResponse_BadJSON(t *testing.T) {
	if _, err := parseCrtshResponse([]byte("<html>"), "example.com"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCrtsh_QueriesEveryScope(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()
		if r.URL.Query().Get("output") != "json" {
			t.Errorf("output = %q, want json", r.URL.Query().Get("output"))
		}
		if ua := r.Header.Get("User-Agent"); ua != "watch_tower/1.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		domain := strings.TrimPrefix(q, "%.")
		w.Write([]byte(`[{"name_value":"www.` + domain + `"},{"name_value":"www.` + domain + `"}]`))
	}))
	defer srv.Close()

	c := &Crtsh{BaseURL: srv.URL, UserAgent: "watch_tower/1.0"}
	path := writeTargets(t, "example.com", "example.org")

	hosts, err := c.Subdomains(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(queries) != 2 || queries[0] != "%.example.com" || queries[1] != "%.example.org" {
		t.Errorf("queries = %v", queries)
	}
	want := []string{"www.example.com", "www.example.org"}
	if strings.Join(hosts, ",") != strings.Join(want, ",") {
		t.Errorf("hosts = %v, want %v", hosts, want)
	}
}

func TestCrtsh_RetryOn5xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"name_value": "www.example.com"}]`))
	}))
	defer srv.Close()

	c := &Crtsh{BaseURL: srv.URL, RetryDelay: time.Millisecond}
	hosts, err := c.Subdomains(context.Background(), writeTargets(t, "example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if len(hosts) != 1 || hosts[0] != "www.example.com" {
		t.Errorf("hosts = %v", hosts)
	}
}

func TestCrtsh_SkipRetryOn429(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := &Crtsh{BaseURL: srv.URL, RetryDelay: time.Millisecond}
	_, err := c.Subdomains(context.Background(), writeTargets(t, "example.com"))
	if err == nil {
		t.Fatal("expected error on 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected 429 in error, got: %v", err)
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestCrtsh_PartialFailureIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Query().Get("q"), "broken.com") {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[{"name_value":"a.example.com"}]`))
	}))
	defer srv.Close()

	c := &Crtsh{BaseURL: srv.URL}
	hosts, err := c.Subdomains(context.Background(), writeTargets(t, "broken.com", "example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 1 || hosts[0] != "a.example.com" {
		t.Errorf("hosts = %v", hosts)
	}
}
