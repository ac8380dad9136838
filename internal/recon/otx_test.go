package recon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOTXParsesResponse(t *testing.T) {
	body := []byte(`{
		"passive_dns": [
			{"hostname": "www.example.com"},
			{"hostname": "api.example.com"},
			{"hostname": "mail.example.com"},
			{"hostname": "other.notexample.com"},
			{"hostname": "www.example.com"},
			{"hostname": ""}
		]
	}`)

	hosts, err := parseOTXResponse(body, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

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

func TestOTXEmptyPassiveDNS(t *testing.T) {
	hosts, err := parseOTXResponse([]byte(`{"passive_dns": []}`), "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 0 {
		t.Errorf("expected 0 hosts, got %d", len(hosts))
	}
}

func TestOTXInvalidJSON(t *testing.T) {
	if _, err := parseOTXResponse([]byte(`not json`), "example.com"); err == nil {
		t.Fatal("expected error on invalid JSON")
	}
}

func TestOTX_Subdomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/domain/example.com/passive_dns") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"passive_dns": [{"hostname": "www.example.com"}, {"hostname": "api.example.com"}]}`))
	}))
	defer srv.Close()

	o := &OTX{BaseURL: srv.URL + "/"}
	hosts, err := o.Subdomains(context.Background(), writeTargets(t, "Example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 2 {
		t.Errorf("got %d hosts, want 2", len(hosts))
	}
}

func TestOTX_ServerErrorAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	o := &OTX{BaseURL: srv.URL, RetryDelay: time.Millisecond}
	_, err := o.Subdomains(context.Background(), writeTargets(t, "example.com"))
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("err = %v, want status 502", err)
	}
}
