package recon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vulnverified/watchtower/internal/logger"
)

const (
	hackertargetDefaultBase = "https://api.hackertarget.com"
	hackertargetTimeout     = 10 * time.Second
	hackertargetMaxBody     = 5 * 1024 * 1024 // 5MB
	hackertargetRetryDelay  = 2 * time.Second
	hackertargetRateMsg     = "API count exceeded"
)

// HackerTarget queries the HackerTarget hostsearch API once per scope.
type HackerTarget struct {
	BaseURL    string
	UserAgent  string
	Client     *http.Client
	RetryDelay time.Duration
	Log        logger.Logger
}

func (h *HackerTarget) Name() string { return "hackertarget" }

func (h *HackerTarget) Subdomains(ctx context.Context, targetsFile string) ([]string, error) {
	f := apiFetcher{
		source:     "hackertarget",
		userAgent:  h.UserAgent,
		client:     h.Client,
		timeout:    hackertargetTimeout,
		retryDelay: delayOr(h.RetryDelay, hackertargetRetryDelay),
		maxBody:    hackertargetMaxBody,
		// The API answers 200 with a plain text notice when throttled.
		rateLimited: func(body []byte) bool { return strings.Contains(string(body), hackertargetRateMsg) },
	}
	base := baseOr(h.BaseURL, hackertargetDefaultBase)

	return eachScope(ctx, targetsFile, h.Name(), h.Log, func(ctx context.Context, domain string) ([]string, error) {
		body, err := f.fetch(ctx, base+"/hostsearch/?q="+url.QueryEscape(domain))
		if err != nil {
			return nil, fmt.Errorf("hackertarget fetch for %s: %w", domain, err)
		}
		return parseHackertargetResponse(string(body), domain), nil
	})
}

// parseHackertargetResponse parses the plain-text "host,ip" response format.
func parseHackertargetResponse(body, domain string) []string {
	seen := make(map[string]bool)
	var hosts []string

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		host := strings.ToLower(strings.TrimSpace(parts[0]))
		if host == "" || !inScope(host, domain) {
			continue
		}
		if !seen[host] {
			seen[host] = true
			hosts = append(hosts, host)
		}
	}
	return hosts
}
