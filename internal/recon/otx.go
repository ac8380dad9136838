package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vulnverified/watchtower/internal/logger"
)

const (
	otxDefaultBase = "https://otx.alienvault.com"
	otxPath        = "%s/api/v1/indicators/domain/%s/passive_dns"
	otxTimeout     = 15 * time.Second
	otxMaxBody     = 10 * 1024 * 1024 // 10MB
	otxRetryDelay  = 3 * time.Second
)

type otxResponse struct {
	PassiveDNS []otxEntry `json:"passive_dns"`
}

type otxEntry struct {
	Hostname string `json:"hostname"`
}

// OTX queries AlienVault OTX passive DNS once per scope.
type OTX struct {
	BaseURL    string
	UserAgent  string
	Client     *http.Client
	RetryDelay time.Duration
	Log        logger.Logger
}

func (o *OTX) Name() string { return "otx" }

func (o *OTX) Subdomains(ctx context.Context, targetsFile string) ([]string, error) {
	f := apiFetcher{
		source:     "otx",
		userAgent:  o.UserAgent,
		accept:     "application/json",
		client:     o.Client,
		timeout:    otxTimeout,
		retryDelay: delayOr(o.RetryDelay, otxRetryDelay),
		maxBody:    otxMaxBody,
	}
	base := baseOr(o.BaseURL, otxDefaultBase)

	return eachScope(ctx, targetsFile, o.Name(), o.Log, func(ctx context.Context, domain string) ([]string, error) {
		body, err := f.fetch(ctx, fmt.Sprintf(otxPath, base, domain))
		if err != nil {
			return nil, fmt.Errorf("otx fetch for %s: %w", domain, err)
		}
		return parseOTXResponse(body, domain)
	})
}

// parseOTXResponse extracts hostnames from the OTX passive DNS JSON response.
func parseOTXResponse(body []byte, domain string) ([]string, error) {
	var resp otxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("otx JSON parse: %w", err)
	}

	seen := make(map[string]bool)
	var hosts []string
	for _, entry := range resp.PassiveDNS {
		host := strings.ToLower(strings.TrimSpace(entry.Hostname))
		if host == "" || !inScope(host, domain) {
			continue
		}
		if !seen[host] {
			seen[host] = true
			hosts = append(hosts, host)
		}
	}
	return hosts, nil
}
