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
	crtshDefaultBase = "https://crt.sh"
	crtshQuery       = "%s/?q=%%25.%s&output=json"
	crtshTimeout     = 30 * time.Second
	crtshMaxBody     = 50 * 1024 * 1024 // 50MB
	crtshRetryDelay  = 3 * time.Second
)

type crtshEntry struct {
	NameValue string `json:"name_value"`
}

// Crtsh queries crt.sh Certificate Transparency logs once per scope.
type Crtsh struct {
	BaseURL    string
	UserAgent  string
	Client     *http.Client
	RetryDelay time.Duration
	Log        logger.Logger
}

func (c *Crtsh) Name() string { return "crtsh" }

func (c *Crtsh) Subdomains(ctx context.Context, targetsFile string) ([]string, error) {
	f := apiFetcher{
		source:     "crt.sh",
		userAgent:  c.UserAgent,
		accept:     "application/json",
		client:     c.Client,
		timeout:    crtshTimeout,
		retryDelay: delayOr(c.RetryDelay, crtshRetryDelay),
		maxBody:    crtshMaxBody,
	}
	base := baseOr(c.BaseURL, crtshDefaultBase)

	return eachScope(ctx, targetsFile, c.Name(), c.Log, func(ctx context.Context, domain string) ([]string, error) {
		body, err := f.fetch(ctx, fmt.Sprintf(crtshQuery, base, domain))
		if err != nil {
			return nil, fmt.Errorf("crt.sh fetch for %s: %w", domain, err)
		}
		return parseCrtshResponse(body, domain)
	})
}

// parseCrtshResponse extracts lower-cased names under domain. Wildcard
// entries collapse to their base name.
func parseCrtshResponse(body []byte, domain string) ([]string, error) {
	var entries []crtshEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("crt.sh JSON parse for %s: %w", domain, err)
	}

	domain = strings.ToLower(domain)
	seen := make(map[string]bool)
	var hosts []string

	for _, entry := range entries {
		// name_value can contain multiple names separated by newlines.
		for _, name := range strings.Split(entry.NameValue, "\n") {
			name = strings.TrimSpace(strings.ToLower(name))
			name = strings.TrimPrefix(name, "*.")
			if name == "" || !inScope(name, domain) {
				continue
			}
			if !seen[name] {
				seen[name] = true
				hosts = append(hosts, name)
			}
		}
	}
	return hosts, nil
}
