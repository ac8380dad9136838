package recon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vulnverified/watchtower/internal/logger"
)

var errRateLimited = errors.New("rate limited (429)")

// apiFetcher performs GETs against a passive DNS API with a single retry
// on transient failures. Rate limiting is never retried.
type apiFetcher struct {
	source     string
	userAgent  string
	accept     string
	client     *http.Client
	timeout    time.Duration
	retryDelay time.Duration
	maxBody    int64
	// rateLimited reports a throttled response that came back as 200.
	rateLimited func(body []byte) bool
}

func (f apiFetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := f.do(ctx, url)
	if err == nil {
		return body, nil
	}
	if errors.Is(err, errRateLimited) {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(f.retryDelay):
	}

	return f.do(ctx, url)
}

func (f apiFetcher) do(ctx context.Context, url string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.accept != "" {
		req.Header.Set("Accept", f.accept)
	}

	client := f.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%s %w", f.source, errRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", f.source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", f.source, err)
	}
	if f.rateLimited != nil && f.rateLimited(body) {
		return nil, fmt.Errorf("%s %w", f.source, errRateLimited)
	}
	return body, nil
}

// eachScope runs query for every scope in targetsFile. It fails only when
// every scope failed.
func eachScope(ctx context.Context, targetsFile, source string, log logger.Logger,
	query func(ctx context.Context, domain string) ([]string, error)) ([]string, error) {
	domains, err := readTargets(targetsFile)
	if err != nil {
		return nil, err
	}

	var (
		hosts []string
		errs  []error
	)
	for _, domain := range domains {
		if err := ctx.Err(); err != nil {
			return hosts, err
		}
		found, err := query(ctx, strings.ToLower(domain))
		if err != nil {
			orNop(log).Warn("passive source query failed", logger.String("source", source),
				logger.String("scope", domain), logger.Error(err))
			errs = append(errs, err)
			continue
		}
		hosts = append(hosts, found...)
	}
	if len(errs) > 0 && len(errs) == len(domains) {
		return nil, errors.Join(errs...)
	}
	return deduplicateStrings(hosts), nil
}

// inScope reports whether host is domain or one of its subdomains.
func inScope(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func baseOr(base, def string) string {
	if base == "" {
		base = def
	}
	return strings.TrimSuffix(base, "/")
}

func delayOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
