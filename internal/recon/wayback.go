package recon

import (
	"context"
	"strings"
	"time"

	"github.com/vulnverified/watchtower/internal/engine"
)

const defaultWaybackTimeout = 120 * time.Second

// Waybackurls is the ArchiveSource backed by the waybackurls binary, which
// reads domains from stdin.
type Waybackurls struct {
	Runner  Runner
	Timeout time.Duration
}

func (w *Waybackurls) Name() string { return "waybackurls" }

func (w *Waybackurls) Fetch(ctx context.Context, domain string, opts engine.FetchOptions) ([]string, error) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = defaultWaybackTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var args []string
	for _, f := range opts.Flags {
		if f = strings.TrimSpace(f); f != "" {
			args = append(args, f)
		}
	}

	out, err := w.Runner.Run(ctx, "waybackurls", args, strings.NewReader(strings.TrimSpace(domain)+"\n"))
	if err != nil {
		return nil, err
	}

	urls := deduplicateStrings(lines(out, nil))
	if opts.Limit > 0 && len(urls) > opts.Limit {
		urls = urls[:opts.Limit]
	}
	return urls, nil
}
