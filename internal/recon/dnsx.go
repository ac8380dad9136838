package recon

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/vulnverified/watchtower/internal/engine"
	"github.com/vulnverified/watchtower/internal/logger"
)

// Dnsx is the ResolutionSource backed by the dnsx binary.
type Dnsx struct {
	Runner    Runner
	Resolvers []string
	RateLimit int
	Threads   int
	Log       logger.Logger
}

type dnsxLine struct {
	Host       string   `json:"host"`
	A          []string `json:"a"`
	CNAME      []string `json:"cname"`
	TTL        int      `json:"ttl"`
	StatusCode string   `json:"status_code"`
	Resolver   []string `json:"resolver"`
	Timestamp  string   `json:"timestamp"`
}

func (d *Dnsx) args(targetsFile string) []string {
	rate, threads := d.RateLimit, d.Threads
	if rate <= 0 {
		rate = 50
	}
	if threads <= 0 {
		threads = 20
	}
	args := []string{"-l", targetsFile, "-silent", "-resp", "-json",
		"-rl", strconv.Itoa(rate), "-t", strconv.Itoa(threads)}
	if len(d.Resolvers) > 0 {
		args = append(args, "-r", strings.Join(d.Resolvers, ","))
	}
	return args
}

func (d *Dnsx) Resolve(ctx context.Context, targetsFile string) ([]engine.ResolutionRecord, error) {
	out, err := d.Runner.Run(ctx, "dnsx", d.args(targetsFile), nil)
	if err != nil {
		return nil, err
	}

	var records []engine.ResolutionRecord
	for _, line := range lines(out, d.Log) {
		var l dnsxLine
		if err := json.Unmarshal([]byte(line), &l); err != nil || l.Host == "" {
			orNop(d.Log).Debug("dropping malformed dnsx line", logger.String("line", line))
			continue
		}
		rec := engine.ResolutionRecord{
			Host:      strings.ToLower(l.Host),
			IPs:       deduplicateStrings(l.A),
			CNAMEs:    deduplicateStrings(l.CNAME),
			TTL:       l.TTL,
			Status:    l.StatusCode,
			Timestamp: l.Timestamp,
		}
		if len(l.Resolver) > 0 {
			rec.Resolver = l.Resolver[0]
		}
		records = append(records, rec)
	}
	return records, nil
}
