package recon

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/vulnverified/watchtower/internal/engine"
	"github.com/vulnverified/watchtower/internal/inventory"
	"github.com/vulnverified/watchtower/internal/logger"
)

// DefaultHTTPUserAgent is sent by httpx unless configured otherwise.
const DefaultHTTPUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:108.0) Gecko/20100101 Firefox/108.0"

// Httpx is the HTTPProbeSource backed by the httpx binary.
type Httpx struct {
	Runner    Runner
	Threads   int
	RateLimit int
	Timeout   int // seconds
	Retries   int
	Ports     string
	UserAgent string
	Log       logger.Logger
}

type httpxLine struct {
	URL        string                 `json:"url"`
	Input      string                 `json:"input"`
	Host       string                 `json:"host"`
	A          json.RawMessage        `json:"a"`
	Tech       []string               `json:"tech"`
	Title      string                 `json:"title"`
	StatusCode int                    `json:"status_code"`
	Header     map[string]interface{} `json:"header"`
	FinalURL   string                 `json:"final_url"`
	Favicon    string                 `json:"favicon"`
}

func (h *Httpx) args(targetsFile string) []string {
	threads := orDefault(h.Threads, 30)
	rate := orDefault(h.RateLimit, 4)
	timeout := orDefault(h.Timeout, 10)
	ports := h.Ports
	if ports == "" {
		ports = "443"
	}
	ua := h.UserAgent
	if ua == "" {
		ua = DefaultHTTPUserAgent
	}
	return []string{
		"-l", targetsFile, "-silent", "-json",
		"-favicon", "-fhr", "-tech-detect", "-irh", "-include-chain",
		"-timeout", strconv.Itoa(timeout),
		"-retries", strconv.Itoa(h.Retries),
		"-threads", strconv.Itoa(threads),
		"-rate-limit", strconv.Itoa(rate),
		"-ports", ports,
		"-extract-fqdn",
		"-H", "User-Agent: " + ua,
	}
}

func (h *Httpx) Probe(ctx context.Context, targetsFile string) ([]engine.ProbeResponse, error) {
	out, err := h.Runner.Run(ctx, "httpx", h.args(targetsFile), nil)
	if err != nil {
		return nil, err
	}

	var responses []engine.ProbeResponse
	for _, line := range lines(out, h.Log) {
		var l httpxLine
		if err := json.Unmarshal([]byte(line), &l); err != nil {
			orNop(h.Log).Debug("dropping malformed httpx line", logger.String("line", line))
			continue
		}
		if l.URL == "" && l.Input == "" && l.Host == "" {
			continue
		}
		var ips []string
		if len(l.A) > 0 {
			ips = []string(inventory.CoerceStringSet(l.A))
		}
		responses = append(responses, engine.ProbeResponse{
			URL:        l.URL,
			Input:      l.Input,
			Host:       l.Host,
			IPs:        ips,
			Tech:       l.Tech,
			Title:      l.Title,
			StatusCode: l.StatusCode,
			Headers:    l.Header,
			FinalURL:   l.FinalURL,
			Favicon:    l.Favicon,
		})
	}
	return responses, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
