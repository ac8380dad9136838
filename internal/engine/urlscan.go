package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/vulnverified/watchtower/internal/inventory"
	"github.com/vulnverified/watchtower/internal/logger"
)

// URLScanOptions configure ScanURLs.
type URLScanOptions struct {
	Parameters       []string // wordlist entries; required
	ParametersSource string   // where the wordlist came from, for reporting
	Save             bool
	Limit            int // per-scope cap on fetched URLs; 0 means none
	Flags            []string
	Source           string // tag stored with persisted URLs
}

// URLMatch is an archived URL carrying at least one wordlist parameter.
type URLMatch struct {
	URL        string   `json:"url"`
	Scope      string   `json:"scope"`
	Parameters []string `json:"parameters"`
}

// URLScanResult reports one ScanURLs call.
type URLScanResult struct {
	Program          string                `json:"program"`
	Scopes           []string              `json:"scopes"`
	ParametersSource string                `json:"parameters_source,omitempty"`
	ParametersLoaded int                   `json:"parameters_loaded"`
	TotalURLs        int                   `json:"total_urls"`
	UniqueURLs       int                   `json:"unique_urls"`
	MatchCount       int                   `json:"match_count"`
	Matches          []URLMatch            `json:"matches"`
	Persisted        *inventory.BulkResult `json:"persisted,omitempty"`
	Errors           []StageError          `json:"errors"`
}

// ScanURLs fetches archived URLs for every scope of program and keeps those
// carrying a wordlist parameter. A failing scope is recorded in Errors and
// the remaining scopes still run.
func (p *Pipeline) ScanURLs(ctx context.Context, program string, opts URLScanOptions) (*URLScanResult, error) {
	if p.Sources.Archive == nil {
		return nil, errors.New("no archive source configured")
	}
	prog, err := p.Inventory.Programs.Get(ctx, program)
	if err != nil {
		return nil, err
	}
	log := p.log().With(logger.String("stage", "urls"), logger.String("program", prog.Name))

	result := &URLScanResult{
		Program: prog.Name,
		Scopes:  []string(prog.Scopes),
		Matches: []URLMatch{},
		Errors:  []StageError{},
	}
	if len(prog.Scopes) == 0 {
		return result, nil
	}

	wanted := make(map[string]bool, len(opts.Parameters))
	for _, param := range opts.Parameters {
		if param = inventory.NormalizeName(param); param != "" {
			wanted[param] = true
		}
	}
	if len(wanted) == 0 {
		return nil, fmt.Errorf("no parameters loaded from %s", opts.ParametersSource)
	}
	result.ParametersSource = opts.ParametersSource
	result.ParametersLoaded = len(wanted)

	source := strings.TrimSpace(opts.Source)
	if source == "" {
		source = p.Sources.Archive.Name()
	}

	unique := make(map[string]bool)
	matchIdx := make(map[string]int)

	for _, scope := range prog.Scopes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		urls, err := p.Sources.Archive.Fetch(ctx, scope, FetchOptions{Limit: opts.Limit, Flags: opts.Flags})
		if err != nil {
			log.Warn("archive fetch failed", logger.String("scope", scope), logger.Error(err))
			result.Errors = append(result.Errors, StageError{Scope: scope, Message: err.Error()})
			p.progress().Warn(fmt.Sprintf("%s: %v", scope, err))
			continue
		}
		if opts.Limit > 0 && len(urls) > opts.Limit {
			urls = urls[:opts.Limit]
		}
		result.TotalURLs += len(urls)
		p.detail("%s: %d archived urls", scope, len(urls))

		for _, raw := range urls {
			u := normalizeURL(raw)
			if u == "" {
				continue
			}
			unique[u] = true

			params := DetectParameters(u, wanted)
			if len(params) == 0 {
				continue
			}
			if i, ok := matchIdx[u]; ok {
				result.Matches[i].Parameters = inventory.NewStringSet(append(result.Matches[i].Parameters, params...)...)
				continue
			}
			matchIdx[u] = len(result.Matches)
			result.Matches = append(result.Matches, URLMatch{URL: u, Scope: scope, Parameters: params})
		}
	}

	result.UniqueURLs = len(unique)
	result.MatchCount = len(result.Matches)

	if opts.Save && len(result.Matches) > 0 {
		records := make([]inventory.URLRecord, 0, len(result.Matches))
		for _, m := range result.Matches {
			records = append(records, inventory.URLRecord{
				Program:    prog.Name,
				Scope:      m.Scope,
				URL:        m.URL,
				Parameters: m.Parameters,
				Source:     source,
			})
		}
		persisted, err := p.Inventory.URLs.BulkUpsert(ctx, records)
		if err != nil {
			log.Error("persisting url matches", logger.Error(err))
			result.Errors = append(result.Errors, StageError{Scope: prog.Name, Message: err.Error()})
		}
		result.Persisted = &persisted
	}

	log.Info("url scan finished", logger.Int("total", result.TotalURLs),
		logger.Int("unique", result.UniqueURLs), logger.Int("matches", result.MatchCount))
	return result, nil
}

var (
	hostnamePattern = regexp.MustCompile(`^[a-z0-9_]([a-z0-9_.-]*[a-z0-9_])?$`)
	schemePattern   = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://`)
)

// normalizeURL prefixes https:// when no scheme is present and returns ""
// for other schemes and anything that is not a well-formed absolute URL.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if schemePattern.MatchString(lower) {
			return ""
		}
		raw = "https://" + strings.TrimLeft(raw, "/")
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	if net.ParseIP(host) == nil && !hostnamePattern.MatchString(host) {
		return ""
	}
	return raw
}

// DetectParameters returns the sorted wordlist parameters present in rawURL.
// Query-string keys are checked first; only when none match is the whole
// URL scanned for "<param>=" case-insensitively, which catches parameters
// in paths and fragments.
func DetectParameters(rawURL string, wanted map[string]bool) []string {
	found := make(map[string]bool)

	if u, err := url.Parse(rawURL); err == nil && u.RawQuery != "" {
		// ParseQuery keeps well-formed pairs even when it reports an error.
		values, _ := url.ParseQuery(u.RawQuery)
		for key := range values {
			key = strings.ToLower(key)
			if i := strings.IndexByte(key, '['); i > 0 {
				key = key[:i]
			}
			if wanted[key] {
				found[key] = true
			}
		}
	}

	if len(found) == 0 {
		lower := strings.ToLower(rawURL)
		for param := range wanted {
			if strings.Contains(lower, param+"=") {
				found[param] = true
			}
		}
	}

	out := make([]string, 0, len(found))
	for k := range found {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
