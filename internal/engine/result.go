// Package engine runs the watchtower discovery pipeline: enumeration,
// resolution, HTTP probing and port scanning over the tracked programs,
// plus on-demand URL mining and takeover scans.
package engine

import "context"

// ResolutionRecord is one resolver answer for a host.
type ResolutionRecord struct {
	Host      string   `json:"host"`
	IPs       []string `json:"ips"`
	CNAMEs    []string `json:"cnames"`
	TTL       int      `json:"ttl,omitempty"`
	Status    string   `json:"status,omitempty"`
	Resolver  string   `json:"resolver,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// ProbeResponse is one HTTP prober result.
type ProbeResponse struct {
	URL        string                 `json:"url"`
	Input      string                 `json:"input,omitempty"`
	Host       string                 `json:"host,omitempty"`
	IPs        []string               `json:"ips,omitempty"`
	Tech       []string               `json:"tech,omitempty"`
	Title      string                 `json:"title,omitempty"`
	StatusCode int                    `json:"status_code"`
	Headers    map[string]interface{} `json:"headers,omitempty"`
	FinalURL   string                 `json:"final_url,omitempty"`
	Favicon    string                 `json:"favicon,omitempty"`
}

// PortRecord is one open port reported by a port scanner.
type PortRecord struct {
	Input     string `json:"input,omitempty"`
	Host      string `json:"host,omitempty"`
	IP        string `json:"ip,omitempty"`
	Port      int    `json:"port"`
	Protocol  string `json:"protocol,omitempty"`
	Service   string `json:"service,omitempty"`
	CPE       string `json:"cpe,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// VulnFinding is one template match from a vulnerability scanner.
type VulnFinding struct {
	TemplateID string `json:"template_id"`
	Name       string `json:"name,omitempty"`
	Severity   string `json:"severity,omitempty"`
	Host       string `json:"host"`
	MatchedAt  string `json:"matched_at,omitempty"`
}

// FetchOptions tune an archive fetch.
type FetchOptions struct {
	Limit int      // 0 means no cap
	Flags []string // extra argv passed to the tool
}

// SubdomainSource reports subdomains for the scopes listed in targetsFile.
type SubdomainSource interface {
	Name() string
	Subdomains(ctx context.Context, targetsFile string) ([]string, error)
}

// ResolutionSource resolves the hosts listed in targetsFile.
type ResolutionSource interface {
	Resolve(ctx context.Context, targetsFile string) ([]ResolutionRecord, error)
}

// HTTPProbeSource probes the hosts listed in targetsFile.
type HTTPProbeSource interface {
	Probe(ctx context.Context, targetsFile string) ([]ProbeResponse, error)
}

// PortSource port-scans the hosts listed in targetsFile.
type PortSource interface {
	Scan(ctx context.Context, targetsFile string) ([]PortRecord, error)
}

// VulnSource runs vulnerability templates against the hosts in targetsFile.
type VulnSource interface {
	Scan(ctx context.Context, targetsFile string) ([]VulnFinding, error)
}

// ArchiveSource returns historical URLs for one domain.
type ArchiveSource interface {
	Name() string
	Fetch(ctx context.Context, domain string, opts FetchOptions) ([]string, error)
}
