package recon

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/vulnverified/watchtower/internal/engine"
	"github.com/vulnverified/watchtower/internal/logger"
)

// CommandSource is a SubdomainSource backed by a binary that reads the scope
// list through -dL and prints one host per line.
type CommandSource struct {
	Tool   string
	Args   []string
	Runner Runner
	// Skip drops matching output lines.
	Skip func(line string) bool
}

func NewSubfinder(r Runner) *CommandSource {
	return &CommandSource{Tool: "subfinder", Args: []string{"-all", "-silent"}, Runner: r}
}

// NewChaos drops wildcard lines, which chaos prints verbatim.
func NewChaos(r Runner) *CommandSource {
	return &CommandSource{
		Tool:   "chaos",
		Args:   []string{"-silent"},
		Runner: r,
		Skip:   func(line string) bool { return strings.HasPrefix(line, "*") },
	}
}

func NewSamoscout(r Runner) *CommandSource {
	return &CommandSource{Tool: "samoscout", Args: []string{"-silent"}, Runner: r}
}

func (s *CommandSource) Name() string { return s.Tool }

func (s *CommandSource) Subdomains(ctx context.Context, targetsFile string) ([]string, error) {
	args := append([]string{"-dL", targetsFile}, s.Args...)
	out, err := s.Runner.Run(ctx, s.Tool, args, nil)
	if err != nil {
		return nil, err
	}

	var hosts []string
	for _, line := range lines(out, nil) {
		if s.Skip != nil && s.Skip(line) {
			continue
		}
		hosts = append(hosts, strings.ToLower(strings.TrimSuffix(line, ".")))
	}
	return deduplicateStrings(hosts), nil
}

// ProviderDeps carries what the subdomain providers need.
type ProviderDeps struct {
	Runner     Runner
	UserAgent  string
	HTTPClient *http.Client
	Log        logger.Logger
}

// Providers builds the enabled subdomain sources in the given order.
func Providers(names []string, deps ProviderDeps) ([]engine.SubdomainSource, error) {
	var sources []engine.SubdomainSource
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case "subfinder":
			sources = append(sources, NewSubfinder(deps.Runner))
		case "chaos":
			sources = append(sources, NewChaos(deps.Runner))
		case "samoscout":
			sources = append(sources, NewSamoscout(deps.Runner))
		case "crtsh":
			sources = append(sources, &Crtsh{UserAgent: deps.UserAgent, Client: deps.HTTPClient, Log: deps.Log})
		case "hackertarget":
			sources = append(sources, &HackerTarget{UserAgent: deps.UserAgent, Client: deps.HTTPClient, Log: deps.Log})
		case "otx":
			sources = append(sources, &OTX{UserAgent: deps.UserAgent, Client: deps.HTTPClient, Log: deps.Log})
		case "axfr":
			sources = append(sources, &AXFR{Log: deps.Log})
		default:
			return nil, fmt.Errorf("unknown subdomain provider %q", name)
		}
	}
	return sources, nil
}
