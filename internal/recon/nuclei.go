package recon

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/vulnverified/watchtower/internal/engine"
	"github.com/vulnverified/watchtower/internal/logger"
)

// DefaultNucleiTemplates points at the takeover templates.
const DefaultNucleiTemplates = "~/nuclei-templates/http/takeovers/"

// Nuclei is the VulnSource backed by the nuclei binary.
type Nuclei struct {
	Runner    Runner
	Templates string
	Log       logger.Logger
}

type nucleiLine struct {
	TemplateID string `json:"template-id"`
	Info       struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
	} `json:"info"`
	Host      string `json:"host"`
	MatchedAt string `json:"matched-at"`
}

func (n *Nuclei) args(targetsFile string) []string {
	templates := n.Templates
	if templates == "" {
		templates = DefaultNucleiTemplates
	}
	return []string{"-t", expandHome(templates), "-l", targetsFile, "-silent", "-jsonl"}
}

func (n *Nuclei) Scan(ctx context.Context, targetsFile string) ([]engine.VulnFinding, error) {
	out, err := n.Runner.Run(ctx, "nuclei", n.args(targetsFile), nil)
	if err != nil {
		return nil, err
	}

	var findings []engine.VulnFinding
	for _, line := range lines(out, n.Log) {
		var l nucleiLine
		if err := json.Unmarshal([]byte(line), &l); err != nil || l.TemplateID == "" {
			orNop(n.Log).Debug("dropping malformed nuclei line", logger.String("line", line))
			continue
		}
		findings = append(findings, engine.VulnFinding{
			TemplateID: l.TemplateID,
			Name:       l.Info.Name,
			Severity:   strings.ToLower(l.Info.Severity),
			Host:       l.Host,
			MatchedAt:  l.MatchedAt,
		})
	}
	return findings, nil
}

// expandHome resolves a leading ~/ since no shell is involved.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/")
	expanded := filepath.Join(home, rest)
	if strings.HasSuffix(path, "/") {
		expanded += string(filepath.Separator)
	}
	return expanded
}
