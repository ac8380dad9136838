package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/vulnverified/watchtower/internal/logger"
	"github.com/vulnverified/watchtower/internal/notify"
	"github.com/vulnverified/watchtower/internal/scopefile"
)

// DanglingCNAME is a potential subdomain takeover: the host aliases a
// hosted service that no longer answers.
type DanglingCNAME struct {
	Program string `json:"program"`
	Host    string `json:"host"`
	CNAME   string `json:"cname"`
	Status  string `json:"status"`
}

// danglingPatterns are CNAME targets known to be vulnerable to subdomain takeover
// when the CNAME points to a service that no longer exists.
var danglingPatterns = []string{
	".s3.amazonaws.com",
	".azurewebsites.net",
	".github.io",
	".herokuapp.com",
	".cloudfront.net",
	".elasticbeanstalk.com",
	".trafficmanager.net",
	".blob.core.windows.net",
	".azureedge.net",
	".pantheonsite.io",
	".netlify.app",
	".ghost.io",
	".myshopify.com",
	".surge.sh",
}

// checkDangling returns the first takeover-prone CNAME of rec when the
// lookup ended in NXDOMAIN or SERVFAIL.
func checkDangling(program string, rec ResolutionRecord) *DanglingCNAME {
	status := strings.ToUpper(strings.TrimSpace(rec.Status))
	if status != "NXDOMAIN" && status != "SERVFAIL" {
		return nil
	}
	for _, cname := range rec.CNAMEs {
		c := strings.TrimSuffix(strings.ToLower(cname), ".")
		for _, pattern := range danglingPatterns {
			if strings.HasSuffix(c, pattern) {
				return &DanglingCNAME{Program: program, Host: rec.Host, CNAME: c, Status: status}
			}
		}
	}
	return nil
}

// VulnReport is the outcome of a takeover template scan.
type VulnReport struct {
	*StageReport
	Findings []VulnFinding `json:"findings"`
}

// ScanVulns runs the VulnSource over the program's live subdomains. Each
// finding is alerted; nothing is persisted.
func (p *Pipeline) ScanVulns(ctx context.Context, program string) (*VulnReport, error) {
	if p.Sources.Vulns == nil {
		return nil, fmt.Errorf("no vulnerability scanner configured")
	}
	report := &VulnReport{StageReport: newReport("takeover", p.RunID)}
	log := p.log().With(logger.String("stage", report.Stage), logger.String("program", program))

	prog, err := p.Inventory.Programs.Get(ctx, program)
	if err != nil {
		return nil, err
	}
	lives, err := p.Inventory.Lives.ListByProgram(ctx, prog.Name)
	if err != nil {
		return nil, err
	}
	if len(lives) == 0 {
		p.warn(report.StageReport, "program %s has no live subdomains", prog.Name)
		return report, nil
	}

	hosts := make([]string, 0, len(lives))
	for _, l := range lives {
		hosts = append(hosts, l.Subdomain)
	}
	report.Programs = 1
	report.Targets = len(hosts)

	err = scopefile.With(p.TempDir, "nuclei", hosts, func(path string) error {
		findings, err := p.Sources.Vulns.Scan(ctx, path)
		if err != nil {
			log.Warn("vulnerability scan failed", logger.Error(err))
			p.warn(report.StageReport, "%s: scan failed: %v", prog.Name, err)
			return nil
		}
		for _, f := range findings {
			report.Findings = append(report.Findings, f)
			log.Info("takeover finding", logger.String("template", f.TemplateID), logger.String("host", f.Host))
			notify.Send(ctx, p.Notifier, "[%s] %s %s (%s)", prog.Name, f.TemplateID, f.Host, f.Severity)
		}
		return nil
	})
	if err != nil {
		report.fail(prog.Name, err)
	}

	p.detail("%d findings on %d hosts", len(report.Findings), len(hosts))
	report.finish()
	return report, nil
}
