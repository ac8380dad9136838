package engine

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vulnverified/watchtower/internal/inventory"
	"github.com/vulnverified/watchtower/internal/logger"
	"github.com/vulnverified/watchtower/internal/notify"
	"github.com/vulnverified/watchtower/internal/scopefile"
)

// Sources holds the injectable adapters. Stages whose source is nil are
// skipped with a warning.
type Sources struct {
	Subdomains []SubdomainSource
	Resolver   ResolutionSource
	Prober     HTTPProbeSource
	Ports      PortSource
	Vulns      VulnSource
	Archive    ArchiveSource
}

// ProgressReporter is called by the engine to report stage progress.
type ProgressReporter interface {
	Stage(num, total int, msg string)
	Detail(msg string)
	Warn(msg string)
}

// Pipeline reads committed inventory, fans out to sources and writes the
// results back. It assumes it is the only writer.
type Pipeline struct {
	Inventory *inventory.Inventory
	Sources   Sources
	Notifier  notify.Notifier // optional
	Progress  ProgressReporter
	Log       logger.Logger
	TempDir   string
	RunID     string
}

// NewPipeline returns a pipeline tagged with a fresh run id.
func NewPipeline(inv *inventory.Inventory, sources Sources, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	runID := uuid.NewString()
	return &Pipeline{
		Inventory: inv,
		Sources:   sources,
		Log:       log.With(logger.String("run_id", runID)),
		RunID:     runID,
	}
}

type noopProgress struct{}

func (noopProgress) Stage(int, int, string) {}
func (noopProgress) Detail(string)          {}
func (noopProgress) Warn(string)            {}

func (p *Pipeline) progress() ProgressReporter {
	if p.Progress == nil {
		return noopProgress{}
	}
	return p.Progress
}

func (p *Pipeline) log() logger.Logger {
	if p.Log == nil {
		return logger.NewNop()
	}
	return p.Log
}

func (p *Pipeline) warn(r *StageReport, format string, args ...interface{}) {
	p.progress().Warn(r.warnf(format, args...))
}

func (p *Pipeline) detail(format string, args ...interface{}) {
	p.progress().Detail(fmt.Sprintf(format, args...))
}

// Enumerate runs every SubdomainSource over each program's scopes and
// stores what they report.
func (p *Pipeline) Enumerate(ctx context.Context) (*StageReport, error) {
	report := newReport("enumeration", p.RunID)
	log := p.log().With(logger.String("stage", report.Stage))

	if len(p.Sources.Subdomains) == 0 {
		p.warn(report, "no subdomain providers configured")
		return report.finish(), nil
	}

	programs, err := p.Inventory.Programs.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, prog := range programs {
		if err := ctx.Err(); err != nil {
			return report.finish(), err
		}

		scopes := inventory.NewLowerSet(prog.Scopes...)
		if len(scopes) == 0 {
			p.warn(report, "program %s has no scopes, skipped", prog.Name)
			continue
		}
		report.Programs++
		p.detail("%s: %d scopes", prog.Name, len(scopes))

		err := scopefile.With(p.TempDir, "enum", scopes, func(path string) error {
			for _, src := range p.Sources.Subdomains {
				found, err := src.Subdomains(ctx, path)
				if err != nil {
					log.Warn("provider failed", logger.String("program", prog.Name),
						logger.String("provider", src.Name()), logger.Error(err))
					p.warn(report, "%s: %s failed: %v", prog.Name, src.Name(), err)
					continue
				}

				found = uniqueNames(found)
				p.detail("%s: %s returned %d subdomains", prog.Name, src.Name(), len(found))
				report.Targets += len(found)
				for _, sub := range found {
					outcome, err := p.Inventory.Subdomains.Upsert(ctx, prog.Name, sub, src.Name())
					report.record(prog.Name, outcome, err)
				}
			}
			return nil
		})
		if err != nil {
			report.fail(prog.Name, err)
		}
	}

	log.Info("enumeration finished", logger.Int("programs", report.Programs),
		logger.Int("inserted", report.Inserted), logger.Int("updated", report.Updated))
	return report.finish(), nil
}

// Resolve resolves each program's known subdomains and stores those that
// answered with at least one address or alias.
func (p *Pipeline) Resolve(ctx context.Context) (*StageReport, error) {
	report := newReport("resolution", p.RunID)
	log := p.log().With(logger.String("stage", report.Stage))

	if p.Sources.Resolver == nil {
		p.warn(report, "no resolver configured")
		return report.finish(), nil
	}

	programs, err := p.Inventory.Programs.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, prog := range programs {
		if err := ctx.Err(); err != nil {
			return report.finish(), err
		}

		names, err := p.Inventory.Subdomains.Names(ctx, prog.Name)
		if err != nil {
			report.fail(prog.Name, err)
			continue
		}
		if len(names) == 0 {
			p.warn(report, "program %s has no subdomains to resolve", prog.Name)
			continue
		}
		report.Programs++
		report.Targets += len(names)

		err = scopefile.With(p.TempDir, "resolve", names, func(path string) error {
			records, err := p.Sources.Resolver.Resolve(ctx, path)
			if err != nil {
				log.Warn("resolver failed", logger.String("program", prog.Name), logger.Error(err))
				p.warn(report, "%s: resolver failed: %v", prog.Name, err)
				return nil
			}

			resolved := 0
			for _, rec := range records {
				rec.Host = inventory.NormalizeName(rec.Host)
				if rec.Host == "" {
					report.Discarded++
					continue
				}

				if d := checkDangling(prog.Name, rec); d != nil {
					report.Dangling = append(report.Dangling, *d)
					log.Warn("dangling cname", logger.String("host", d.Host), logger.String("cname", d.CNAME))
					p.warn(report, "%s -> %s (%s): possible subdomain takeover", d.Host, d.CNAME, d.Status)
					notify.Send(ctx, p.Notifier, "'%s' possible takeover: CNAME %s (%s) in '%s'", d.Host, d.CNAME, d.Status, prog.Name)
				}

				if len(rec.IPs) == 0 && len(rec.CNAMEs) == 0 {
					report.Discarded++
					continue
				}
				resolved++
				outcome, err := p.Inventory.Lives.Upsert(ctx, prog.Name, rec.Host, rec.IPs, rec.CNAMEs)
				report.record(prog.Name, outcome, err)
			}
			p.detail("%s: %d of %d subdomains resolved", prog.Name, resolved, len(names))
			return nil
		})
		if err != nil {
			report.fail(prog.Name, err)
		}
	}

	log.Info("resolution finished", logger.Int("programs", report.Programs),
		logger.Int("inserted", report.Inserted), logger.Int("updated", report.Updated))
	return report.finish(), nil
}

// liveIndex maps a lower-cased host to every live record carrying it, so a
// host tracked by two programs is attributed to both.
type liveIndex struct {
	hosts    []string
	byHost   map[string][]inventory.LiveSubdomain
	programs int
}

func indexLives(lives []inventory.LiveSubdomain) liveIndex {
	idx := liveIndex{byHost: make(map[string][]inventory.LiveSubdomain)}
	programs := make(map[string]bool)
	for _, l := range lives {
		host := inventory.NormalizeName(l.Subdomain)
		if host == "" {
			continue
		}
		if _, ok := idx.byHost[host]; !ok {
			idx.hosts = append(idx.hosts, host)
		}
		idx.byHost[host] = append(idx.byHost[host], l)
		programs[l.Program] = true
	}
	idx.programs = len(programs)
	return idx
}

// ProbeHTTP probes every live subdomain, across all programs, in one run.
func (p *Pipeline) ProbeHTTP(ctx context.Context) (*StageReport, error) {
	report := newReport("http", p.RunID)
	log := p.log().With(logger.String("stage", report.Stage))

	if p.Sources.Prober == nil {
		p.warn(report, "no http prober configured")
		return report.finish(), nil
	}

	lives, err := p.Inventory.Lives.List(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexLives(lives)
	if len(idx.hosts) == 0 {
		p.warn(report, "no live subdomains to probe")
		return report.finish(), nil
	}
	report.Programs = idx.programs
	report.Targets = len(idx.hosts)

	err = scopefile.With(p.TempDir, "http", idx.hosts, func(path string) error {
		responses, err := p.Sources.Prober.Probe(ctx, path)
		if err != nil {
			log.Warn("prober failed", logger.Error(err))
			p.warn(report, "http prober failed: %v", err)
			return nil
		}
		p.detail("%d responses for %d hosts", len(responses), len(idx.hosts))

		for _, resp := range responses {
			matches := idx.byHost[responseHost(resp)]
			if len(matches) == 0 {
				report.Discarded++
				continue
			}
			for _, live := range matches {
				ips := inventory.CoerceStringSet(live.IPs)
				if len(ips) == 0 {
					ips = inventory.CoerceStringSet(resp.IPs)
				}
				outcome, err := p.Inventory.HTTP.Upsert(ctx, inventory.HTTPService{
					Program:    live.Program,
					Subdomain:  live.Subdomain,
					IPs:        ips,
					Tech:       resp.Tech,
					Title:      resp.Title,
					StatusCode: resp.StatusCode,
					Headers:    resp.Headers,
					URL:        resp.URL,
					FinalURL:   resp.FinalURL,
					Favicon:    resp.Favicon,
				})
				report.record(live.Program, outcome, err)
			}
		}
		return nil
	})
	if err != nil {
		report.fail("http", err)
	}

	log.Info("http probing finished", logger.Int("targets", report.Targets),
		logger.Int("inserted", report.Inserted), logger.Int("updated", report.Updated))
	return report.finish(), nil
}

// responseHost extracts the lower-cased host of a probe response from its
// url, falling back to the host and input fields.
func responseHost(resp ProbeResponse) string {
	if u, err := url.Parse(strings.TrimSpace(resp.URL)); err == nil && u.Hostname() != "" {
		return inventory.NormalizeName(u.Hostname())
	}
	for _, candidate := range []string{resp.Host, resp.Input} {
		candidate = inventory.NormalizeName(candidate)
		if candidate == "" {
			continue
		}
		if h, _, err := net.SplitHostPort(candidate); err == nil {
			return h
		}
		return candidate
	}
	return ""
}

// ScanPorts port-scans every live subdomain in one run.
func (p *Pipeline) ScanPorts(ctx context.Context) (*StageReport, error) {
	report := newReport("ports", p.RunID)
	log := p.log().With(logger.String("stage", report.Stage))

	if p.Sources.Ports == nil {
		p.warn(report, "no port scanner configured")
		return report.finish(), nil
	}

	lives, err := p.Inventory.Lives.List(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexLives(lives)
	if len(idx.hosts) == 0 {
		p.warn(report, "no live subdomains to scan")
		return report.finish(), nil
	}
	report.Programs = idx.programs
	report.Targets = len(idx.hosts)

	err = scopefile.With(p.TempDir, "ports", idx.hosts, func(path string) error {
		results, err := p.Sources.Ports.Scan(ctx, path)
		if err != nil {
			log.Warn("port scanner failed", logger.Error(err))
			p.warn(report, "port scanner failed: %v", err)
			return nil
		}
		p.detail("%d open ports reported", len(results))

		for _, res := range results {
			key := inventory.NormalizeName(res.Input)
			if key == "" {
				key = inventory.NormalizeName(res.Host)
			}
			matches := idx.byHost[key]
			if len(matches) == 0 || res.Port <= 0 {
				report.Discarded++
				continue
			}
			for _, live := range matches {
				outcome, err := p.Inventory.Ports.Upsert(ctx, inventory.Port{
					Program:   live.Program,
					Subdomain: live.Subdomain,
					Host:      res.Host,
					Port:      res.Port,
					Protocol:  res.Protocol,
					Service:   res.Service,
					Source:    "naabu",
					Metadata:  portMetadata(res, live),
				})
				report.record(live.Program, outcome, err)
			}
		}
		return nil
	})
	if err != nil {
		report.fail("ports", err)
	}

	log.Info("port scan finished", logger.Int("targets", report.Targets),
		logger.Int("inserted", report.Inserted), logger.Int("updated", report.Updated))
	return report.finish(), nil
}

func portMetadata(res PortRecord, live inventory.LiveSubdomain) inventory.JSONMap {
	meta := inventory.JSONMap{}
	if res.CPE != "" {
		meta["cpe"] = res.CPE
	}
	if res.Service != "" {
		meta["service"] = res.Service
	}
	if res.Timestamp != "" {
		meta["timestamp"] = res.Timestamp
	}
	switch {
	case res.IP != "":
		meta["ip"] = res.IP
	case len(live.IPs) > 0:
		meta["ip"] = []string(live.IPs)
	}
	return meta
}

// RunOptions selects the optional parts of a full run.
type RunOptions struct {
	ProgramsDir string // sync program definitions first when set
	Ports       bool
}

// RunResult collects the reports of a full run.
type RunResult struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Sync      *StageReport   `json:"sync,omitempty"`
	Stages    []*StageReport `json:"stages"`
}

type stage struct {
	title string
	run   func(context.Context) (*StageReport, error)
}

// Run executes the stages in order. Each stage commits before the next
// reads; an error reading committed state stops the run.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	result := &RunResult{RunID: p.RunID, StartedAt: time.Now()}

	stages := []stage{
		{"Enumerating subdomains...", p.Enumerate},
		{"Resolving subdomains...", p.Resolve},
		{"Probing HTTP services...", p.ProbeHTTP},
	}
	if opts.Ports {
		stages = append(stages, stage{"Scanning ports...", p.ScanPorts})
	}
	total := len(stages)
	num := 0
	if opts.ProgramsDir != "" {
		total++
		num++
		p.progress().Stage(num, total, "Syncing programs...")
		sync, err := p.SyncPrograms(ctx, opts.ProgramsDir)
		if err != nil {
			return result, fmt.Errorf("syncing programs: %w", err)
		}
		result.Sync = sync
	}

	for _, s := range stages {
		num++
		p.progress().Stage(num, total, s.title)
		report, err := s.run(ctx)
		if report != nil {
			result.Stages = append(result.Stages, report)
		}
		if err != nil {
			result.Duration = time.Since(result.StartedAt)
			return result, fmt.Errorf("%s: %w", strings.TrimSuffix(s.title, "..."), err)
		}
	}

	result.Duration = time.Since(result.StartedAt)
	return result, nil
}

// uniqueNames trims, lower-cases and de-duplicates raw provider output,
// keeping first-seen order.
func uniqueNames(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		name := strings.TrimSuffix(inventory.NormalizeName(r), ".")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
