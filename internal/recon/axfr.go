package recon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/vulnverified/watchtower/internal/logger"
)

const (
	axfrDialTimeout = 10 * time.Second
	axfrReadTimeout = 30 * time.Second
)

// AXFR attempts zone transfers against every nameserver of each scope.
// Refused transfers are the normal case and are not errors.
type AXFR struct {
	// LookupNS returns nameserver hosts for a domain. Defaults to the system resolver.
	LookupNS func(ctx context.Context, domain string) ([]string, error)
	Port     string // defaults to 53
	Log      logger.Logger
}

func (a *AXFR) Name() string { return "axfr" }

func (a *AXFR) Subdomains(ctx context.Context, targetsFile string) ([]string, error) {
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
		nameservers, err := a.lookupNS(ctx, domain)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, ns := range nameservers {
			found, err := a.transfer(domain, ns)
			if err != nil {
				orNop(a.Log).Debug("zone transfer refused", logger.String("scope", domain),
					logger.String("nameserver", ns), logger.Error(err))
				continue
			}
			orNop(a.Log).Info("zone transfer succeeded", logger.String("scope", domain),
				logger.String("nameserver", ns), logger.Int("records", len(found)))
			hosts = append(hosts, found...)
		}
	}
	if len(errs) > 0 && len(errs) == len(domains) {
		return nil, errors.Join(errs...)
	}
	return deduplicateStrings(hosts), nil
}

func (a *AXFR) lookupNS(ctx context.Context, domain string) ([]string, error) {
	var (
		hosts []string
		err   error
	)
	if a.LookupNS != nil {
		hosts, err = a.LookupNS(ctx, domain)
	} else {
		var records []*net.NS
		records, err = net.DefaultResolver.LookupNS(ctx, domain)
		for _, r := range records {
			hosts = append(hosts, r.Host)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("NS lookup for %s: %w", domain, err)
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no NS records for %s", domain)
	}
	for i, h := range hosts {
		hosts[i] = strings.TrimSuffix(h, ".")
	}
	return hosts, nil
}

// transfer performs one AXFR and returns the names inside domain.
func (a *AXFR) transfer(domain, nameserver string) ([]string, error) {
	port := a.Port
	if port == "" {
		port = "53"
	}
	t := &dns.Transfer{
		DialTimeout: axfrDialTimeout,
		ReadTimeout: axfrReadTimeout,
	}

	msg := new(dns.Msg)
	msg.SetAxfr(dns.Fqdn(domain))

	channel, err := t.In(msg, net.JoinHostPort(nameserver, port))
	if err != nil {
		return nil, fmt.Errorf("AXFR to %s: %w", nameserver, err)
	}

	domain = strings.ToLower(domain)
	seen := make(map[string]bool)
	var hostnames []string
	for envelope := range channel {
		if envelope.Error != nil {
			return nil, fmt.Errorf("AXFR envelope from %s: %w", nameserver, envelope.Error)
		}
		for _, rr := range envelope.RR {
			name := strings.ToLower(strings.TrimSuffix(rr.Header().Name, "."))
			if name == "" || strings.HasPrefix(name, "*.") {
				continue
			}
			if !strings.HasSuffix(name, "."+domain) && name != domain {
				continue
			}
			if !seen[name] {
				seen[name] = true
				hostnames = append(hostnames, name)
			}
		}
	}
	return hostnames, nil
}
