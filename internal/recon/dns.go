package recon

import (
	"context"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"

	"github.com/vulnverified/watchtower/internal/engine"
	"github.com/vulnverified/watchtower/internal/logger"
)

const (
	defaultDNSThreads = 20
	defaultDNSTimeout = 5 * time.Second
)

// DNSResolver is the native ResolutionSource. It sends one A query per host
// and records the A and CNAME answers from the first resolver that replies.
type DNSResolver struct {
	Resolvers []string // host or host:port
	Threads   int
	Timeout   time.Duration
	Log       logger.Logger

	next uint32
}

func (r *DNSResolver) Resolve(ctx context.Context, targetsFile string) ([]engine.ResolutionRecord, error) {
	hosts, err := readTargets(targetsFile)
	if err != nil {
		return nil, err
	}
	servers := r.servers()
	threads := r.Threads
	if threads <= 0 {
		threads = defaultDNSThreads
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultDNSTimeout
	}
	client := &dns.Client{Net: "udp", Timeout: timeout}

	work := make(chan string, len(hosts))
	for _, h := range deduplicateStrings(hosts) {
		work <- h
	}
	close(work)

	var (
		mu      sync.Mutex
		records []engine.ResolutionRecord
		wg      sync.WaitGroup
	)
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for host := range work {
				if ctx.Err() != nil {
					return
				}
				rec, ok := r.query(ctx, client, servers, host)
				if !ok {
					continue
				}
				mu.Lock()
				records = append(records, rec)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return records, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Host < records[j].Host })
	return records, nil
}

// query tries resolvers round-robin until one answers.
func (r *DNSResolver) query(ctx context.Context, client *dns.Client, servers []string, host string) (engine.ResolutionRecord, bool) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	start := int(atomic.AddUint32(&r.next, 1))
	for i := range servers {
		server := servers[(start+i)%len(servers)]
		resp, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil {
			orNop(r.Log).Debug("dns query failed", logger.String("host", host),
				logger.String("resolver", server), logger.Error(err))
			continue
		}
		return recordFromMsg(host, server, resp), true
	}
	return engine.ResolutionRecord{}, false
}

func recordFromMsg(host, server string, resp *dns.Msg) engine.ResolutionRecord {
	rec := engine.ResolutionRecord{
		Host:      strings.ToLower(host),
		Status:    dns.RcodeToString[resp.Rcode],
		Resolver:  server,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	for _, rr := range resp.Answer {
		if rec.TTL == 0 || int(rr.Header().Ttl) < rec.TTL {
			rec.TTL = int(rr.Header().Ttl)
		}
		switch v := rr.(type) {
		case *dns.A:
			rec.IPs = append(rec.IPs, v.A.String())
		case *dns.CNAME:
			rec.CNAMEs = append(rec.CNAMEs, strings.ToLower(strings.TrimSuffix(v.Target, ".")))
		}
	}
	rec.IPs = deduplicateStrings(rec.IPs)
	rec.CNAMEs = deduplicateStrings(rec.CNAMEs)
	return rec
}

func (r *DNSResolver) servers() []string {
	var out []string
	for _, s := range r.Resolvers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		out = []string{"8.8.4.4:53"}
	}
	return out
}
