package recon

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miekg/dns"
)

func writeTargets(t *testing.T, targets ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.txt")
	if err := os.WriteFile(path, []byte(strings.Join(targets, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("writing targets: %v", err)
	}
	return path
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatalf("NewRR(%q): %v", s, err)
	}
	return rr
}

// startDNSServer serves handler on a loopback udp or tcp socket and returns its address.
func startDNSServer(t *testing.T, network string, handler dns.HandlerFunc) string {
	t.Helper()
	started := make(chan struct{})
	srv := &dns.Server{Handler: handler, NotifyStartedFunc: func() { close(started) }}

	var addr string
	switch network {
	case "udp":
		pc, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen udp: %v", err)
		}
		srv.PacketConn = pc
		addr = pc.LocalAddr().String()
	case "tcp":
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen tcp: %v", err)
		}
		srv.Listener = l
		addr = l.Addr().String()
	default:
		t.Fatalf("unsupported network %q", network)
	}

	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })
	return addr
}
