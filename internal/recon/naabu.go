package recon

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/vulnverified/watchtower/internal/engine"
	"github.com/vulnverified/watchtower/internal/logger"
	"github.com/vulnverified/watchtower/pkg/ports"
)

// Naabu is the PortSource backed by the naabu binary.
type Naabu struct {
	Runner      Runner
	Rate        int
	Concurrency int
	Ports       string // naabu -p value; empty scans ports.Top100
	Log         logger.Logger
}

type naabuLine struct {
	Input     string          `json:"input"`
	Host      string          `json:"host"`
	IP        string          `json:"ip"`
	Port      json.RawMessage `json:"port"`
	Protocol  string          `json:"protocol"`
	Service   json.RawMessage `json:"service"`
	CPE       string          `json:"cpe"`
	Timestamp string          `json:"timestamp"`
}

func (n *Naabu) args(targetsFile string) []string {
	portList := n.Ports
	if portList == "" {
		portList = ports.Join(ports.Top100)
	}
	return []string{
		"-l", targetsFile,
		"-p", portList,
		"-rate", strconv.Itoa(orDefault(n.Rate, 1000)),
		"-c", strconv.Itoa(orDefault(n.Concurrency, 50)),
		"-json", "-verify", "-silent",
	}
}

func (n *Naabu) Scan(ctx context.Context, targetsFile string) ([]engine.PortRecord, error) {
	out, err := n.Runner.Run(ctx, "naabu", n.args(targetsFile), nil)
	if err != nil {
		return nil, err
	}

	var records []engine.PortRecord
	for _, line := range lines(out, n.Log) {
		var l naabuLine
		if err := json.Unmarshal([]byte(line), &l); err != nil {
			orNop(n.Log).Debug("dropping malformed naabu line", logger.String("line", line))
			continue
		}
		port := parseNaabuPort(l.Port)
		if port <= 0 {
			continue
		}
		records = append(records, engine.PortRecord{
			Input:     strings.ToLower(l.Input),
			Host:      strings.ToLower(l.Host),
			IP:        l.IP,
			Port:      port,
			Protocol:  strings.ToLower(l.Protocol),
			Service:   parseNaabuService(l.Service),
			CPE:       l.CPE,
			Timestamp: l.Timestamp,
		})
	}
	return records, nil
}

// parseNaabuPort accepts both the flat integer and the older {"Port": n} object.
func parseNaabuPort(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var obj struct {
		Port int `json:"Port"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Port
	}
	return 0
}

// parseNaabuService accepts a plain string or an object carrying name or product.
func parseNaabuService(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Name    string `json:"name"`
		Product string `json:"product"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Name != "" {
			return obj.Name
		}
		return obj.Product
	}
	return ""
}
