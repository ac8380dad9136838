package ports

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads a comma-separated port list. Entries may be single ports or
// inclusive ranges ("8000-8010"). Duplicates are dropped, order is kept.
func Parse(s string) ([]int, error) {
	var result []int
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lo, hi := p, p
		if i := strings.IndexByte(p, '-'); i > 0 {
			lo, hi = strings.TrimSpace(p[:i]), strings.TrimSpace(p[i+1:])
		}
		start, err := parseOne(lo)
		if err != nil {
			return nil, err
		}
		end, err := parseOne(hi)
		if err != nil {
			return nil, err
		}
		if end < start {
			return nil, fmt.Errorf("invalid port range %q", p)
		}
		for port := start; port <= end; port++ {
			result = append(result, port)
		}
	}

	result = dedupe(result)
	if len(result) == 0 {
		return nil, fmt.Errorf("no valid ports specified")
	}
	return result, nil
}

func parseOne(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range (1-65535)", port)
	}
	return port, nil
}

// Join renders ports as a comma-separated list.
func Join(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}
