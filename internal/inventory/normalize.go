package inventory

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// NormalizeName trims and lower-cases a domain, host or program name.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ExtractScope returns the last two dot-separated labels of host.
// Multi-label public suffixes are not special-cased: "foo.co.uk" yields "co.uk".
func ExtractScope(host string) string {
	host = strings.TrimSuffix(NormalizeName(host), ".")
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// NewStringSet trims, deduplicates and sorts values, dropping empties.
func NewStringSet(values ...string) StringSet {
	seen := make(map[string]bool, len(values))
	out := make(StringSet, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// NewLowerSet is NewStringSet for domain-like values: members are lower-cased
// first so "A.com" and "a.com" collapse.
func NewLowerSet(values ...string) StringSet {
	lowered := make([]string, len(values))
	for i, v := range values {
		lowered[i] = NormalizeName(v)
	}
	return NewStringSet(lowered...)
}

var setSeparators = regexp.MustCompile(`[\s,;]+`)

// CoerceStringSet turns the shapes scanners and legacy rows use for list
// fields into a canonical lower-cased set: a slice, a JSON array string, a
// JSON string, or a comma/semicolon/space separated string.
func CoerceStringSet(v interface{}) StringSet {
	switch val := v.(type) {
	case nil:
		return StringSet{}
	case StringSet:
		return NewLowerSet(val...)
	case []string:
		return NewLowerSet(val...)
	case []interface{}:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			items = append(items, fmt.Sprint(item))
		}
		return NewLowerSet(items...)
	case json.RawMessage:
		return CoerceStringSet(string(val))
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return StringSet{}
		}
		if strings.HasPrefix(s, "[") || strings.HasPrefix(s, `"`) {
			var decoded interface{}
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return CoerceStringSet(decoded)
			}
		}
		return NewLowerSet(setSeparators.Split(s, -1)...)
	default:
		return NewLowerSet(fmt.Sprint(val))
	}
}
