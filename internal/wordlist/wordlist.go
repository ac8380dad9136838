// Package wordlist provides the parameter wordlist used by URL mining: an
// embedded default and a loader for custom files.
package wordlist

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
)

// DefaultSource names the embedded list in reports.
const DefaultSource = "embedded:params.txt"

//go:embed params.txt
var defaultParams []byte

// Default returns the embedded parameter wordlist.
func Default() []string {
	words, _ := parse(defaultParams)
	return words
}

// Load reads a custom wordlist. Entries are lower-cased and deduplicated;
// blank lines and # comments are skipped.
func Load(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("parameter file path cannot be empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameter file: %w", err)
	}
	words, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing parameter file %s: %w", path, err)
	}
	return words, nil
}

// Resolve loads path when set and falls back to the embedded list. It also
// returns the source label for reporting.
func Resolve(path string) ([]string, string, error) {
	if path == "" {
		return Default(), DefaultSource, nil
	}
	words, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return words, path, nil
}

func parse(data []byte) ([]string, error) {
	seen := make(map[string]bool)
	var words []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
