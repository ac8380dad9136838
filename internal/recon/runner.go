// Package recon adapts external recon tools and public data sources to the
// engine's source interfaces.
package recon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vulnverified/watchtower/internal/logger"
)

// Runner executes an external binary with an argument vector. Arguments are
// never passed through a shell.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error)
}

// ErrToolFailed wraps non-zero exits and timeouts of external tools.
var ErrToolFailed = errors.New("tool failed")

// ExecRunner runs binaries found on PATH.
type ExecRunner struct {
	Timeout time.Duration // per invocation; 0 means 30 minutes
	Log     logger.Logger
}

const defaultToolTimeout = 30 * time.Minute

func (r *ExecRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	log := orNop(r.Log)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	// Tools that fork helpers can keep the pipes open after being killed.
	cmd.WaitDelay = 5 * time.Second
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	log.Debug("running tool", logger.String("tool", name), logger.Strings("args", args))
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return stdout.Bytes(), fmt.Errorf("%s timed out after %s: %w", name, timeout, ErrToolFailed)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), fmt.Errorf("%s exited with %d: %s: %w",
				name, exitErr.ExitCode(), firstLine(stderr.String()), ErrToolFailed)
		}
		return nil, fmt.Errorf("running %s: %w", name, err)
	}

	log.Debug("tool finished", logger.String("tool", name),
		logger.Duration("elapsed", elapsed), logger.Int("bytes", stdout.Len()))
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// maxLineBytes caps a single output line. Longer lines are dropped.
const maxLineBytes = 4 * 1024 * 1024

// lines splits tool output into trimmed, non-empty lines. An oversized line
// is dropped on its own; the lines after it are kept.
func lines(out []byte, log logger.Logger) []string {
	var result []string
	for len(out) > 0 {
		line := out
		if i := bytes.IndexByte(out, '\n'); i >= 0 {
			line, out = out[:i], out[i+1:]
		} else {
			out = nil
		}
		if len(line) > maxLineBytes {
			orNop(log).Debug("dropping oversized line", logger.Int("bytes", len(line)))
			continue
		}
		if l := strings.TrimSpace(string(line)); l != "" {
			result = append(result, l)
		}
	}
	return result
}

// readTargets reads a scope file.
func readTargets(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading targets: %w", err)
	}
	return lines(data, nil), nil
}

func deduplicateStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	var out []string
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func orNop(l logger.Logger) logger.Logger {
	if l == nil {
		return logger.NewNop()
	}
	return l
}
