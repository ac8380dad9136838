// Package scopefile manages the short-lived target files handed to
// external scanners.
package scopefile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// File is a newline-delimited target list on disk. Call Release when done;
// Release is idempotent.
type File struct {
	Path  string
	Count int

	released bool
}

// Create writes targets to a new file in dir (os.TempDir when empty).
// Blank entries are skipped.
func Create(dir, prefix string, targets []string) (*File, error) {
	f, err := os.CreateTemp(dir, "watchtower-"+prefix+"-*.txt")
	if err != nil {
		return nil, fmt.Errorf("creating scope file: %w", err)
	}

	w := bufio.NewWriter(f)
	count := 0
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, err := w.WriteString(t + "\n"); err != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, fmt.Errorf("writing scope file: %w", err)
		}
		count++
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("writing scope file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("closing scope file: %w", err)
	}
	return &File{Path: f.Name(), Count: count}, nil
}

// Release deletes the file.
func (f *File) Release() error {
	if f == nil || f.released {
		return nil
	}
	f.released = true
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing scope file: %w", err)
	}
	return nil
}

// With creates a scope file, passes its path to fn and removes the file on
// every return path, including a panic in fn.
func With(dir, prefix string, targets []string, fn func(path string) error) (err error) {
	f, err := Create(dir, prefix, targets)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := f.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(f.Path)
}
