package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vulnverified/watchtower/internal/inventory"
	"github.com/vulnverified/watchtower/internal/logger"
)

// programFile is one program definition document.
type programFile struct {
	Name     string                 `json:"program_name"`
	Scopes   []string               `json:"scopes"`
	OOScopes []string               `json:"ooscopes"`
	Config   map[string]interface{} `json:"config"`
}

var requiredProgramKeys = []string{"program_name", "scopes", "ooscopes", "config"}

// SyncPrograms upserts every *.json program definition in dir. Unreadable,
// malformed or incomplete files are skipped and reported; they never stop
// the batch.
func (p *Pipeline) SyncPrograms(ctx context.Context, dir string) (*StageReport, error) {
	report := newReport("sync", p.RunID)
	log := p.log().With(logger.String("stage", report.Stage))

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("programs dir: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report.finish(), err
		}
		report.Targets++

		def, err := readProgramFile(file)
		if err != nil {
			log.Error("skipping program file", logger.String("file", file), logger.Error(err))
			report.fail(filepath.Base(file), err)
			continue
		}

		outcome, err := p.Inventory.Programs.Upsert(ctx, inventory.ProgramInput{
			Name:     def.Name,
			Scopes:   def.Scopes,
			OOScopes: def.OOScopes,
			Config:   def.Config,
		})
		report.record(filepath.Base(file), outcome, err)
		if err == nil {
			report.Programs++
			p.detail("%s: %s", def.Name, outcome)
		}
	}

	if len(files) == 0 {
		p.warn(report, "no program definitions in %s", dir)
	}
	log.Info("programs synced", logger.Int("files", report.Targets), logger.Int("programs", report.Programs))
	return report.finish(), nil
}

func readProgramFile(path string) (*programFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, key := range requiredProgramKeys {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			return nil, fmt.Errorf("missing required key %q", key)
		}
	}

	var def programFile
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("invalid program definition: %w", err)
	}
	return &def, nil
}
