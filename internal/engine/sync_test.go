package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSyncPrograms(t *testing.T) {
	h := newHarness(t, Sources{})
	dir := t.TempDir()
	writeFile(t, dir, "acme.json", `{"program_name":"Acme","scopes":["acme.com","ACME.io"],"ooscopes":["blog.acme.com"],"config":{"ports":true}}`)
	writeFile(t, dir, "broken.json", `{"program_name":`)
	writeFile(t, dir, "partial.json", `{"program_name":"globex","scopes":["globex.com"],"ooscopes":[]}`)
	writeFile(t, dir, "nullcfg.json", `{"program_name":"initech","scopes":[],"ooscopes":[],"config":null}`)
	writeFile(t, dir, "notes.txt", `ignored`)

	report, err := h.p.SyncPrograms(context.Background(), dir)
	if err != nil {
		t.Fatalf("SyncPrograms: %v", err)
	}
	if report.Targets != 4 {
		t.Errorf("files = %d, want 4", report.Targets)
	}
	if report.Inserted != 1 {
		t.Errorf("inserted = %d, want 1", report.Inserted)
	}
	if len(report.Errors) != 3 {
		t.Fatalf("errors = %+v, want 3 skipped files", report.Errors)
	}
	var missing int
	for _, e := range report.Errors {
		if strings.Contains(e.Message, "missing required key") {
			missing++
		}
	}
	if missing != 2 {
		t.Errorf("missing-key errors = %d, want 2", missing)
	}

	prog, err := h.inv.Programs.Get(context.Background(), "acme")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(prog.Scopes, ",") != "acme.com,acme.io" {
		t.Errorf("scopes = %v", prog.Scopes)
	}

	again, _ := h.p.SyncPrograms(context.Background(), dir)
	if again.Unchanged != 1 || again.Inserted != 0 {
		t.Errorf("second sync = %+v", again)
	}
}

func TestSyncPrograms_MissingDir(t *testing.T) {
	h := newHarness(t, Sources{})
	if _, err := h.p.SyncPrograms(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}
