package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vulnverified/watchtower/internal/engine"
	"github.com/vulnverified/watchtower/internal/inventory"
)

func TestProgress_VerboseAndSilent(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, false, false, true)
	p.Stage(1, 4, "Enumerating subdomains")
	p.Detail("hidden")
	p.Warn("subfinder failed")

	out := buf.String()
	if !strings.Contains(out, "[1/4] Enumerating subdomains") {
		t.Errorf("missing stage line: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("detail printed without verbose: %q", out)
	}
	if !strings.Contains(out, "! subfinder failed") {
		t.Errorf("missing warning: %q", out)
	}

	buf.Reset()
	silent := NewProgress(&buf, true, true, true)
	silent.Stage(1, 1, "x")
	silent.Warn("y")
	silent.Complete()
	if buf.Len() != 0 {
		t.Errorf("silent progress wrote %q", buf.String())
	}
}

func TestWriteStageTable_NoColor(t *testing.T) {
	var buf bytes.Buffer
	WriteStageTable(&buf, []*engine.StageReport{
		{Stage: "enumerate", Programs: 2, Targets: 3, Inserted: 5, Unchanged: 1, Duration: 1500 * time.Millisecond},
	}, true)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Stage") || !strings.Contains(lines[1], "-+-") {
		t.Errorf("unexpected header: %q", lines[:2])
	}
	for _, want := range []string{"enumerate", "| 5 ", "1.5s"} {
		if !strings.Contains(lines[2], want) {
			t.Errorf("row %q missing %q", lines[2], want)
		}
	}
}

func TestWriteStageTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	WriteStageTable(&buf, nil, true)
	if !strings.Contains(buf.String(), "No stages ran") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteRunSummary_Notes(t *testing.T) {
	var buf bytes.Buffer
	WriteRunSummary(&buf, &engine.RunResult{
		RunID: "run-1",
		Stages: []*engine.StageReport{{
			Stage:    "resolve",
			Dangling: []engine.DanglingCNAME{{Program: "acme", Host: "old.acme.com", CNAME: "acme.herokuapp.com", Status: "NXDOMAIN"}},
			Warnings: []string{"dnsx failed"},
			Errors:   []engine.StageError{{Scope: "acme", Message: "db down"}},
		}},
	}, true)

	out := buf.String()
	for _, want := range []string{"run-1", "1 potential dangling CNAMEs", "old.acme.com -> acme.herokuapp.com", "dnsx failed", "acme: db down"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteURLSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteURLSummary(&buf, &engine.URLScanResult{
		Program:          "acme",
		Scopes:           []string{"acme.com"},
		ParametersSource: "embedded:params.txt",
		ParametersLoaded: 10,
		TotalURLs:        4,
		UniqueURLs:       3,
		MatchCount:       1,
		Matches:          []engine.URLMatch{{URL: "https://acme.com/?id=1", Scope: "acme.com", Parameters: []string{"id"}}},
		Persisted:        &inventory.BulkResult{Inserted: 1},
	}, true)

	out := buf.String()
	for _, want := range []string{"Program: acme", "embedded:params.txt (10 entries)", "4 total, 3 unique", "https://acme.com/?id=1", "1 inserted, 0 updated"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, &engine.StageReport{Stage: "ports", Inserted: 2}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["stage"] != "ports" || decoded["inserted"] != float64(2) {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abcdefghijkl", 8); got != "abcde..." {
		t.Errorf("truncate = %q", got)
	}
}
