package wordlist

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefault_NonEmpty(t *testing.T) {
	words := Default()
	if len(words) < 50 {
		t.Errorf("expected at least 50 entries, got %d", len(words))
	}
}

func TestDefault_NoDuplicatesOrComments(t *testing.T) {
	seen := make(map[string]bool)
	for _, w := range Default() {
		if w == "" || w[0] == '#' {
			t.Errorf("bad entry %q", w)
		}
		if seen[w] {
			t.Errorf("duplicate entry: %s", w)
		}
		seen[w] = true
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.txt")
	content := "# custom\nID\n\n  redirect  \nid\n#skip\nnext\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	words, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"id", "redirect", "next"}
	if !reflect.DeepEqual(words, want) {
		t.Errorf("Load = %v, want %v", words, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_LineTooLong(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.txt")
	content := "id\n" + strings.Repeat("x", 100*1024) + "\nnext\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if words, err := Load(path); err == nil {
		t.Errorf("Load = %v, want error for oversized line", words)
	}
	if _, _, err := Resolve(path); err == nil {
		t.Error("Resolve: expected error for oversized line")
	}
}

func TestResolve(t *testing.T) {
	words, source, err := Resolve("")
	if err != nil || source != DefaultSource || len(words) == 0 {
		t.Errorf("Resolve(\"\") = %d words, %q, %v", len(words), source, err)
	}

	path := filepath.Join(t.TempDir(), "p.txt")
	os.WriteFile(path, []byte("q\n"), 0o600)
	words, source, err = Resolve(path)
	if err != nil || source != path || !reflect.DeepEqual(words, []string{"q"}) {
		t.Errorf("Resolve(path) = %v, %q, %v", words, source, err)
	}
}
