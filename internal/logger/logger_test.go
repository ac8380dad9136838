package logger

import "testing"

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		if parseLevel(lvl) == nil {
			t.Errorf("parseLevel(%q) = nil, want a level", lvl)
		}
	}
	if parseLevel("verbose") != nil {
		t.Error("parseLevel(\"verbose\") should be nil")
	}
}

func TestNew_ProductionAndPretty(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		l, err := New("debug", pretty)
		if err != nil {
			t.Fatalf("New(pretty=%v): %v", pretty, err)
		}
		l.With(String("run_id", "abc")).Debug("hello", Int("n", 1))
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("discarded")
	l.Errorf("discarded %d", 1)
	if err := l.Sync(); err != nil {
		t.Errorf("Sync() = %v, want nil", err)
	}
}
