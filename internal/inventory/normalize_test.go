package inventory

import (
	"strings"
	"testing"
)

func TestExtractScope(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"api.staging.acme.com", "acme.com"},
		{"WWW.Acme.COM", "acme.com"},
		{"acme.com", "acme.com"},
		{"acme.com.", "acme.com"},
		{"localhost", "localhost"},
		{"foo.co.uk", "co.uk"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractScope(tt.host); got != tt.want {
			t.Errorf("ExtractScope(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestCoerceStringSet(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, ""},
		{"slice", []string{"2.2.2.2", "1.1.1.1", "2.2.2.2"}, "1.1.1.1,2.2.2.2"},
		{"any slice", []interface{}{"B.example.com", nil, "a.example.com"}, "a.example.com,b.example.com"},
		{"json array string", `["1.1.1.1", "1.1.1.1", "3.3.3.3"]`, "1.1.1.1,3.3.3.3"},
		{"json string", `"1.1.1.1, 2.2.2.2"`, "1.1.1.1,2.2.2.2"},
		{"delimited", "1.1.1.1; 2.2.2.2 3.3.3.3,,", "1.1.1.1,2.2.2.2,3.3.3.3"},
		{"blank", "   ", ""},
		{"broken json falls back", `[1.1.1.1`, "[1.1.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(CoerceStringSet(tt.in), ",")
			if got != tt.want {
				t.Errorf("CoerceStringSet(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStringSet_ScanKeepsCase(t *testing.T) {
	var s StringSet
	if err := s.Scan([]byte(`["PHP","Nginx"]`)); err != nil {
		t.Fatal(err)
	}
	if strings.Join(s, ",") != "Nginx,PHP" {
		t.Errorf("Scan = %v", s)
	}

	if err := s.Scan("a.com, b.com"); err != nil {
		t.Fatal(err)
	}
	if strings.Join(s, ",") != "a.com,b.com" {
		t.Errorf("legacy Scan = %v", s)
	}

	if err := s.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestStringSet_ValueNil(t *testing.T) {
	var s StringSet
	v, err := s.Value()
	if err != nil || v != "[]" {
		t.Errorf("Value() = %v, %v; want \"[]\"", v, err)
	}
}

func TestJSONMap_Equal(t *testing.T) {
	a := JSONMap{"b": 1, "a": "x"}
	b := JSONMap{"a": "x", "b": 1}
	if !a.Equal(b) {
		t.Error("maps with same content should be equal")
	}
	if a.Equal(JSONMap{"a": "y", "b": 1}) {
		t.Error("different maps reported equal")
	}
	var empty JSONMap
	if !empty.Equal(JSONMap{}) {
		t.Error("nil and empty maps should be equal")
	}
}

func TestTimestamp_Scan(t *testing.T) {
	var ts Timestamp
	if err := ts.Scan("2024-05-01T12:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if ts.Year() != 2024 || ts.Hour() != 12 {
		t.Errorf("parsed %v", ts.Time)
	}
	if err := ts.Scan("yesterday"); err == nil {
		t.Error("expected error for unparseable time")
	}
}
