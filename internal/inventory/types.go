package inventory

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Outcome classifies what an upsert did.
type Outcome int

const (
	Unchanged Outcome = iota
	Inserted
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// StringSet is a deduplicated, sorted list stored as a JSON array.
type StringSet []string

// Equal reports whether both sets hold the same members. Both sides are
// expected to be canonical (sorted and deduplicated).
func (s StringSet) Equal(other StringSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Union returns the canonical union of s and other.
func (s StringSet) Union(other StringSet) StringSet {
	merged := make([]string, 0, len(s)+len(other))
	merged = append(merged, s...)
	merged = append(merged, other...)
	return NewStringSet(merged...)
}

func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON array as stored. Anything else is treated as a legacy
// value and goes through CoerceStringSet.
func (s *StringSet) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = StringSet{}
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("StringSet: cannot scan %T", src)
	}

	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		*s = NewStringSet(items...)
		return nil
	}
	*s = CoerceStringSet(raw)
	return nil
}

// JSONMap is a free-form JSON object column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("JSONMap: cannot scan %T", src)
	}
	out := JSONMap{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("JSONMap: %w", err)
		}
	}
	*m = out
	return nil
}

// Equal compares the canonical JSON encodings.
func (m JSONMap) Equal(other JSONMap) bool {
	a, errA := m.Value()
	b, errB := other.Value()
	return errA == nil && errB == nil && a == b
}

// Timestamp stores times as RFC 3339 text so sqlite and postgres scan the same.
type Timestamp struct {
	time.Time
}

func (t Timestamp) Value() (driver.Value, error) {
	return t.UTC().Format(time.RFC3339Nano), nil
}

func (t *Timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("Timestamp: cannot scan %T", src)
	}
}

func (t *Timestamp) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("Timestamp: unrecognized time %q", s)
}

// Program is a tracked target and its in-scope domains.
type Program struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"program_name" json:"program_name"`
	Scopes    StringSet `db:"scopes" json:"scopes"`
	OOScopes  StringSet `db:"ooscopes" json:"ooscopes"`
	Config    JSONMap   `db:"config" json:"config"`
	CreatedAt Timestamp `db:"created_at" json:"created_at"`
	UpdatedAt Timestamp `db:"updated_at" json:"updated_at"`
}

type Subdomain struct {
	ID        int64     `db:"id" json:"id"`
	Program   string    `db:"program" json:"program"`
	Subdomain string    `db:"subdomain" json:"subdomain"`
	Scope     string    `db:"scope" json:"scope"`
	Provider  string    `db:"provider" json:"provider"`
	CreatedAt Timestamp `db:"created_at" json:"created_at"`
}

type LiveSubdomain struct {
	ID         int64     `db:"id" json:"id"`
	Program    string    `db:"program" json:"program"`
	Subdomain  string    `db:"subdomain" json:"subdomain"`
	Scope      string    `db:"scope" json:"scope"`
	IPs        StringSet `db:"ips" json:"ips"`
	CDN        StringSet `db:"cdn" json:"cdn"`
	CreatedAt  Timestamp `db:"created_at" json:"created_at"`
	LastUpdate Timestamp `db:"last_update" json:"last_update"`
}

type HTTPService struct {
	ID         int64     `db:"id" json:"id"`
	Program    string    `db:"program" json:"program"`
	Subdomain  string    `db:"subdomain" json:"subdomain"`
	Scope      string    `db:"scope" json:"scope"`
	IPs        StringSet `db:"ips" json:"ips"`
	Tech       StringSet `db:"tech" json:"tech"`
	Title      string    `db:"title" json:"title"`
	StatusCode int       `db:"status_code" json:"status_code"`
	Headers    JSONMap   `db:"headers" json:"headers"`
	URL        string    `db:"url" json:"url"`
	FinalURL   string    `db:"final_url" json:"final_url"`
	Favicon    string    `db:"favicon" json:"favicon"`
	CreatedAt  Timestamp `db:"created_at" json:"created_at"`
	LastUpdate Timestamp `db:"last_update" json:"last_update"`
}

type Port struct {
	ID         int64     `db:"id" json:"id"`
	Program    string    `db:"program" json:"program"`
	Subdomain  string    `db:"subdomain" json:"subdomain"`
	Host       string    `db:"host" json:"host"`
	Port       int       `db:"port" json:"port"`
	Protocol   string    `db:"protocol" json:"protocol"`
	Service    string    `db:"service" json:"service"`
	Source     string    `db:"source" json:"source"`
	Metadata   JSONMap   `db:"metadata" json:"metadata"`
	CreatedAt  Timestamp `db:"created_at" json:"created_at"`
	LastUpdate Timestamp `db:"last_update" json:"last_update"`
}

type URLRecord struct {
	ID          int64     `db:"id" json:"id"`
	Program     string    `db:"program" json:"program"`
	Scope       string    `db:"scope" json:"scope"`
	URL         string    `db:"url" json:"url"`
	Parameters  StringSet `db:"parameters" json:"parameters"`
	Source      string    `db:"source" json:"source"`
	Occurrences int       `db:"occurrences" json:"occurrences"`
	FirstSeen   Timestamp `db:"first_seen" json:"first_seen"`
	LastSeen    Timestamp `db:"last_seen" json:"last_seen"`
}
