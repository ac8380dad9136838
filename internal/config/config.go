// Package config loads watchtower settings from an optional YAML file and
// the environment. Environment values win over the file; CLI flags are
// applied by the caller on top of both.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vulnverified/watchtower/pkg/ports"
)

// DefaultPath is read when no --config flag is given. A missing file is not an error.
const DefaultPath = "watchtower.yaml"

type Config struct {
	Database    Database      `yaml:"database"`
	ProgramsDir string        `yaml:"programs_dir"`
	TempDir     string        `yaml:"temp_dir"`
	Log         Log           `yaml:"log"`
	Notify      Notify        `yaml:"notify"`
	Providers   []string      `yaml:"providers"`
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	Resolver    Resolver      `yaml:"resolver"`
	Httpx       Httpx         `yaml:"httpx"`
	Naabu       Naabu         `yaml:"naabu"`
	Wayback     Wayback       `yaml:"wayback"`
	Nuclei      Nuclei        `yaml:"nuclei"`
	Stages      Stages        `yaml:"stages"`
}

type Database struct {
	Driver string `yaml:"driver"` // "sqlite" | "postgres"
	DSN    string `yaml:"dsn"`
}

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Notify struct {
	WebhookURL string        `yaml:"webhook_url"` // empty disables notifications
	Rate       float64       `yaml:"rate"`        // messages per second
	Burst      int           `yaml:"burst"`
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
}

type Resolver struct {
	Mode      string        `yaml:"mode"` // "dnsx" | "native"
	Resolvers []string      `yaml:"resolvers"`
	RateLimit int           `yaml:"rate_limit"`
	Threads   int           `yaml:"threads"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Httpx struct {
	Threads   int    `yaml:"threads"`
	RateLimit int    `yaml:"rate_limit"`
	Timeout   int    `yaml:"timeout"` // seconds, passed through to httpx
	Retries   int    `yaml:"retries"`
	Ports     string `yaml:"ports"`
	UserAgent string `yaml:"user_agent"`
}

type Naabu struct {
	Rate        int    `yaml:"rate"`
	Concurrency int    `yaml:"concurrency"`
	Ports       string `yaml:"ports"` // empty means the built-in top 100
}

type Wayback struct {
	Timeout time.Duration `yaml:"timeout"`
}

type Nuclei struct {
	Templates string `yaml:"templates"`
}

type Stages struct {
	Ports bool `yaml:"ports"` // include port scanning in "run"
}

// Providers known to the enumeration stage.
var KnownProviders = []string{"subfinder", "chaos", "crtsh", "samoscout", "hackertarget", "otx", "axfr"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database:    Database{Driver: "sqlite", DSN: "watchtower.db"},
		ProgramsDir: "programs",
		Log:         Log{Level: "info", Pretty: true},
		Notify: Notify{
			Rate:      1,
			Burst:     5,
			Timeout:   10 * time.Second,
			UserAgent: "watch_tower/1.0",
		},
		Providers:   []string{"subfinder", "chaos", "crtsh", "samoscout"},
		ToolTimeout: 30 * time.Minute,
		Resolver: Resolver{
			Mode:      "dnsx",
			Resolvers: []string{"8.8.4.4", "129.250.35.251", "208.67.222.222"},
			RateLimit: 50,
			Threads:   20,
			Timeout:   3 * time.Second,
		},
		Httpx: Httpx{
			Threads:   30,
			RateLimit: 4,
			Timeout:   10,
			Retries:   1,
			Ports:     "443",
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:108.0) Gecko/20100101 Firefox/108.0",
		},
		Naabu:   Naabu{Rate: 1000, Concurrency: 50},
		Wayback: Wayback{Timeout: 120 * time.Second},
		Nuclei:  Nuclei{Templates: "~/nuclei-templates/http/takeovers/"},
		Stages:  Stages{Ports: true},
	}
}

// Load reads path (if it exists) over the defaults, then applies environment
// overrides. An explicitly requested path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getenv("WATCHTOWER_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getenv("WATCHTOWER_DB_DSN", c.Database.DSN)
	if os.Getenv("WATCHTOWER_DB_DSN") == "" && c.Database.Driver == "postgres" && os.Getenv("DB_HOST") != "" {
		c.Database.DSN = postgresDSN()
	}

	c.ProgramsDir = getenv("WATCHTOWER_PROGRAMS_DIR", c.ProgramsDir)
	c.TempDir = getenv("WATCHTOWER_TEMP_DIR", c.TempDir)
	c.Log.Level = getenv("WATCHTOWER_LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getenvBool("WATCHTOWER_PRETTY_LOG", c.Log.Pretty)
	c.Notify.WebhookURL = getenv("WEBHOOK_URL", c.Notify.WebhookURL)
	c.ToolTimeout = getenvDuration("WATCHTOWER_TOOL_TIMEOUT", c.ToolTimeout)
	c.Httpx.Threads = getenvInt("WATCHTOWER_HTTPX_THREADS", c.Httpx.Threads)
	if v := os.Getenv("WATCHTOWER_PROVIDERS"); v != "" {
		c.Providers = splitAndTrim(v)
	}
}

// postgresDSN assembles a lib/pq URL from the DB_* variables.
func postgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(getenv("DB_HOST", "localhost"), getenv("DB_PORT", "5432")),
		Path:   "/" + getenv("DB_NAME", "watchtower"),
	}
	if user := os.Getenv("DB_USERNAME"); user != "" {
		u.User = url.UserPassword(user, os.Getenv("DB_PASSWORD"))
	}
	q := url.Values{}
	q.Set("sslmode", getenv("DB_SSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

// Validate rejects settings the pipeline cannot act on.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is empty")
	}

	for _, p := range c.Providers {
		if !known(p) {
			return fmt.Errorf("unknown provider %q (known: %s)", p, strings.Join(KnownProviders, ", "))
		}
	}

	switch c.Resolver.Mode {
	case "dnsx", "native":
	default:
		return fmt.Errorf("unknown resolver mode %q", c.Resolver.Mode)
	}
	if c.Resolver.Mode == "native" && len(c.Resolver.Resolvers) == 0 {
		return errors.New("native resolver needs at least one resolver address")
	}

	if c.Notify.WebhookURL != "" {
		u, err := url.Parse(c.Notify.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid webhook url %q", c.Notify.WebhookURL)
		}
	}
	if c.ToolTimeout < 0 {
		return errors.New("tool_timeout must not be negative")
	}
	if c.Naabu.Ports != "" {
		if _, err := ports.Parse(c.Naabu.Ports); err != nil {
			return fmt.Errorf("naabu ports: %w", err)
		}
	}
	return nil
}

func known(provider string) bool {
	for _, p := range KnownProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
