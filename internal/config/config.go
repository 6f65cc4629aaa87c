// Package config loads cartsync settings.
//
// Precedence, lowest first: built-in defaults, the YAML file, CARTSYNC_*
// environment variables, then whatever the caller overrides (CLI flags).
// The merged result is checked against an embedded CUE schema before use.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables read by Load.
const (
	EnvBaseURL  = "CARTSYNC_BASE_URL"
	EnvDomain   = "CARTSYNC_DOMAIN"
	EnvDatabase = "CARTSYNC_DATABASE"
	EnvBusDir   = "CARTSYNC_BUS_DIR"
)

// Config is the resolved configuration.
type Config struct {
	// BaseURL is the root of the remote cart API.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Domain is the storefront origin. Tabs of one domain share a bus.
	Domain   string `yaml:"domain" json:"domain"`
	Database string `yaml:"database" json:"database"`
	BusDir   string `yaml:"bus_dir" json:"bus_dir"`
	// Timeout bounds each gateway call, in time.ParseDuration syntax.
	Timeout  string `yaml:"timeout" json:"timeout"`
	Rollback string `yaml:"rollback" json:"rollback"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		BaseURL:  "http://localhost:8787",
		Domain:   "localhost",
		Database: "cartsync.db",
		BusDir:   filepath.Join(os.TempDir(), "cartsync-bus"),
		Timeout:  "10s",
		Rollback: "line",
		LogLevel: "info",
	}
}

// Load resolves the configuration from defaults, the file at path (skipped
// when empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays the non-empty fields of a YAML file. Unknown keys are
// an error.
func (c *Config) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	var file Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.overlay(file)
	return nil
}

// overlay copies the non-empty fields of o into c.
func (c *Config) overlay(o Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.BaseURL, o.BaseURL)
	set(&c.Domain, o.Domain)
	set(&c.Database, o.Database)
	set(&c.BusDir, o.BusDir)
	set(&c.Timeout, o.Timeout)
	set(&c.Rollback, o.Rollback)
	set(&c.LogLevel, o.LogLevel)
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.overlay(Config{
		BaseURL:  getenv(EnvBaseURL),
		Domain:   getenv(EnvDomain),
		Database: getenv(EnvDatabase),
		BusDir:   getenv(EnvBusDir),
	})
}

// Override applies caller-supplied values (CLI flags) on top and
// re-validates.
func (c *Config) Override(o Config) error {
	c.overlay(o)
	return c.Validate()
}

// Validate checks the configuration against the embedded CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// TimeoutDuration returns Timeout parsed. Validate guarantees the syntax.
func (c Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// BusPath is the spool directory for this domain.
func (c Config) BusPath() string {
	return filepath.Join(c.BusDir, sanitize(c.Domain))
}

// Level maps LogLevel to a slog level.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// sanitize makes a domain safe as a single path element.
func sanitize(domain string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, domain)
}
