// Package config holds the viewer session configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pumped-fn/mscan-go/testcase"
)

// Config holds all viewer configuration.
type Config struct {
	// Sources are loaded when the session starts.
	Sources []string `yaml:"sources"`

	// DetailSources maps a record's run id to a document carrying the
	// shared-state detail of that run. It is loaded on first expansion.
	DetailSources map[string]string `yaml:"detail_sources"`

	// Fetching
	Root    string `yaml:"root"`     // local directory sources are resolved against
	BaseURL string `yaml:"base_url"` // remote base; takes precedence over Root
	Timeout string `yaml:"timeout"`  // per-request timeout for remote sources

	// WatchDir, if set, is watched for new or rewritten documents.
	WatchDir string `yaml:"watch_dir"`

	Heatmap HeatmapConfig `yaml:"heatmap"`
	Listing ListingConfig `yaml:"listing"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// HeatmapConfig configures the heatmap stage.
type HeatmapConfig struct {
	// CallOrder overrides the canonical operation order of the axis.
	CallOrder []string `yaml:"call_order"`
	// FacetField splits the heatmap into one grid per distinct value; empty
	// draws a single grid.
	FacetField string `yaml:"facet_field"`
	// MatchField names the list field whose non-emptiness marks a record
	// as matched.
	MatchField string `yaml:"match_field"`
}

// ListingConfig configures the listing stage.
type ListingConfig struct {
	InitialRows int `yaml:"initial_rows"`
	PageRows    int `yaml:"page_rows"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Root:    ".",
		Timeout: "30s",
		Heatmap: HeatmapConfig{
			CallOrder:  append([]string(nil), testcase.DefaultCallSeq...),
			FacetField: testcase.FieldRunID,
			MatchField: testcase.FieldShared,
		},
		Listing: ListingConfig{
			InitialRows: 10,
			PageRows:    100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MSCAN_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("MSCAN_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("MSCAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetTimeout returns the remote fetch timeout.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Listing.InitialRows <= 0 {
		errs = append(errs, fmt.Errorf("listing.initial_rows must be positive, got %d", c.Listing.InitialRows))
	}
	if c.Listing.PageRows <= 0 {
		errs = append(errs, fmt.Errorf("listing.page_rows must be positive, got %d", c.Listing.PageRows))
	}
	if c.Heatmap.MatchField == "" {
		errs = append(errs, errors.New("heatmap.match_field is required"))
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err))
		}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}

	seen := make(map[string]bool, len(c.Heatmap.CallOrder))
	for _, call := range c.Heatmap.CallOrder {
		if seen[call] {
			errs = append(errs, fmt.Errorf("call %q listed twice in heatmap.call_order", call))
		}
		seen[call] = true
	}

	return errors.Join(errs...)
}

// CallOrder returns the configured call order, falling back to the default.
func (c *Config) CallOrder() *testcase.CallOrder {
	if len(c.Heatmap.CallOrder) == 0 {
		return testcase.DefaultOrder
	}
	return testcase.NewCallOrder(c.Heatmap.CallOrder)
}
