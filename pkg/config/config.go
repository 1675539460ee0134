// Package config handles loading and saving glens configuration.
//
// The config file lives at $XDG_CONFIG_HOME/glens/config.yaml, falling back
// to ~/.config/glens/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/graphlens/pkg/colors"
	"github.com/vanderheijden86/graphlens/pkg/engine"
	"github.com/vanderheijden86/graphlens/pkg/expand"
	"github.com/vanderheijden86/graphlens/pkg/graph"
	"github.com/vanderheijden86/graphlens/pkg/layout"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

const appName = "glens"

// Dataset is a named dataset file.
type Dataset struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// StoreConfig tunes derivation work in the graph store.
type StoreConfig struct {
	RecomputeThreshold float64 `yaml:"recompute_threshold,omitempty"` // fraction of touched nodes that forces a full recompute
	TopK               int     `yaml:"top_k,omitempty"`               // per-component summary size
}

// ExpandConfig controls requests to the expansion service.
type ExpandConfig struct {
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Mode    string        `yaml:"mode,omitempty"` // or, and
}

// LayoutConfig controls the simulation lifecycle.
type LayoutConfig struct {
	CooldownTicks      int           `yaml:"cooldown_ticks,omitempty"`
	CooldownTime       time.Duration `yaml:"cooldown_time,omitempty"`
	VisibilityDistance float64       `yaml:"visibility_distance,omitempty"`
	IgnoreSelected     bool          `yaml:"ignore_selected,omitempty"`
	AutoSettle         *bool         `yaml:"auto_settle,omitempty"`
}

// ColorsConfig selects schemes and the theme.
type ColorsConfig struct {
	Theme      string `yaml:"theme,omitempty"`       // light, dark
	NodeScheme string `yaml:"node_scheme,omitempty"` // source[/kind], e.g. degree or property:score/types
	LinkScheme string `yaml:"link_scheme,omitempty"`
}

// WatchConfig controls dataset reloads.
type WatchConfig struct {
	Enabled      bool          `yaml:"enabled,omitempty"`
	Debounce     time.Duration `yaml:"debounce,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	ForcePoll    bool          `yaml:"force_poll,omitempty"`
}

// Config is the top-level configuration for glens.
type Config struct {
	Datasets []Dataset    `yaml:"datasets,omitempty"`
	Mode     string       `yaml:"mode,omitempty"` // view mode loaded by default
	Store    StoreConfig  `yaml:"store,omitempty"`
	Expand   ExpandConfig `yaml:"expand,omitempty"`
	Layout   LayoutConfig `yaml:"layout,omitempty"`
	Colors   ColorsConfig `yaml:"colors,omitempty"`
	Watch    WatchConfig  `yaml:"watch,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode: string(model.ModeOverview),
		Store: StoreConfig{
			RecomputeThreshold: graph.DefaultRecomputeThreshold,
			TopK:               graph.DefaultTopK,
		},
		Expand: ExpandConfig{
			Timeout: expand.DefaultTimeout,
			Mode:    string(model.ExpandOr),
		},
		Layout: LayoutConfig{
			CooldownTicks:      layout.DefaultCooldownTicks,
			CooldownTime:       layout.DefaultCooldownTime,
			VisibilityDistance: layout.DefaultVisibilityDistance,
		},
		Colors: ColorsConfig{
			Theme:      "light",
			NodeScheme: colors.SourceFeature,
			LinkScheme: colors.SourceFeature,
		},
		Watch: WatchConfig{
			Debounce:     200 * time.Millisecond,
			PollInterval: 2 * time.Second,
		},
	}
}

// ConfigDir returns the XDG config directory for glens.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	for i := range cfg.Datasets {
		cfg.Datasets[i].Path = expandHome(cfg.Datasets[i].Path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks values that cannot be fixed up by defaults.
func (c Config) Validate() error {
	if _, err := model.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := model.ParseExpandMode(c.Expand.Mode); err != nil {
		return err
	}
	if c.Layout.VisibilityDistance < 0 {
		return fmt.Errorf("layout.visibility_distance must be positive, got %g", c.Layout.VisibilityDistance)
	}
	if c.Layout.CooldownTicks < 0 || c.Layout.CooldownTime < 0 {
		return fmt.Errorf("layout cooldown must not be negative")
	}
	if _, err := colors.ParseTheme(c.Colors.Theme); err != nil {
		return err
	}
	if _, err := colors.ParseScheme(c.Colors.NodeScheme, colors.TargetNodes); err != nil {
		return fmt.Errorf("colors.node_scheme: %w", err)
	}
	if _, err := colors.ParseScheme(c.Colors.LinkScheme, colors.TargetLinks); err != nil {
		return fmt.Errorf("colors.link_scheme: %w", err)
	}
	return nil
}

// EngineOptions converts the config into engine options.
func (c Config) EngineOptions() (engine.Options, error) {
	if err := c.Validate(); err != nil {
		return engine.Options{}, err
	}
	opts := engine.DefaultOptions()
	opts.Graph = graph.Options{
		RecomputeThreshold: c.Store.RecomputeThreshold,
		TopK:               c.Store.TopK,
	}
	opts.Expand = expand.Options{Timeout: c.Expand.Timeout}
	opts.Layout = layout.Options{
		Cooldown:           layout.Cooldown{Ticks: c.Layout.CooldownTicks, Time: c.Layout.CooldownTime},
		IgnoreSelected:     c.Layout.IgnoreSelected,
		VisibilityDistance: c.Layout.VisibilityDistance,
	}
	if c.Layout.AutoSettle != nil {
		opts.AutoSettle = *c.Layout.AutoSettle
	}
	opts.Theme, _ = colors.ParseTheme(c.Colors.Theme)
	opts.NodeScheme, _ = colors.ParseScheme(c.Colors.NodeScheme, colors.TargetNodes)
	opts.LinkScheme, _ = colors.ParseScheme(c.Colors.LinkScheme, colors.TargetLinks)
	return opts, nil
}

// ViewMode returns the configured default view mode.
func (c Config) ViewMode() model.Mode {
	m, err := model.ParseMode(c.Mode)
	if err != nil {
		return model.ModeOverview
	}
	return m
}

// ExpandMode returns the configured default expand mode.
func (c Config) ExpandMode() model.ExpandMode {
	m, err := model.ParseExpandMode(c.Expand.Mode)
	if err != nil {
		return model.ExpandOr
	}
	return m
}

// FindDataset returns the dataset with the given name, or nil.
func (c Config) FindDataset(name string) *Dataset {
	for i := range c.Datasets {
		if strings.EqualFold(c.Datasets[i].Name, name) {
			return &c.Datasets[i]
		}
	}
	return nil
}

// ResolvedPath returns the dataset path with ~ expanded.
func (d Dataset) ResolvedPath() string {
	return expandHome(d.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
