// YAML playback config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults shared by every preset.
const (
	DefaultInterRouteDelay = 5 * time.Second
	DefaultIterations      = 100
)

// PlaybackConfig is the single configuration surface for a playback run.
type PlaybackConfig struct {
	Preset          string        `yaml:"preset,omitempty"`
	RouteFiles      []string      `yaml:"route_files"`
	PerPointDelay   time.Duration `yaml:"per_point_delay"`
	InterRouteDelay time.Duration `yaml:"inter_route_delay"`
	Iterations      int           `yaml:"iterations"`
	RequestTimeout  time.Duration `yaml:"request_timeout,omitempty"`
	RateLimit       float64       `yaml:"rate_limit,omitempty"` // store requests per second, 0 = unlimited
	StoreURL        string        `yaml:"store_url,omitempty"`
}

var presets = map[string]PlaybackConfig{
	"route3": {
		Preset: "route3",
		RouteFiles: []string{
			"segments/route3a.json",
			"segments/route3b.json",
			"segments/route3c.json",
			"segments/route3d.json",
			"segments/route3e.json",
		},
		PerPointDelay:   time.Second,
		InterRouteDelay: DefaultInterRouteDelay,
		Iterations:      DefaultIterations,
	},
	"route3-short": {
		Preset: "route3-short",
		RouteFiles: []string{
			"segments/route3a.json",
			"segments/route3b.json",
			"segments/route3c.json",
		},
		PerPointDelay:   500 * time.Millisecond,
		InterRouteDelay: DefaultInterRouteDelay,
		Iterations:      DefaultIterations,
	},
}

// Preset returns a copy of the named built-in configuration.
func Preset(name string) (*PlaybackConfig, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	p.RouteFiles = append([]string(nil), p.RouteFiles...)
	return &p, nil
}

// PresetNames lists the built-in presets.
func PresetNames() []string {
	return []string{"route3", "route3-short"}
}

// Load reads a YAML playback config, validates it against the embedded CUE
// schema and fills unset values from the named preset (if any) and defaults.
// Relative route paths are resolved against the config file's directory.
func Load(path string) (*PlaybackConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := ValidateWithCue(path, data); err != nil {
		return nil, err
	}
	var file PlaybackConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &PlaybackConfig{}
	if file.Preset != "" {
		if cfg, err = Preset(file.Preset); err != nil {
			return nil, err
		}
	}
	cfg.merge(file)

	if len(file.RouteFiles) > 0 {
		base := filepath.Dir(path)
		for i, f := range cfg.RouteFiles {
			if !filepath.IsAbs(f) {
				cfg.RouteFiles[i] = filepath.Join(base, f)
			}
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *PlaybackConfig) merge(o PlaybackConfig) {
	if len(o.RouteFiles) > 0 {
		c.RouteFiles = append([]string(nil), o.RouteFiles...)
	}
	if o.PerPointDelay != 0 {
		c.PerPointDelay = o.PerPointDelay
	}
	if o.InterRouteDelay != 0 {
		c.InterRouteDelay = o.InterRouteDelay
	}
	if o.Iterations != 0 {
		c.Iterations = o.Iterations
	}
	if o.RequestTimeout != 0 {
		c.RequestTimeout = o.RequestTimeout
	}
	if o.RateLimit != 0 {
		c.RateLimit = o.RateLimit
	}
	if o.StoreURL != "" {
		c.StoreURL = o.StoreURL
	}
}

// ApplyDefaults fills the inter-route pause and iteration count when unset.
func (c *PlaybackConfig) ApplyDefaults() {
	if c.InterRouteDelay == 0 {
		c.InterRouteDelay = DefaultInterRouteDelay
	}
	if c.Iterations == 0 {
		c.Iterations = DefaultIterations
	}
}

// Validate checks the values the feeder relies on.
func (c *PlaybackConfig) Validate() error {
	var errs []error
	if len(c.RouteFiles) == 0 {
		errs = append(errs, errors.New("route_files must not be empty"))
	}
	if c.PerPointDelay < 0 {
		errs = append(errs, fmt.Errorf("per_point_delay must not be negative: %s", c.PerPointDelay))
	}
	if c.InterRouteDelay < 0 {
		errs = append(errs, fmt.Errorf("inter_route_delay must not be negative: %s", c.InterRouteDelay))
	}
	if c.Iterations < 1 {
		errs = append(errs, fmt.Errorf("iterations must be at least 1: %d", c.Iterations))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative: %v", c.RateLimit))
	}
	return errors.Join(errs...)
}
