// Package config loads the user-editable controller settings from a YAML
// file. The file is tiny and re-read on every control tick so edits take
// effect without a restart. Trigger arming flags are deliberately NOT part
// of this record — they are runtime state owned by internal/trigger, so a
// reload can never reset them.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/ferment-control/internal/control"
)

// Duration wraps time.Duration for YAML ("1m", "90s", ...).
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the on-disk controller configuration.
//
// LowLimit <= HighLimit is assumed, not validated: an inverted band is a
// user setup error and the policy's documented evaluation order decides
// what happens. Adding validation here would silently change control
// behavior for existing installs.
type Config struct {
	EnableHeating bool    `yaml:"enable_heating"`
	EnableCooling bool    `yaml:"enable_cooling"`
	LowLimit      float64 `yaml:"low_limit"`
	HighLimit     float64 `yaml:"high_limit"`

	// SensorID is the assigned Tilt color (empty = manual/external source,
	// liveness checks disabled). SensorAssignedAt starts the grace window.
	SensorID         string    `yaml:"sensor_id"`
	SensorAssignedAt time.Time `yaml:"sensor_assigned_at"`

	TickInterval Duration `yaml:"tick_interval"`

	Broker      string `yaml:"broker"`
	HeatingPlug string `yaml:"heating_plug"`
	CoolingPlug string `yaml:"cooling_plug"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Limits extracts the slice of config the control policy consumes.
func (c *Config) Limits() control.Limits {
	return control.Limits{
		Low:            c.LowLimit,
		High:           c.HighLimit,
		HeatingEnabled: c.EnableHeating,
		CoolingEnabled: c.EnableCooling,
	}
}

// Parse decodes and applies defaults and env overrides.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = Duration(time.Minute)
	}
	if cfg.Broker == "" {
		cfg.Broker = getEnv("FERMENT_BROKER", "tcp://localhost:1883")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = getEnv("FERMENT_LOG_LEVEL", "info")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = getEnv("FERMENT_LOG_FORMAT", "json")
	}
	if cfg.HeatingPlug == "" {
		cfg.HeatingPlug = "ferment-heat"
	}
	if cfg.CoolingPlug == "" {
		cfg.CoolingPlug = "ferment-cool"
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Store re-reads the config file per tick, falling back to the last good
// snapshot when the file is transiently unreadable or invalid (e.g. an
// editor mid-save).
type Store struct {
	path string

	mu   sync.Mutex
	last *Config
}

// NewStore creates a store for the given file path and performs an initial
// load so a broken file is caught at startup rather than first tick.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load returns a fresh snapshot, or the last good one together with the
// error that prevented reloading. The returned Config must be treated as
// read-only.
func (s *Store) Load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return s.lastGood(fmt.Errorf("read config: %w", err))
	}
	cfg, err := Parse(data)
	if err != nil {
		return s.lastGood(err)
	}

	s.mu.Lock()
	s.last = cfg
	s.mu.Unlock()
	return cfg, nil
}

func (s *Store) lastGood(err error) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil {
		return s.last, err
	}
	return nil, err
}
