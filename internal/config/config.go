// Package config loads the daemon's runtime settings. Calling Load again
// replaces the active settings; the package does not watch or re-read the
// file on its own, and ReloadPeriod is not read anywhere in the daemon.
package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the daemon's full set of runtime-tunable settings. Zero values
// are not meaningful defaults; callers should start from Load, not a bare
// Config literal.
type Config struct {
	Device       string        `yaml:"device"`
	InvertX      bool          `yaml:"invert_x"`
	InvertY      bool          `yaml:"invert_y"`
	Width        int           `yaml:"width"`
	Height       int           `yaml:"height"`
	LogLevel     string        `yaml:"log_level"`
	StreamAddr   string        `yaml:"stream_addr"`
	ReloadPeriod time.Duration `yaml:"reload_period"`
}

var defaultConfig = Config{
	LogLevel:     "info",
	StreamAddr:   ":8077",
	ReloadPeriod: 30 * time.Second,
}

var (
	stateLock sync.RWMutex
	state     = defaultConfig
)

// Load reads path as YAML over the built-in defaults and replaces the
// package's current configuration. Env-var overrides are applied on top
// of the file, matching the layering cmd/iptsd's flags use over both.
func Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	cfg := defaultConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return err
	}
	applyEnvOverrides(&cfg)

	stateLock.Lock()
	state = cfg
	stateLock.Unlock()
	return nil
}

// Default returns the built-in configuration used before any file or env
// override is applied.
func Default() Config {
	return defaultConfig
}

// Snapshot returns a copy of the currently active configuration. Safe to
// call concurrently with Load.
func Snapshot() Config {
	stateLock.RLock()
	defer stateLock.RUnlock()
	return state
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IPTSD_DEVICE"); v != "" {
		cfg.Device = v
	}
	if v, ok := envBool("IPTSD_INVERT_X"); ok {
		cfg.InvertX = v
	}
	if v, ok := envBool("IPTSD_INVERT_Y"); ok {
		cfg.InvertY = v
	}
	if v, ok := envInt("IPTSD_WIDTH"); ok {
		cfg.Width = v
	}
	if v, ok := envInt("IPTSD_HEIGHT"); ok {
		cfg.Height = v
	}
	if v := os.Getenv("IPTSD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("IPTSD_STREAM_ADDR"); v != "" {
		cfg.StreamAddr = v
	}
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
