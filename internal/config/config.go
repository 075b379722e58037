// Package config holds the runtime configuration of palak.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/palak/internal/blink"
)

// EnvPrefix is the prefix of every environment variable read by FromEnv.
const EnvPrefix = "PALAK_"

// Config holds the runtime configuration.
type Config struct {
	DataDir         string
	Addr            string
	CameraID        int
	PluginDir       string
	MotionThreshold float64
	Tray            bool
	LogLevel        string
	LogFormat       string
	Blink           blink.Config
}

// Default returns the default configuration rooted at ~/.palak.
func Default() Config {
	dataDir := ".palak"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".palak")
	}

	return Config{
		DataDir:         dataDir,
		Addr:            ":8080",
		CameraID:        0,
		PluginDir:       filepath.Join(dataDir, "plugins"),
		MotionThreshold: 1.0,
		LogLevel:        "info",
		LogFormat:       "console",
		Blink:           blink.DefaultConfig(),
	}
}

// DBPath returns the SQLite database location.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "palak.db")
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.CameraID < 0 {
		return fmt.Errorf("camera id must not be negative, got %d", c.CameraID)
	}
	if c.MotionThreshold <= 0 {
		return fmt.Errorf("motion threshold must be positive, got %g", c.MotionThreshold)
	}
	return c.Blink.Validate()
}

// FromEnv overlays PALAK_* environment variables on base. Malformed numeric
// values are reported as errors rather than silently ignored.
func FromEnv(base Config) (Config, error) {
	c := base

	if v, ok := lookup("DATA_DIR"); ok {
		c.DataDir = v
		if _, set := lookup("PLUGIN_DIR"); !set {
			c.PluginDir = filepath.Join(v, "plugins")
		}
	}
	if v, ok := lookup("ADDR"); ok {
		c.Addr = v
	}
	if v, ok := lookup("PLUGIN_DIR"); ok {
		c.PluginDir = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := lookup("TRAY"); ok {
		c.Tray = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}

	if v, ok := lookup("CAMERA"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return base, fmt.Errorf("parse %sCAMERA: %w", EnvPrefix, err)
		}
		c.CameraID = n
	}
	if v, ok := lookup("MOTION_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return base, fmt.Errorf("parse %sMOTION_THRESHOLD: %w", EnvPrefix, err)
		}
		c.MotionThreshold = f
	}
	if v, ok := lookup("HOLD"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return base, fmt.Errorf("parse %sHOLD: %w", EnvPrefix, err)
		}
		c.Blink.HoldDuration = d
	}
	if v, ok := lookup("TOLERANCE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return base, fmt.Errorf("parse %sTOLERANCE: %w", EnvPrefix, err)
		}
		c.Blink.Tolerance = f
	}

	return c, nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
