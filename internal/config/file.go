package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the data directory when no
// path is given.
const FileName = "config.yaml"

// fileConfig is the YAML layout of a config file. Pointer fields tell an
// absent key from a zero value.
type fileConfig struct {
	DataDir         *string  `yaml:"data_dir"`
	Addr            *string  `yaml:"addr"`
	Camera          *int     `yaml:"camera"`
	PluginDir       *string  `yaml:"plugin_dir"`
	MotionThreshold *float64 `yaml:"motion_threshold"`
	Tray            *bool    `yaml:"tray"`

	Log struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`

	Blink struct {
		Hold      *string  `yaml:"hold"` // Go duration, e.g. 150ms
		Tolerance *float64 `yaml:"tolerance"`
	} `yaml:"blink"`
}

// LoadFile overlays the YAML file at path on base. Unknown keys are an
// error. An empty file changes nothing.
func LoadFile(base Config, path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return fc.apply(base)
}

// LoadDefaultFile overlays <DataDir>/config.yaml on base when that file
// exists.
func LoadDefaultFile(base Config) (Config, error) {
	path := filepath.Join(base.DataDir, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	return LoadFile(base, path)
}

func (fc *fileConfig) apply(base Config) (Config, error) {
	c := base

	if fc.DataDir != nil {
		c.DataDir = *fc.DataDir
		if fc.PluginDir == nil {
			c.PluginDir = filepath.Join(c.DataDir, "plugins")
		}
	}
	if fc.Addr != nil {
		c.Addr = *fc.Addr
	}
	if fc.Camera != nil {
		c.CameraID = *fc.Camera
	}
	if fc.PluginDir != nil {
		c.PluginDir = *fc.PluginDir
	}
	if fc.MotionThreshold != nil {
		c.MotionThreshold = *fc.MotionThreshold
	}
	if fc.Tray != nil {
		c.Tray = *fc.Tray
	}
	if fc.Log.Level != nil {
		c.LogLevel = *fc.Log.Level
	}
	if fc.Log.Format != nil {
		c.LogFormat = *fc.Log.Format
	}
	if fc.Blink.Hold != nil {
		d, err := time.ParseDuration(*fc.Blink.Hold)
		if err != nil {
			return base, fmt.Errorf("parse blink.hold: %w", err)
		}
		c.Blink.HoldDuration = d
	}
	if fc.Blink.Tolerance != nil {
		c.Blink.Tolerance = *fc.Blink.Tolerance
	}

	return c, nil
}
