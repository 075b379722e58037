package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `
data_dir: /var/lib/palak
addr: 127.0.0.1:9000
camera: 1
tray: true
log:
  level: debug
blink:
  hold: 200ms
  tolerance: 0.05
`)

	c, err := LoadFile(Default(), path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if c.DataDir != "/var/lib/palak" || c.PluginDir != filepath.Join("/var/lib/palak", "plugins") {
		t.Errorf("dirs = %q, %q", c.DataDir, c.PluginDir)
	}
	if c.Addr != "127.0.0.1:9000" || c.CameraID != 1 || !c.Tray {
		t.Errorf("config = %+v", c)
	}
	if c.LogLevel != "debug" || c.LogFormat != "console" {
		t.Errorf("log = %q %q", c.LogLevel, c.LogFormat)
	}
	if c.Blink.HoldDuration != 200*time.Millisecond || c.Blink.Tolerance != 0.05 {
		t.Errorf("blink = %+v", c.Blink)
	}
	if c.MotionThreshold != Default().MotionThreshold {
		t.Errorf("absent key should keep the base value, got %v", c.MotionThreshold)
	}
}

func TestLoadFile_ZeroValues(t *testing.T) {
	base := Default()
	base.Tray = true
	base.Blink.Tolerance = 0.2

	path := writeFile(t, t.TempDir(), "tray: false\nblink:\n  tolerance: 0\n")
	c, err := LoadFile(base, path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if c.Tray || c.Blink.Tolerance != 0 {
		t.Errorf("explicit zero values should override, got tray=%v tolerance=%v", c.Tray, c.Blink.Tolerance)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "colour: blue\n"},
		{"bad hold", "blink:\n  hold: soon\n"},
		{"wrong type", "camera: front\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.body)
			if _, err := LoadFile(Default(), path); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if _, err := LoadFile(Default(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadFile_Empty(t *testing.T) {
	path := writeFile(t, t.TempDir(), "")
	c, err := LoadFile(Default(), path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if c != Default() {
		t.Errorf("empty file should change nothing, got %+v", c)
	}
}

func TestLoadDefaultFile(t *testing.T) {
	base := Default()
	base.DataDir = t.TempDir()

	c, err := LoadDefaultFile(base)
	if err != nil {
		t.Fatalf("LoadDefaultFile() without a file error = %v", err)
	}
	if c != base {
		t.Errorf("missing file should change nothing")
	}

	writeFile(t, base.DataDir, "addr: :7000\n")
	c, err = LoadDefaultFile(base)
	if err != nil {
		t.Fatalf("LoadDefaultFile() error = %v", err)
	}
	if c.Addr != ":7000" {
		t.Errorf("Addr = %q, want :7000", c.Addr)
	}
}
