package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"trace", "trace"},
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"warning", "warn"},
		{"error", "error"},
		{"off", "disabled"},
		{"", "info"},
		{"  nonsense  ", "info"},
	}
	for _, c := range cases {
		if got := parseLevel(c.in).String(); got != c.want {
			t.Errorf("parseLevel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNew(t *testing.T) {
	t.Run("json format writes structured lines", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Options{Level: "info", Format: "json", Service: "palak", Writer: &buf})

		l.Info().Str("eye", "left").Msg("blink started")

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
		}
		if line["message"] != "blink started" {
			t.Errorf("expected message field, got %v", line["message"])
		}
		if line["eye"] != "left" {
			t.Errorf("expected eye field, got %v", line["eye"])
		}
		if line["service"] != "palak" {
			t.Errorf("expected service field, got %v", line["service"])
		}
	})

	t.Run("level filters lower events", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Options{Level: "warn", Format: "json", Writer: &buf})

		l.Info().Msg("hidden")
		if buf.Len() != 0 {
			t.Errorf("expected info to be filtered, got %q", buf.String())
		}

		l.Warn().Msg("shown")
		if !strings.Contains(buf.String(), "shown") {
			t.Errorf("expected warn line, got %q", buf.String())
		}
	})

	t.Run("console format is human readable", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Options{Level: "debug", Writer: &buf})

		l.Debug().Msg("pipeline idle")
		if !strings.Contains(buf.String(), "pipeline idle") {
			t.Errorf("expected console line, got %q", buf.String())
		}
		if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
			t.Errorf("console output should not be JSON, got %q", buf.String())
		}
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PALAK_LOG_LEVEL", "debug")
	t.Setenv("PALAK_LOG_FORMAT", "json")

	opt := FromEnv()
	if opt.Level != "debug" || opt.Format != "json" {
		t.Errorf("unexpected options from env: %+v", opt)
	}
}

func TestWith(t *testing.T) {
	if With("") != Get() {
		t.Error("empty component should return the root logger")
	}
	if With("pipeline") == nil {
		t.Error("expected a child logger")
	}
}
