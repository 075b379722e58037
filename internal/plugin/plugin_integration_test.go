package plugin

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// buildPlugin compiles the bundled plugin name into a fresh plugin
// directory and returns the discovered plugin.
func buildPlugin(t *testing.T, name string) *Plugin {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not available")
	}

	src := filepath.Join("..", "..", "plugins", name)
	manifest, err := os.ReadFile(filepath.Join(src, ManifestFile))
	if err != nil {
		t.Skipf("plugin %s not found: %v", name, err)
	}

	root := t.TempDir()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), manifest, 0644); err != nil {
		t.Fatal(err)
	}

	var m Manifest
	if err := json.Unmarshal(manifest, &m); err != nil {
		t.Fatalf("bad manifest: %v", err)
	}

	build := exec.Command(goBin, "build", "-o", filepath.Join(dir, m.Executable), ".")
	build.Dir = src
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("build %s: %v\n%s", name, err, out)
	}

	mgr := NewManager(root)
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	plug, err := mgr.Get(name)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return plug
}

func TestPlugin_SystemControl_Integration(t *testing.T) {
	plug := buildPlugin(t, "system-control")
	executor := NewExecutor(5000)

	// Only failure paths, so the test leaves the machine alone.
	tests := []struct {
		name string
		req  *Request
	}{
		{"unknown action", &Request{Action: "self-destruct", Trigger: TriggerLeft}},
		{"step out of range", &Request{Action: "volume-up", Trigger: TriggerBoth, Config: json.RawMessage(`{"step": 500}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := executor.Execute(context.Background(), plug, tt.req)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if resp.Success {
				t.Error("expected the plugin to report failure")
			}
			if resp.Error == "" {
				t.Error("failure should carry an error message")
			}
		})
	}
}

func TestPlugin_Keyboard_Integration(t *testing.T) {
	plug := buildPlugin(t, "keyboard")
	executor := NewExecutor(5000)

	if !plug.HasAction("keystroke") {
		t.Fatal("keyboard plugin should declare keystroke")
	}

	// An empty key is rejected before any keystroke is sent.
	req := &Request{
		Action:  "keystroke",
		Trigger: TriggerRight,
		Config:  json.RawMessage(`{"key": ""}`),
	}

	resp, err := executor.Execute(context.Background(), plug, req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for empty key")
	}
}
