// Package plugin discovers and runs the external programs that blink
// triggers are bound to.
package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
)

// Trigger names the eye combination that fires an action.
type Trigger string

const (
	TriggerLeft  Trigger = "left"
	TriggerRight Trigger = "right"
	TriggerBoth  Trigger = "both"
)

// ParseTrigger validates s as a Trigger.
func ParseTrigger(s string) (Trigger, error) {
	switch t := Trigger(s); t {
	case TriggerLeft, TriggerRight, TriggerBoth:
		return t, nil
	}
	return "", fmt.Errorf("unknown trigger %q (want left, right or both)", s)
}

// Manifest describes a plugin's metadata and capabilities. It is read from
// plugin.json in the plugin's directory.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	// Executable is relative to the plugin directory and may not leave it.
	Executable string   `json:"executable"`
	Actions    []string `json:"actions"`
	// Triggers limits which triggers actions may be bound to. Empty means all.
	Triggers     []Trigger       `json:"triggers,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Validate reports the first problem that keeps m from being loaded.
func (m Manifest) Validate() error {
	if m.Name == "" {
		return errors.New("manifest has no name")
	}
	if m.Executable == "" {
		return errors.New("manifest has no executable")
	}
	if !filepath.IsLocal(m.Executable) {
		return fmt.Errorf("executable %q is outside the plugin directory", m.Executable)
	}
	if len(m.Actions) == 0 {
		return errors.New("manifest lists no actions")
	}
	for _, t := range m.Triggers {
		if _, err := ParseTrigger(string(t)); err != nil {
			return err
		}
	}
	return nil
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action  string  `json:"action"`
	Trigger Trigger `json:"trigger"`
	// AtMS is when the blink started, in milliseconds since the session began.
	AtMS   int64           `json:"at_ms"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// HasAction reports whether the manifest lists action.
func (p *Plugin) HasAction(action string) bool {
	for _, a := range p.Manifest.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Accepts reports whether actions of p may be bound to trigger.
func (p *Plugin) Accepts(trigger Trigger) bool {
	if len(p.Manifest.Triggers) == 0 {
		return true
	}
	for _, t := range p.Manifest.Triggers {
		if t == trigger {
			return true
		}
	}
	return false
}
