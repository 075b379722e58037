// Package main provides the system-control plugin. It maps blink triggers
// to volume, brightness, media and screen-lock controls, using AppleScript
// on macOS and the usual desktop tools (pactl, brightnessctl, playerctl,
// loginctl) on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action  string          `json:"action"`
	Trigger string          `json:"trigger"` // left, right or both
	AtMS    int64           `json:"at_ms"`
	Config  json.RawMessage `json:"config"`
	Params  json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Options tunes the step of relative actions. It is read from the action's
// stored config.
type Options struct {
	Step int `json:"step"` // percent, default 10
}

// command builds the argv that performs an action with opts.
type command func(opts Options) []string

// commands maps each action to its implementation per GOOS.
var commands = map[string]map[string]command{
	"volume-up": {
		"darwin": appleScript(func(o Options) string {
			return fmt.Sprintf(`set volume output volume ((output volume of (get volume settings)) + %d)`, o.Step)
		}),
		"linux": func(o Options) []string {
			return []string{"pactl", "set-sink-volume", "@DEFAULT_SINK@", "+" + strconv.Itoa(o.Step) + "%"}
		},
	},
	"volume-down": {
		"darwin": appleScript(func(o Options) string {
			return fmt.Sprintf(`set volume output volume ((output volume of (get volume settings)) - %d)`, o.Step)
		}),
		"linux": func(o Options) []string {
			return []string{"pactl", "set-sink-volume", "@DEFAULT_SINK@", "-" + strconv.Itoa(o.Step) + "%"}
		},
	},
	"volume-mute": {
		"darwin": appleScript(fixed(`set volume output muted (not (output muted of (get volume settings)))`)),
		"linux":  argv("pactl", "set-sink-mute", "@DEFAULT_SINK@", "toggle"),
	},
	"brightness-up": {
		"darwin": appleScript(fixed(keyCode(144))),
		"linux": func(o Options) []string {
			return []string{"brightnessctl", "set", "+" + strconv.Itoa(o.Step) + "%"}
		},
	},
	"brightness-down": {
		"darwin": appleScript(fixed(keyCode(145))),
		"linux": func(o Options) []string {
			return []string{"brightnessctl", "set", strconv.Itoa(o.Step) + "%-"}
		},
	},
	"media-play-pause": {
		"darwin": appleScript(fixed(keyCode(100))),
		"linux":  argv("playerctl", "play-pause"),
	},
	"media-next": {
		"darwin": appleScript(fixed(keyCode(101))),
		"linux":  argv("playerctl", "next"),
	},
	"media-prev": {
		"darwin": appleScript(fixed(keyCode(98))),
		"linux":  argv("playerctl", "previous"),
	},
	"lock-screen": {
		"darwin": argv("pmset", "displaysleepnow"),
		"linux":  argv("loginctl", "lock-session"),
	},
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	args, err := resolve(req, runtime.GOOS)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if out, err := exec.Command(args[0], args[1:]...).CombinedOutput(); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v: %s", req.Action, err, out))
		return
	}

	writeSuccessResponse()
}

// resolve returns the command line that performs req on goos.
func resolve(req Request, goos string) ([]string, error) {
	impls, ok := commands[req.Action]
	if !ok {
		return nil, fmt.Errorf("unknown action: %s", req.Action)
	}
	build, ok := impls[goos]
	if !ok {
		return nil, fmt.Errorf("action %s is not supported on %s", req.Action, goos)
	}

	opts := Options{Step: 10}
	raw := req.Params
	if len(raw) == 0 || string(raw) == "null" {
		raw = req.Config
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, fmt.Errorf("failed to parse options: %w", err)
		}
	}
	if opts.Step <= 0 || opts.Step > 100 {
		return nil, fmt.Errorf("step must be within 1..100, got %d", opts.Step)
	}

	return build(opts), nil
}

func appleScript(script func(Options) string) command {
	return func(o Options) []string {
		return []string{"osascript", "-e", script(o)}
	}
}

func fixed(s string) func(Options) string {
	return func(Options) string { return s }
}

func argv(args ...string) command {
	return func(Options) []string { return args }
}

// keyCode presses a media or brightness key through System Events.
func keyCode(code int) string {
	return fmt.Sprintf("tell application \"System Events\"\n\tkey code %d\nend tell", code)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
