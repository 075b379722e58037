package main

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		goos    string
		want    []string
		wantErr string
	}{
		{
			name: "linux volume up default step",
			req:  Request{Action: "volume-up", Trigger: "left"},
			goos: "linux",
			want: []string{"pactl", "set-sink-volume", "@DEFAULT_SINK@", "+10%"},
		},
		{
			name: "step from config",
			req:  Request{Action: "volume-down", Config: json.RawMessage(`{"step":5}`)},
			goos: "linux",
			want: []string{"pactl", "set-sink-volume", "@DEFAULT_SINK@", "-5%"},
		},
		{
			name: "params win over config",
			req:  Request{Action: "brightness-down", Config: json.RawMessage(`{"step":5}`), Params: json.RawMessage(`{"step":20}`)},
			goos: "linux",
			want: []string{"brightnessctl", "set", "20%-"},
		},
		{
			name: "darwin media key",
			req:  Request{Action: "media-next"},
			goos: "darwin",
			want: []string{"osascript", "-e", "tell application \"System Events\"\n\tkey code 101\nend tell"},
		},
		{
			name: "darwin lock",
			req:  Request{Action: "lock-screen", Trigger: "both"},
			goos: "darwin",
			want: []string{"pmset", "displaysleepnow"},
		},
		{
			name:    "unknown action",
			req:     Request{Action: "invalid-action"},
			goos:    "linux",
			wantErr: "unknown action",
		},
		{
			name:    "unsupported os",
			req:     Request{Action: "volume-up"},
			goos:    "plan9",
			wantErr: "not supported",
		},
		{
			name:    "step out of range",
			req:     Request{Action: "volume-up", Config: json.RawMessage(`{"step":500}`)},
			goos:    "linux",
			wantErr: "step",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolve(tt.req, tt.goos)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("resolve() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommands_CoverManifestOSes(t *testing.T) {
	for action, impls := range commands {
		for _, goos := range []string{"darwin", "linux"} {
			if _, ok := impls[goos]; !ok {
				t.Errorf("action %s has no %s implementation", action, goos)
			}
		}
	}
}
