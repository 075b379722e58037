package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when a plugin does not finish within the executor timeout.
var ErrTimeout = errors.New("plugin execution timeout")

// waitDelay bounds how long Execute waits for output after the plugin
// process is gone.
const waitDelay = 500 * time.Millisecond

// ErrNoResponse is returned when a plugin exits cleanly without writing a response.
var ErrNoResponse = errors.New("plugin wrote no response")

// Executor handles the execution of plugins with timeout support.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new Executor with the specified timeout in milliseconds.
func NewExecutor(timeoutMs int) *Executor {
	return &Executor{
		timeout: time.Duration(timeoutMs) * time.Millisecond,
	}
}

// Execute runs a plugin with the given request and returns the response.
//
// The request is written to the plugin's stdin as JSON and its stdout is
// parsed as a Response. The plugin also sees PALAK_PLUGIN, PALAK_ACTION and
// PALAK_TRIGGER in its environment. The run is bounded by ctx and the
// executor timeout; a timeout is reported as ErrTimeout, a cancelled ctx as
// its own error.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	cmd := exec.CommandContext(runCtx, plugin.Executable)
	cmd.Dir = plugin.Path
	cmd.Stdin = bytes.NewReader(reqJSON)
	cmd.Env = append(os.Environ(),
		"PALAK_PLUGIN="+plugin.Manifest.Name,
		"PALAK_ACTION="+req.Action,
		"PALAK_TRIGGER="+string(req.Trigger),
	)

	// Children of the plugin may keep its output pipes open after it is
	// killed; stop waiting on them shortly after.
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("plugin %s: %w", plugin.Manifest.Name, ctxErr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}

	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("plugin execution failed: %w, stderr: %s", err, msg)
		}
		return nil, fmt.Errorf("plugin execution failed: %w", err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, ErrNoResponse
	}

	var response Response
	if err := json.Unmarshal(out, &response); err != nil {
		return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, out)
	}

	return &response, nil
}
