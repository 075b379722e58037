package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/palak/internal/plugin"
	"github.com/ayusman/palak/internal/store"
)

// runTimeout bounds a manual action run started from the API.
const runTimeout = 10 * time.Second

// ActionRunner executes a bound action on demand.
type ActionRunner interface {
	RunAction(ctx context.Context, act *store.Action, trigger plugin.Trigger, at time.Duration) (*plugin.Response, error)
}

// ActionHandler serves /api/actions: the bindings from blink triggers to
// plugin actions.
//
//	GET    /api/actions[?trigger=left]
//	POST   /api/actions
//	GET    /api/actions/{id}
//	PUT    /api/actions/{id}
//	DELETE /api/actions/{id}
//	POST   /api/actions/{id}/run
type ActionHandler struct {
	store   *store.Store
	plugins *plugin.Manager
	runner  ActionRunner
}

// NewActionHandler returns a handler over the actions in s. With a non-nil
// plugins manager, bindings must name a discovered plugin, one of its
// actions and a trigger it accepts. Without a runner the run endpoint
// answers 503.
func NewActionHandler(s *store.Store, plugins *plugin.Manager, runner ActionRunner) *ActionHandler {
	return &ActionHandler{store: s, plugins: plugins, runner: runner}
}

func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/actions"), "/")
	id, verb, _ := strings.Cut(rest, "/")

	switch {
	case id == "":
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case verb == "run":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.run(w, r, id)

	case verb != "":
		writeError(w, http.StatusNotFound, "Not found")

	default:
		switch r.Method {
		case http.MethodGet:
			h.get(w, id)
		case http.MethodPut:
			h.update(w, r, id)
		case http.MethodDelete:
			h.delete(w, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// bindingRequest is the body of create and update. Empty fields on update
// keep the stored value.
type bindingRequest struct {
	Trigger    string          `json:"trigger"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

// apply copies the set fields of req onto a and reports whether the plugin
// binding changed.
func (req *bindingRequest) apply(a *store.Action) (bool, error) {
	rebound := false
	if req.Trigger != "" {
		trigger, err := plugin.ParseTrigger(req.Trigger)
		if err != nil {
			return false, err
		}
		a.Trigger = string(trigger)
		rebound = true
	}
	if req.PluginName != "" {
		a.PluginName = req.PluginName
		rebound = true
	}
	if req.ActionName != "" {
		a.ActionName = req.ActionName
		rebound = true
	}
	if req.Config != nil {
		a.Config = req.Config
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	return rebound, nil
}

type actionResponse struct {
	ID         string          `json:"id"`
	Trigger    string          `json:"trigger"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listActionsResponse struct {
	Actions []actionResponse `json:"actions"`
}

type runResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func toActionResponse(a *store.Action) actionResponse {
	config := a.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return actionResponse{
		ID:         a.ID,
		Trigger:    a.Trigger,
		PluginName: a.PluginName,
		ActionName: a.ActionName,
		Config:     config,
		Enabled:    a.Enabled,
		CreatedAt:  formatTime(a.CreatedAt),
	}
}

// checkBinding verifies a's plugin side against the discovered plugins.
func (h *ActionHandler) checkBinding(a *store.Action) error {
	if h.plugins == nil {
		return nil
	}
	p, err := h.plugins.Get(a.PluginName)
	if err != nil {
		return fmt.Errorf("plugin %q not found", a.PluginName)
	}
	if !p.HasAction(a.ActionName) {
		return fmt.Errorf("plugin %q has no action %q", a.PluginName, a.ActionName)
	}
	if !p.Accepts(plugin.Trigger(a.Trigger)) {
		return fmt.Errorf("plugin %q does not accept trigger %q", a.PluginName, a.Trigger)
	}
	return nil
}

// lookup loads the action id, writing the error reply when it fails.
func (h *ActionHandler) lookup(w http.ResponseWriter, id string) (*store.Action, bool) {
	action, err := h.store.Actions().GetByID(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Action not found")
		return nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to get action")
		return nil, false
	}
	return action, true
}

func (h *ActionHandler) list(w http.ResponseWriter, r *http.Request) {
	var only string
	if q := r.URL.Query().Get("trigger"); q != "" {
		trigger, err := plugin.ParseTrigger(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		only = string(trigger)
	}

	actions, err := h.store.Actions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}

	resp := listActionsResponse{Actions: make([]actionResponse, 0, len(actions))}
	for _, a := range actions {
		if only != "" && a.Trigger != only {
			continue
		}
		resp.Actions = append(resp.Actions, toActionResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ActionHandler) get(w http.ResponseWriter, id string) {
	if action, ok := h.lookup(w, id); ok {
		writeJSON(w, http.StatusOK, toActionResponse(action))
	}
}

func (h *ActionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	switch {
	case req.Trigger == "":
		writeError(w, http.StatusBadRequest, "trigger is required")
		return
	case req.PluginName == "":
		writeError(w, http.StatusBadRequest, "plugin_name is required")
		return
	case req.ActionName == "":
		writeError(w, http.StatusBadRequest, "action_name is required")
		return
	}

	action := &store.Action{Config: json.RawMessage("{}"), Enabled: true}
	if _, err := req.apply(action); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.checkBinding(action); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Actions().Create(action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create action")
		return
	}
	writeJSON(w, http.StatusCreated, toActionResponse(action))
}

func (h *ActionHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	action, ok := h.lookup(w, id)
	if !ok {
		return
	}

	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	rebound, err := req.apply(action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rebound {
		if err := h.checkBinding(action); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.store.Actions().Update(action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update action")
		return
	}
	writeJSON(w, http.StatusOK, toActionResponse(action))
}

func (h *ActionHandler) delete(w http.ResponseWriter, id string) {
	err := h.store.Actions().Delete(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Action not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to delete action")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// run handles POST /api/actions/{id}/run. It fires the action once with its
// own trigger, whether or not the binding is enabled, and relays the
// plugin's answer.
func (h *ActionHandler) run(w http.ResponseWriter, r *http.Request, id string) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "Actions cannot run without a pipeline")
		return
	}
	action, ok := h.lookup(w, id)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), runTimeout)
	defer cancel()

	resp, err := h.runner.RunAction(ctx, action, plugin.Trigger(action.Trigger), 0)
	switch {
	case errors.Is(err, plugin.ErrPluginNotFound):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, runResponse{Success: resp.Success, Error: resp.Error, Data: resp.Data})
	}
}
