package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/store"
)

// BlinkController is the part of the running pipeline the settings API drives.
type BlinkController interface {
	BlinkConfig() blink.Config
	SetBlinkConfig(blink.Config) error
	IsEnabled() bool
	SetEnabled(bool)
}

// SettingsHandler reads and updates the blink settings. Changes are stored
// and, when a controller is attached, applied to the running trackers.
type SettingsHandler struct {
	store      *store.Store
	controller BlinkController
}

// NewSettingsHandler creates a SettingsHandler. controller may be nil.
func NewSettingsHandler(s *store.Store, controller BlinkController) *SettingsHandler {
	return &SettingsHandler{store: s, controller: controller}
}

type settingsResponse struct {
	HoldMS    int64   `json:"hold_ms"`
	Tolerance float64 `json:"tolerance"`
	Enabled   bool    `json:"enabled"`
}

type updateSettingsRequest struct {
	HoldMS    *int64   `json:"hold_ms"`
	Tolerance *float64 `json:"tolerance"`
	Enabled   *bool    `json:"enabled"`
}

// ServeHTTP handles GET and PUT on /api/settings.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut, http.MethodPatch:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) current() (blink.Config, bool, error) {
	if h.controller != nil {
		return h.controller.BlinkConfig(), h.controller.IsEnabled(), nil
	}
	cfg, err := h.store.Settings().BlinkConfig(blink.DefaultConfig())
	return cfg, true, err
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	cfg, enabled, err := h.current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(cfg, enabled))
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	cfg, enabled, err := h.current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	prev := cfg
	if req.HoldMS != nil {
		cfg.HoldDuration = time.Duration(*req.HoldMS) * time.Millisecond
	}
	if req.Tolerance != nil {
		cfg.Tolerance = *req.Tolerance
	}

	if err := h.store.Settings().ApplyBlinkConfig(cfg); err != nil {
		if errors.Is(err, blink.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	if h.controller != nil {
		// An unchanged config keeps the running trackers and their windows.
		if cfg != prev {
			if err := h.controller.SetBlinkConfig(cfg); err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to apply settings")
				return
			}
		}
		if req.Enabled != nil {
			h.controller.SetEnabled(*req.Enabled)
			enabled = *req.Enabled
		}
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(cfg, enabled))
}

func toSettingsResponse(cfg blink.Config, enabled bool) settingsResponse {
	return settingsResponse{
		HoldMS:    cfg.HoldDuration.Milliseconds(),
		Tolerance: cfg.Tolerance,
		Enabled:   enabled,
	}
}
