package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/palak/internal/store"
)

// SessionHandler serves recorded sessions and their blink events.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions, /api/sessions/{id} and
// /api/sessions/{id}/events.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch {
	case sub == "events" && r.Method == http.MethodGet:
		h.events(w, r, id)
	case sub != "":
		writeError(w, http.StatusNotFound, "Not found")
	case r.Method == http.MethodGet:
		h.get(w, r, id)
	case r.Method == http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sessionResponse struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	StartedAt   string `json:"started_at"`
	EndedAt     string `json:"ended_at,omitempty"`
	Frames      int64  `json:"frames"`
	LeftBlinks  int    `json:"left_blinks"`
	RightBlinks int    `json:"right_blinks"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type listEventsResponse struct {
	SessionID string              `json:"session_id"`
	Events    []*store.BlinkEvent `json:"events"`
}

func (h *SessionHandler) toResponse(sess *store.Session) (sessionResponse, error) {
	resp := sessionResponse{
		ID:        sess.ID,
		Source:    sess.Source,
		StartedAt: formatTime(sess.StartedAt),
		Frames:    sess.Frames,
	}
	if sess.EndedAt != nil {
		resp.EndedAt = formatTime(*sess.EndedAt)
	}

	counts, err := h.store.Events().CountBySession(sess.ID)
	if err != nil {
		return resp, err
	}
	resp.LeftBlinks = counts["left"]
	resp.RightBlinks = counts["right"]
	return resp, nil
}

// list handles GET /api/sessions?limit=N, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, sess := range sessions {
		item, err := h.toResponse(sess)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to count events")
			return
		}
		response.Sessions = append(response.Sessions, item)
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	resp, err := h.toResponse(sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count events")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// events handles GET /api/sessions/{id}/events.
func (h *SessionHandler) events(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	events, err := h.store.Events().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []*store.BlinkEvent{}
	}

	writeJSON(w, http.StatusOK, listEventsResponse{SessionID: id, Events: events})
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
