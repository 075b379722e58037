package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/palak/internal/app"
	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/capture"
	"github.com/ayusman/palak/internal/detector"
	"github.com/ayusman/palak/internal/store"
	"github.com/ayusman/palak/internal/trace"
)

func newTestApp(t *testing.T) (*store.Store, *app.App) {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	a := app.New(app.Config{
		Store:     s,
		PluginDir: t.TempDir(),
		Camera:    capture.NewMockCamera(nil, false),
		Detector:  detector.NewMockDetector(),
	})
	return s, a
}

// replayDip runs a 40 frame trace with one blink of both eyes through a.
func replayDip(t *testing.T, a *app.App) string {
	t.Helper()

	id, err := a.BeginSession("trace")
	if err != nil {
		t.Fatalf("BeginSession() error = %v", err)
	}
	for _, s := range trace.Synthetic(40, 30, 10, trace.Dip{Start: 14, Len: 7, Depth: 2}) {
		a.ProcessSample(s)
	}
	if err := a.EndSession(); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	return id
}

func TestAPI_SessionWorkflow(t *testing.T) {
	s, a := newTestApp(t)
	sessionID := replayDip(t, a)

	srv := New(Config{Store: s, App: a})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. List sessions
	resp, err := client.Get(ts.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET /api/sessions error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/sessions status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var listed struct {
		Sessions []struct {
			ID          string `json:"id"`
			Frames      int64  `json:"frames"`
			LeftBlinks  int    `json:"left_blinks"`
			RightBlinks int    `json:"right_blinks"`
		} `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Sessions) != 1 || listed.Sessions[0].ID != sessionID {
		t.Fatalf("sessions = %+v, want only %s", listed.Sessions, sessionID)
	}
	if got := listed.Sessions[0]; got.Frames != 40 || got.LeftBlinks != 1 || got.RightBlinks != 1 {
		t.Errorf("session = %+v, want 40 frames and one blink per eye", got)
	}

	// 2. Session events
	resp, _ = client.Get(ts.URL + "/api/sessions/" + sessionID + "/events")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET events status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var events struct {
		Events []struct {
			Eye       string `json:"eye"`
			StartedMS int64  `json:"started_ms"`
			EndedMS   int64  `json:"ended_ms"`
		} `json:"events"`
	}
	json.NewDecoder(resp.Body).Decode(&events)
	resp.Body.Close()

	if len(events.Events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events.Events))
	}
	wantStart := blink.FrameTime(21, 30).Milliseconds()
	for _, ev := range events.Events {
		if ev.StartedMS != wantStart {
			t.Errorf("%s blink started at %dms, want %dms", ev.Eye, ev.StartedMS, wantStart)
		}
	}

	// 3. Delete session
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+sessionID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	// 4. Verify deleted
	resp, _ = client.Get(ts.URL + "/api/sessions/" + sessionID)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestAPI_SettingsWorkflow(t *testing.T) {
	s, a := newTestApp(t)

	ts := httptest.NewServer(New(Config{Store: s, App: a}))
	defer ts.Close()

	client := ts.Client()

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/settings",
		bytes.NewBufferString(`{"hold_ms": 300, "tolerance": 0.2, "enabled": false}`))
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/settings error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	want := blink.Config{HoldDuration: 300 * time.Millisecond, Tolerance: 0.2}
	if got := a.BlinkConfig(); got != want {
		t.Errorf("app BlinkConfig() = %+v, want %+v", got, want)
	}
	if a.IsEnabled() {
		t.Error("app should be disabled")
	}

	stored, err := s.Settings().BlinkConfig(blink.DefaultConfig())
	if err != nil {
		t.Fatalf("BlinkConfig() error = %v", err)
	}
	if stored != want {
		t.Errorf("stored config = %+v, want %+v", stored, want)
	}

	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/api/settings", bytes.NewBufferString(`{"hold_ms": 0}`))
	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid hold status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAPI_ActionWorkflow(t *testing.T) {
	s, a := newTestApp(t)

	ts := httptest.NewServer(New(Config{Store: s, App: a}))
	defer ts.Close()

	client := ts.Client()

	// No plugin named "keyboard" is installed in the temporary plugin dir.
	body := `{"trigger": "both", "plugin_name": "keyboard", "action_name": "execute"}`
	resp, err := client.Post(ts.URL+"/api/actions", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /api/actions error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("POST unknown plugin status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	resp, _ = client.Get(ts.URL + "/api/actions")
	var listed struct {
		Actions []json.RawMessage `json:"actions"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()
	if len(listed.Actions) != 0 {
		t.Errorf("len(actions) = %d, want 0", len(listed.Actions))
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}

func TestAPI_EyeFeed(t *testing.T) {
	s, a := newTestApp(t)
	srv := New(Config{Store: s, App: a})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/eyes"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with the hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	replayDip(t, a)

	var frames, blinks int
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for frames < 40 || blinks < 2 {
		var msg struct {
			Type  string          `json:"type"`
			Left  *blink.EyeState `json:"left"`
			Event *blink.Event    `json:"event"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v (frames=%d blinks=%d)", err, frames, blinks)
		}
		switch msg.Type {
		case "frame":
			frames++
			if msg.Left == nil {
				t.Error("frame message without left eye state")
			}
		case "blink":
			blinks++
			if msg.Event == nil || msg.Event.Detections != 5 {
				t.Errorf("blink message = %+v, want 5 detections", msg.Event)
			}
		}
	}
}

func TestServer_Stats(t *testing.T) {
	s, a := newTestApp(t)
	replayDip(t, a)

	srv := New(Config{Store: s, App: a})
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Blinks int `json:"blinks"`
		Stats  struct {
			Frames int64 `json:"frames"`
		} `json:"stats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if body.Blinks != 2 || body.Stats.Frames != 40 {
		t.Errorf("stats = %+v, want 2 blinks over 40 frames", body)
	}
}

func TestAPI_SettingsSaveDuringBlink(t *testing.T) {
	s, a := newTestApp(t)

	ts := httptest.NewServer(New(Config{Store: s, App: a}))
	defer ts.Close()

	id, err := a.BeginSession("trace")
	if err != nil {
		t.Fatalf("BeginSession() error = %v", err)
	}
	for _, sample := range trace.Synthetic(40, 30, 10, trace.Dip{Start: 14, Len: 7, Depth: 2}) {
		a.ProcessSample(sample)
		if sample.Frame != 23 {
			continue
		}

		req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/settings", bytes.NewBufferString(`{"enabled": true}`))
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("PATCH /api/settings error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("PATCH status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	}
	if err := a.EndSession(); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	events, err := s.Events().ListBySession(id)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("stored %d events, want 2", len(events))
	}
	for _, ev := range events {
		if ev.EndedMS != blink.FrameTime(30, 30).Milliseconds() {
			t.Errorf("event = %+v, should end at frame 30", ev)
		}
	}
}
