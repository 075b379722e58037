package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/palak/internal/blink"
)

// newTestStore creates a Store in a temporary directory removed after the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{Source: "camera:0"}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.ID == "" {
		t.Fatal("Create() should assign an ID")
	}
	if sess.StartedAt.IsZero() {
		t.Error("Create() should set StartedAt")
	}

	if err := repo.AddFrames(sess.ID, 30); err != nil {
		t.Fatalf("AddFrames() error = %v", err)
	}
	if err := repo.AddFrames(sess.ID, 12); err != nil {
		t.Fatalf("AddFrames() error = %v", err)
	}

	got, err := repo.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Frames != 42 {
		t.Errorf("Frames = %d, want 42", got.Frames)
	}
	if !got.Active() {
		t.Error("session should be active before End")
	}

	if err := repo.End(sess.ID, time.Now()); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	got, err = repo.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Active() || got.EndedAt == nil {
		t.Error("session should be ended")
	}
}

func TestSessionRepository_NotFound(t *testing.T) {
	repo := newTestStore(t).Sessions()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if err := repo.End("missing", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("End() error = %v, want ErrNotFound", err)
	}
	if err := repo.AddFrames("missing", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddFrames() error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_List(t *testing.T) {
	repo := newTestStore(t).Sessions()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, src := range []string{"first", "second", "third"} {
		sess := &Session{Source: src, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.Create(sess); err != nil {
			t.Fatalf("Create(%s) error = %v", src, err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List(0) returned %d sessions, want 3", len(all))
	}
	if all[0].Source != "third" {
		t.Errorf("newest session first, got %q", all[0].Source)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d sessions", len(limited))
	}
}

func TestEventRepository(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{Source: "trace"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("Create session error = %v", err)
	}

	events := []blink.Event{
		{Eye: blink.EyeRight, Start: 900 * time.Millisecond, End: 1100 * time.Millisecond, Detections: 3},
		{Eye: blink.EyeLeft, Start: 700 * time.Millisecond, End: 1000 * time.Millisecond, Detections: 5},
		{Eye: blink.EyeLeft, Start: 2 * time.Second, End: 2200 * time.Millisecond, Detections: 1},
	}
	for _, ev := range events {
		row := NewBlinkEvent(sess.ID, ev)
		if err := s.Events().Create(row); err != nil {
			t.Fatalf("Create event error = %v", err)
		}
		if row.ID == 0 {
			t.Error("Create() should set the event ID")
		}
	}

	list, err := s.Events().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d events, want 3", len(list))
	}
	if list[0].StartedMS != 700 || list[0].Eye != "left" {
		t.Errorf("events should be in start order, first = %+v", list[0])
	}
	if got := list[0].Event(); got != events[1] {
		t.Errorf("Event() = %+v, want %+v", got, events[1])
	}

	counts, err := s.Events().CountBySession(sess.ID)
	if err != nil {
		t.Fatalf("CountBySession() error = %v", err)
	}
	if counts[blink.EyeLeft] != 2 || counts[blink.EyeRight] != 1 {
		t.Errorf("counts = %v", counts)
	}

	// Deleting the session removes its events.
	if err := s.Sessions().Delete(sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	list, err = s.Events().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected events to cascade, got %d", len(list))
	}
}

func TestEventRepository_RejectsUnknownSession(t *testing.T) {
	s := newTestStore(t)

	err := s.Events().Create(&BlinkEvent{SessionID: "nope", Eye: "left"})
	if err == nil {
		t.Error("expected foreign key violation for unknown session")
	}
}

func TestActionRepository(t *testing.T) {
	repo := newTestStore(t).Actions()

	left := &Action{
		Trigger:    "left",
		PluginName: "keyboard",
		ActionName: "key",
		Config:     json.RawMessage(`{"key":"space"}`),
		Enabled:    true,
	}
	if err := repo.Create(left); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if left.ID == "" {
		t.Fatal("Create() should assign an ID")
	}

	disabled := &Action{Trigger: "left", PluginName: "system-control", ActionName: "volume_up"}
	if err := repo.Create(disabled); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	both := &Action{Trigger: "both", PluginName: "system-control", ActionName: "lock", Enabled: true}
	if err := repo.Create(both); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(left.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Trigger != "left" || string(got.Config) != `{"key":"space"}` || !got.Enabled {
		t.Errorf("GetByID() = %+v", got)
	}

	bound, err := repo.ListByTrigger("left")
	if err != nil {
		t.Fatalf("ListByTrigger() error = %v", err)
	}
	if len(bound) != 1 || bound[0].ID != left.ID {
		t.Errorf("ListByTrigger(left) = %v, want only the enabled action", bound)
	}

	all, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() returned %d actions, want 3", len(all))
	}

	disabled.Enabled = true
	disabled.Trigger = "right"
	if err := repo.Update(disabled); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	bound, _ = repo.ListByTrigger("right")
	if len(bound) != 1 {
		t.Errorf("ListByTrigger(right) after update = %v", bound)
	}

	if err := repo.Delete(both.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(both.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Update(&Action{ID: "missing", Trigger: "left"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestActionRepository_RejectsUnknownTrigger(t *testing.T) {
	repo := newTestStore(t).Actions()

	err := repo.Create(&Action{Trigger: "nose", PluginName: "keyboard", ActionName: "key"})
	if err == nil {
		t.Error("expected check constraint violation for unknown trigger")
	}
}

func TestSettingsRepository(t *testing.T) {
	repo := newTestStore(t).Settings()

	if _, err := repo.Get("theme"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	if err := repo.Set("theme", "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set("theme", "light"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if v, _ := repo.Get("theme"); v != "light" {
		t.Errorf("Get() = %q, want light", v)
	}

	all, err := repo.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 1 || all["theme"] != "light" {
		t.Errorf("All() = %v", all)
	}
}

func TestSettingsRepository_BlinkConfig(t *testing.T) {
	repo := newTestStore(t).Settings()
	base := blink.DefaultConfig()

	cfg, err := repo.BlinkConfig(base)
	if err != nil {
		t.Fatalf("BlinkConfig() error = %v", err)
	}
	if cfg != base {
		t.Errorf("empty settings should keep base, got %+v", cfg)
	}

	want := blink.Config{HoldDuration: 250 * time.Millisecond, Tolerance: 0.1}
	if err := repo.ApplyBlinkConfig(want); err != nil {
		t.Fatalf("ApplyBlinkConfig() error = %v", err)
	}
	cfg, err = repo.BlinkConfig(base)
	if err != nil {
		t.Fatalf("BlinkConfig() error = %v", err)
	}
	if cfg != want {
		t.Errorf("BlinkConfig() = %+v, want %+v", cfg, want)
	}

	if err := repo.ApplyBlinkConfig(blink.Config{HoldDuration: 0}); !errors.Is(err, blink.ErrInvalidConfig) {
		t.Errorf("ApplyBlinkConfig(invalid) error = %v, want ErrInvalidConfig", err)
	}

	if err := repo.Set(KeyTolerance, "lots"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := repo.BlinkConfig(base); err == nil {
		t.Error("expected an error for an unparsable tolerance")
	}
}
