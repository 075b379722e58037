package store

import (
	"database/sql"
	"time"

	"github.com/ayusman/palak/internal/blink"
)

// BlinkEvent is a persisted blink. Times are milliseconds from session start.
type BlinkEvent struct {
	ID         int64  `json:"id"`
	SessionID  string `json:"session_id"`
	Eye        string `json:"eye"`
	StartedMS  int64  `json:"started_ms"`
	EndedMS    int64  `json:"ended_ms"`
	Detections int    `json:"detections"`
}

// NewBlinkEvent converts a tracker event for storage under sessionID.
func NewBlinkEvent(sessionID string, ev blink.Event) *BlinkEvent {
	return &BlinkEvent{
		SessionID:  sessionID,
		Eye:        string(ev.Eye),
		StartedMS:  ev.Start.Milliseconds(),
		EndedMS:    ev.End.Milliseconds(),
		Detections: ev.Detections,
	}
}

// Event converts the row back into a tracker event.
func (e *BlinkEvent) Event() blink.Event {
	return blink.Event{
		Eye:        blink.Eye(e.Eye),
		Start:      time.Duration(e.StartedMS) * time.Millisecond,
		End:        time.Duration(e.EndedMS) * time.Millisecond,
		Detections: e.Detections,
	}
}

// EventRepository stores blink events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts an event and sets its ID.
func (r *EventRepository) Create(e *BlinkEvent) error {
	result, err := r.db.Exec(
		`INSERT INTO blink_events (session_id, eye, started_ms, ended_ms, detections)
		 VALUES (?, ?, ?, ?, ?)`,
		e.SessionID, e.Eye, e.StartedMS, e.EndedMS, e.Detections,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListBySession retrieves the events of a session in start order.
func (r *EventRepository) ListBySession(sessionID string) ([]*BlinkEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, eye, started_ms, ended_ms, detections
		 FROM blink_events WHERE session_id = ? ORDER BY started_ms, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*BlinkEvent
	for rows.Next() {
		e := &BlinkEvent{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Eye, &e.StartedMS, &e.EndedMS, &e.Detections); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// CountBySession returns the number of events per eye for a session.
func (r *EventRepository) CountBySession(sessionID string) (map[blink.Eye]int, error) {
	rows, err := r.db.Query(
		`SELECT eye, COUNT(*) FROM blink_events WHERE session_id = ? GROUP BY eye`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[blink.Eye]int{blink.EyeLeft: 0, blink.EyeRight: 0}
	for rows.Next() {
		var eye string
		var n int
		if err := rows.Scan(&eye, &n); err != nil {
			return nil, err
		}
		counts[blink.Eye(eye)] = n
	}

	return counts, rows.Err()
}
