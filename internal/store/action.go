package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Action binds a blink trigger to a plugin action.
type Action struct {
	ID string `json:"id"`
	// Trigger is the eye that fires the action: left, right or both.
	Trigger    string          `json:"trigger"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  time.Time       `json:"created_at"`
}

const actionColumns = `id, eye_trigger, plugin_name, action_name, config, enabled, created_at`

// ActionRepository provides CRUD operations for actions.
type ActionRepository struct {
	db *sql.DB
}

// Actions returns the action repository for this store.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{db: s.db}
}

// Create inserts a new action into the database. An empty ID is filled with
// a random UUID.
func (r *ActionRepository) Create(a *Action) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now()

	config := a.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO actions (`+actionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Trigger, a.PluginName, a.ActionName, string(config), a.Enabled, a.CreatedAt,
	)
	return err
}

// GetByID retrieves an action by its ID.
func (r *ActionRepository) GetByID(id string) (*Action, error) {
	row := r.db.QueryRow(`SELECT `+actionColumns+` FROM actions WHERE id = ?`, id)

	a, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListByTrigger retrieves the enabled actions bound to trigger, oldest first.
func (r *ActionRepository) ListByTrigger(trigger string) ([]*Action, error) {
	return r.list(
		`SELECT `+actionColumns+` FROM actions WHERE eye_trigger = ? AND enabled = 1 ORDER BY created_at`,
		trigger,
	)
}

// List retrieves all actions from the database.
func (r *ActionRepository) List() ([]*Action, error) {
	return r.list(`SELECT ` + actionColumns + ` FROM actions ORDER BY created_at DESC`)
}

func (r *ActionRepository) list(query string, args ...any) ([]*Action, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return actions, nil
}

func scanAction(row scanner) (*Action, error) {
	a := &Action{}
	var config string
	var enabled int

	if err := row.Scan(&a.ID, &a.Trigger, &a.PluginName, &a.ActionName, &config, &enabled, &a.CreatedAt); err != nil {
		return nil, err
	}

	a.Config = json.RawMessage(config)
	a.Enabled = enabled != 0
	return a, nil
}

// Update updates an existing action in the database.
func (r *ActionRepository) Update(a *Action) error {
	config := a.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	enabled := 0
	if a.Enabled {
		enabled = 1
	}

	result, err := r.db.Exec(
		`UPDATE actions SET eye_trigger = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		a.Trigger, a.PluginName, a.ActionName, string(config), enabled, a.ID,
	)
	if err != nil {
		return err
	}
	return rowsChanged(result)
}

// Delete removes an action from the database by its ID.
func (r *ActionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return rowsChanged(result)
}
