package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ayusman/palak/internal/blink"
)

// Setting keys persisted for the blink trackers.
const (
	KeyHoldMS    = "blink.hold_ms"
	KeyTolerance = "blink.tolerance"
)

// SettingsRepository stores application settings as key-value pairs.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored for key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// All returns every stored setting.
func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}

	return settings, rows.Err()
}

// BlinkConfig overlays the stored blink settings on base. Keys that are not
// stored keep the value from base.
func (r *SettingsRepository) BlinkConfig(base blink.Config) (blink.Config, error) {
	cfg := base

	if v, err := r.Get(KeyHoldMS); err == nil {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return base, fmt.Errorf("setting %s: %w", KeyHoldMS, err)
		}
		cfg.HoldDuration = time.Duration(ms) * time.Millisecond
	} else if !errors.Is(err, ErrNotFound) {
		return base, err
	}

	if v, err := r.Get(KeyTolerance); err == nil {
		tol, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return base, fmt.Errorf("setting %s: %w", KeyTolerance, err)
		}
		cfg.Tolerance = tol
	} else if !errors.Is(err, ErrNotFound) {
		return base, err
	}

	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// ApplyBlinkConfig validates cfg and stores it.
func (r *SettingsRepository) ApplyBlinkConfig(cfg blink.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsert := `INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	if _, err := tx.Exec(upsert, KeyHoldMS, strconv.FormatInt(cfg.HoldDuration.Milliseconds(), 10)); err != nil {
		return err
	}
	if _, err := tx.Exec(upsert, KeyTolerance, strconv.FormatFloat(cfg.Tolerance, 'f', -1, 64)); err != nil {
		return err
	}

	return tx.Commit()
}
