package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ayusman/shrimp-sentry/internal/posture"
)

// Setting keys.
const (
	KeyLastMode = "last_mode"
	KeyCooldown = "cooldown_seconds"
)

// thresholdKey is the settings key holding the threshold for mode.
func thresholdKey(mode posture.Mode) string {
	return "threshold_" + string(mode)
}

// SettingsRepository provides access to key-value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key, or ErrNotFound.
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
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// All returns every stored setting.
func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings ORDER BY key`)
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

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return settings, nil
}

// LoadModeSettings returns the stored settings for mode.
// Missing or unreadable values fall back to posture.DefaultSettings.
func (r *SettingsRepository) LoadModeSettings(mode posture.Mode) (posture.Settings, error) {
	settings := posture.DefaultSettings(mode)

	if v, err := r.Get(thresholdKey(mode)); err == nil {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil && threshold > 0 {
			settings.Threshold = threshold
		}
	} else if !errors.Is(err, ErrNotFound) {
		return settings, fmt.Errorf("load threshold: %w", err)
	}

	if v, err := r.Get(KeyCooldown); err == nil {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 && int64(seconds) <= posture.MaxCooldownSeconds {
			settings.Cooldown = time.Duration(seconds) * time.Second
		}
	} else if !errors.Is(err, ErrNotFound) {
		return settings, fmt.Errorf("load cooldown: %w", err)
	}

	return settings, nil
}

// SaveModeSettings validates settings and stores the threshold for its mode and the
// shared cooldown.
func (r *SettingsRepository) SaveModeSettings(settings posture.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	upsert := `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	threshold := strconv.FormatFloat(settings.Threshold, 'f', -1, 64)
	if _, err := tx.Exec(upsert, thresholdKey(settings.Mode), threshold, now); err != nil {
		return fmt.Errorf("save threshold: %w", err)
	}

	cooldown := strconv.Itoa(int(settings.Cooldown / time.Second))
	if _, err := tx.Exec(upsert, KeyCooldown, cooldown, now); err != nil {
		return fmt.Errorf("save cooldown: %w", err)
	}

	return tx.Commit()
}

// LastMode returns the mode chosen last, or ErrNotFound.
func (r *SettingsRepository) LastMode() (posture.Mode, error) {
	v, err := r.Get(KeyLastMode)
	if err != nil {
		return "", err
	}
	return posture.ParseMode(v)
}

// SetLastMode remembers mode as the mode chosen last.
func (r *SettingsRepository) SetLastMode(mode posture.Mode) error {
	if _, err := posture.ParseMode(string(mode)); err != nil {
		return err
	}
	return r.Set(KeyLastMode, string(mode))
}
