package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PluginConfig is the stored configuration of a notifier plugin.
type PluginConfig struct {
	PluginName string          `json:"plugin_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// PluginConfigRepository provides CRUD operations for plugin configs.
type PluginConfigRepository struct {
	db *sql.DB
}

// PluginConfigs returns the plugin config repository for this store.
func (s *Store) PluginConfigs() *PluginConfigRepository {
	return &PluginConfigRepository{db: s.db}
}

// Save inserts or replaces the config for c.PluginName.
func (r *PluginConfigRepository) Save(c *PluginConfig) error {
	c.UpdatedAt = time.Now()

	config := c.Config
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}

	enabled := 0
	if c.Enabled {
		enabled = 1
	}

	_, err := r.db.Exec(
		`INSERT INTO plugin_configs (plugin_name, config, enabled, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(plugin_name) DO UPDATE SET
		   config = excluded.config, enabled = excluded.enabled, updated_at = excluded.updated_at`,
		c.PluginName, string(config), enabled, c.UpdatedAt,
	)
	return err
}

// Get retrieves the config for a plugin.
func (r *PluginConfigRepository) Get(name string) (*PluginConfig, error) {
	c := &PluginConfig{}
	var config string
	var enabled int

	err := r.db.QueryRow(
		`SELECT plugin_name, config, enabled, updated_at FROM plugin_configs WHERE plugin_name = ?`,
		name,
	).Scan(&c.PluginName, &config, &enabled, &c.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	c.Config = json.RawMessage(config)
	c.Enabled = enabled != 0
	return c, nil
}

// List retrieves all plugin configs ordered by plugin name.
func (r *PluginConfigRepository) List() ([]*PluginConfig, error) {
	rows, err := r.db.Query(
		`SELECT plugin_name, config, enabled, updated_at FROM plugin_configs ORDER BY plugin_name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*PluginConfig
	for rows.Next() {
		c := &PluginConfig{}
		var config string
		var enabled int

		if err := rows.Scan(&c.PluginName, &config, &enabled, &c.UpdatedAt); err != nil {
			return nil, err
		}

		c.Config = json.RawMessage(config)
		c.Enabled = enabled != 0
		configs = append(configs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return configs, nil
}

// Delete removes the config for a plugin.
func (r *PluginConfigRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM plugin_configs WHERE plugin_name = ?`, name)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
