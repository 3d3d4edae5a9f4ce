package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type Setting struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

// GetSetting looks key up after trimming it, the same way SaveSettingsBatch
// stores it.
func (s *Store) GetSetting(ctx context.Context, key string) (bool, error) {
	database, err := s.DB()
	if err != nil {
		return false, err
	}

	key = strings.TrimSpace(key)
	var value int
	err = database.QueryRowContext(ctx, "SELECT value FROM settings WHERE codename = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrSettingNotFound
		}
		return false, fmt.Errorf("get setting %s: %w", key, err)
	}

	return value == 1, nil
}

// GetSettingOr returns fallback when the key was never saved.
func (s *Store) GetSettingOr(ctx context.Context, key string, fallback bool) (bool, error) {
	value, err := s.GetSetting(ctx, key)
	if errors.Is(err, ErrSettingNotFound) {
		return fallback, nil
	}
	return value, err
}

func (s *Store) ListSettings(ctx context.Context) ([]Setting, error) {
	database, err := s.DB()
	if err != nil {
		return nil, err
	}

	rows, err := database.QueryContext(ctx, "SELECT codename, value FROM settings ORDER BY codename")
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := make([]Setting, 0)
	for rows.Next() {
		var setting Setting
		var value int
		if err := rows.Scan(&setting.Key, &value); err != nil {
			return nil, fmt.Errorf("scan setting row: %w", err)
		}
		setting.Value = value == 1
		settings = append(settings, setting)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate setting rows: %w", err)
	}

	return settings, nil
}

func (s *Store) SaveSetting(ctx context.Context, key string, value bool) error {
	return s.SaveSettingsBatch(ctx, []Setting{{Key: key, Value: value}})
}

// SaveSettingsBatch writes all settings in one transaction. Lock contention
// rolls the whole batch back and retries it, so either every setting is
// stored or none is.
func (s *Store) SaveSettingsBatch(ctx context.Context, settings []Setting) error {
	for _, setting := range settings {
		if strings.TrimSpace(setting.Key) == "" {
			return errors.New("setting key is required")
		}
	}
	if len(settings) == 0 {
		return nil
	}

	return s.withTx(ctx, "save settings", func(tx *sql.Tx, attempt int) error {
		now := s.timestamp()
		for index, setting := range settings {
			if s.settingsWriteHook != nil {
				if err := s.settingsWriteHook(attempt, index); err != nil {
					return err
				}
			}

			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO settings(codename, value, updated_at) VALUES (?, ?, ?)
				 ON CONFLICT(codename) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				strings.TrimSpace(setting.Key),
				boolToInt(setting.Value),
				now,
			); err != nil {
				return fmt.Errorf("save setting %s: %w", setting.Key, err)
			}
		}
		return nil
	})
}
