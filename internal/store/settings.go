package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// GetSetting reads one key from the opaque settings table.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting writes one key to the settings table.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SourceMap returns the persisted source-identity map: a key per import
// source pointing at the artifact it created, so re-imports from the same
// source update in place.
func (s *Store) SourceMap(ctx context.Context) (map[string]string, error) {
	encoded, ok, err := s.GetSetting(ctx, settingSourceMap)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if !ok || encoded == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(encoded), &out); err != nil {
		// A corrupt map only loses re-import affinity; start fresh.
		return make(map[string]string), nil
	}
	return out, nil
}

// SaveSourceMap persists the source-identity map.
func (s *Store) SaveSourceMap(ctx context.Context, m map[string]string) error {
	encoded, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.SetSetting(ctx, settingSourceMap, string(encoded))
}
