package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"formrelay/internal/model"
)

const mailSettingsKey = "mail_settings"

func (s *Store) GetMailSettings(ctx context.Context) (model.MailSettings, bool, error) {
	var valueJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT value_json FROM settings WHERE key = ?
	`, mailSettingsKey).Scan(&valueJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.MailSettings{}, false, nil
		}
		return model.MailSettings{}, false, err
	}
	var out model.MailSettings
	if err := json.Unmarshal([]byte(valueJSON), &out); err != nil {
		return model.MailSettings{}, false, err
	}
	return out, true, nil
}

func (s *Store) UpsertMailSettings(ctx context.Context, v model.MailSettings) (model.MailSettings, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return model.MailSettings{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value_json = excluded.value_json,
			updated_at = excluded.updated_at
	`, mailSettingsKey, string(b), time.Now().UnixMilli())
	if err != nil {
		return model.MailSettings{}, err
	}
	return v, nil
}
