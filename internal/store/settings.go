package store

import (
	"encoding/json"
	"fmt"
)

const settingsKey = "settings"

// Settings is the application-settings record.
type Settings struct {
	NotificationsEnabled bool   `json:"notifications_enabled"`
	PushToken            string `json:"push_token,omitempty"`
	PushReceiverID       int64  `json:"push_receiver_id,omitempty"`
}

// LoadSettings returns the stored settings; ok is false if none were saved.
func (db *DB) LoadSettings() (s Settings, ok bool, err error) {
	raw, ok, err := db.GetValue(settingsKey)
	if err != nil || !ok {
		return Settings{}, false, err
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	return s, true, nil
}

// SaveSettings replaces the settings record.
func (db *DB) SaveSettings(s Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return db.SetValue(settingsKey, raw)
}

// UpdateSettings applies fn to the current settings and saves the result.
func (db *DB) UpdateSettings(fn func(*Settings)) (Settings, error) {
	s, _, err := db.LoadSettings()
	if err != nil {
		return Settings{}, err
	}
	fn(&s)
	return s, db.SaveSettings(s)
}
