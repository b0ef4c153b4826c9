package store

import (
	"database/sql"
	"errors"
	"time"
)

// GetValue returns the value stored under key. ok is false when absent.
func (db *DB) GetValue(key string) (value []byte, ok bool, err error) {
	err = db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// SetValue stores value under key.
func (db *DB) SetValue(key string, value []byte) error {
	_, err := db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

// DeleteValue removes key. Deleting a missing key is not an error.
func (db *DB) DeleteValue(key string) error {
	_, err := db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}
