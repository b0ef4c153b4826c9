package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

func historyKey(chatID int64) string {
	return fmt.Sprintf("notify.history.%d", chatID)
}

// AppendHistory adds entry to the chat's notification history, keeps it
// sorted by timestamp and trims it to the newest max entries. It returns
// the trimmed history.
func (db *DB) AppendHistory(chatID int64, entry HistoryEntry, max int) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := db.Tx(func(tx *sql.Tx) error {
		var raw []byte
		err := tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, historyKey(chatID)).Scan(&raw)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &out); err != nil {
				return fmt.Errorf("decode history: %w", err)
			}
		}
		out = append(out, entry)
		slices.SortStableFunc(out, func(a, b HistoryEntry) int {
			switch {
			case a.Timestamp < b.Timestamp:
				return -1
			case a.Timestamp > b.Timestamp:
				return 1
			}
			return 0
		})
		if max > 0 && len(out) > max {
			out = out[len(out)-max:]
		}
		raw, err = json.Marshal(out)
		if err != nil {
			return fmt.Errorf("encode history: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			historyKey(chatID), raw, time.Now().UnixMilli())
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// History returns the chat's notification history, oldest first.
func (db *DB) History(chatID int64) ([]HistoryEntry, error) {
	raw, ok, err := db.GetValue(historyKey(chatID))
	if err != nil || !ok {
		return nil, err
	}
	var out []HistoryEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return out, nil
}

// ClearHistory removes the chat's notification history.
func (db *DB) ClearHistory(chatID int64) error {
	return db.DeleteValue(historyKey(chatID))
}
