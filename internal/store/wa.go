package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const waChatColumns = `id, jid, name, is_group, unread_count, last_read_inbox, draft, draft_at`

func scanWAChat(row interface{ Scan(...any) error }) (*WAChat, error) {
	var c WAChat
	if err := row.Scan(&c.ID, &c.JID, &c.Name, &c.IsGroup, &c.UnreadCount, &c.LastReadInbox, &c.Draft, &c.DraftAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// EnsureWAChat returns the chat for jid, creating it on first sight. A
// non-empty name replaces the stored one.
func (db *DB) EnsureWAChat(jid, name string, isGroup bool) (*WAChat, error) {
	_, err := db.Exec(`
		INSERT INTO wa_chats (jid, name, is_group, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE wa_chats.name END,
			is_group = excluded.is_group,
			updated_at = excluded.updated_at`,
		jid, name, isGroup, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("upsert chat %q: %w", jid, err)
	}
	return db.WAChatByJID(jid)
}

// WAChatByJID returns the chat for jid, or nil.
func (db *DB) WAChatByJID(jid string) (*WAChat, error) {
	c, err := scanWAChat(db.QueryRow(`SELECT `+waChatColumns+` FROM wa_chats WHERE jid = ?`, jid))
	if err != nil {
		return nil, nilIfNoRows(err)
	}
	return c, nil
}

// WAChatByID returns the chat with the given numeric id, or nil.
func (db *DB) WAChatByID(id int64) (*WAChat, error) {
	c, err := scanWAChat(db.QueryRow(`SELECT `+waChatColumns+` FROM wa_chats WHERE id = ?`, id))
	if err != nil {
		return nil, nilIfNoRows(err)
	}
	return c, nil
}

// ListWAChats returns every mirrored chat, most recently updated first.
func (db *DB) ListWAChats(limit int) ([]WAChat, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+waChatColumns+` FROM wa_chats ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []WAChat
	for rows.Next() {
		c, err := scanWAChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

// SetWAChatRead records the inbox read marker and unread count.
func (db *DB) SetWAChatRead(id, lastReadInbox int64, unread int) error {
	_, err := db.Exec(`UPDATE wa_chats SET last_read_inbox = ?, unread_count = ?, updated_at = ? WHERE id = ?`,
		lastReadInbox, unread, time.Now().UnixMilli(), id)
	return err
}

// IncrementWAUnread bumps the unread count and returns the new value.
func (db *DB) IncrementWAUnread(id int64) (int, error) {
	var n int
	err := db.QueryRow(`UPDATE wa_chats SET unread_count = unread_count + 1, updated_at = ? WHERE id = ? RETURNING unread_count`,
		time.Now().UnixMilli(), id).Scan(&n)
	return n, err
}

// SetWADraft stores or clears (empty text) a chat draft.
func (db *DB) SetWADraft(id int64, text string, at int64) error {
	if text == "" {
		at = 0
	}
	_, err := db.Exec(`UPDATE wa_chats SET draft = ?, draft_at = ? WHERE id = ?`, text, at, id)
	return err
}

// EnsureWAUser returns the user for jid, creating it on first sight.
// Non-empty names replace stored ones.
func (db *DB) EnsureWAUser(jid, name, pushName string) (*WAUser, error) {
	_, err := db.Exec(`
		INSERT INTO wa_users (jid, name, push_name, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE wa_users.name END,
			push_name = CASE WHEN excluded.push_name != '' THEN excluded.push_name ELSE wa_users.push_name END,
			updated_at = excluded.updated_at`,
		jid, name, pushName, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("upsert user %q: %w", jid, err)
	}
	var u WAUser
	err = db.QueryRow(`SELECT id, jid, name, push_name FROM wa_users WHERE jid = ?`, jid).
		Scan(&u.ID, &u.JID, &u.Name, &u.PushName)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// WAUserByID returns a user by numeric id, or nil.
func (db *DB) WAUserByID(id int64) (*WAUser, error) {
	var u WAUser
	err := db.QueryRow(`SELECT id, jid, name, push_name FROM wa_users WHERE id = ?`, id).
		Scan(&u.ID, &u.JID, &u.Name, &u.PushName)
	if err != nil {
		return nil, nilIfNoRows(err)
	}
	return &u, nil
}

const waMessageColumns = `id, chat_id, msg_id, sender_id, kind, body, file_name, emoji, from_me, timestamp, edited_at`

func scanWAMessage(row interface{ Scan(...any) error }) (*WAMessage, error) {
	var m WAMessage
	if err := row.Scan(&m.ID, &m.ChatID, &m.MsgID, &m.SenderID, &m.Kind, &m.Body, &m.FileName, &m.Emoji, &m.FromMe, &m.Timestamp, &m.EditedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertWAMessage stores m (idempotent on chat_id + msg_id) and fills in
// m.ID. created is false when the message was already known.
func (db *DB) InsertWAMessage(m *WAMessage) (created bool, err error) {
	err = db.Tx(func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRow(`SELECT id FROM wa_messages WHERE chat_id = ? AND msg_id = ?`, m.ChatID, m.MsgID).Scan(&id)
		if err == nil {
			m.ID = id
			return nil
		}
		if nilIfNoRows(err) != nil {
			return err
		}
		res, err := tx.Exec(`
			INSERT INTO wa_messages (chat_id, msg_id, sender_id, kind, body, file_name, emoji, from_me, timestamp, edited_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ChatID, m.MsgID, m.SenderID, m.Kind, m.Body, m.FileName, m.Emoji, m.FromMe, m.Timestamp, m.EditedAt)
		if err != nil {
			return err
		}
		m.ID, err = res.LastInsertId()
		created = true
		return err
	})
	return created, err
}

// SetWAMessageID rewrites the server id of a message sent optimistically.
func (db *DB) SetWAMessageID(id int64, msgID string) error {
	_, err := db.Exec(`UPDATE wa_messages SET msg_id = ? WHERE id = ?`, msgID, id)
	return err
}

// EditWAMessage replaces a message body and records the edit time.
func (db *DB) EditWAMessage(id int64, body string, editedAt int64) error {
	_, err := db.Exec(`UPDATE wa_messages SET body = ?, edited_at = ? WHERE id = ?`, body, editedAt, id)
	return err
}

// WAMessageByID returns a message by numeric id, or nil.
func (db *DB) WAMessageByID(id int64) (*WAMessage, error) {
	m, err := scanWAMessage(db.QueryRow(`SELECT `+waMessageColumns+` FROM wa_messages WHERE id = ?`, id))
	if err != nil {
		return nil, nilIfNoRows(err)
	}
	return m, nil
}

// WAMessageByMsgID returns a message by its WhatsApp id, or nil.
func (db *DB) WAMessageByMsgID(chatID int64, msgID string) (*WAMessage, error) {
	m, err := scanWAMessage(db.QueryRow(`SELECT `+waMessageColumns+` FROM wa_messages WHERE chat_id = ? AND msg_id = ?`, chatID, msgID))
	if err != nil {
		return nil, nilIfNoRows(err)
	}
	return m, nil
}

// WAHistory returns up to limit messages older than fromID, newest first.
// fromID 0 starts at the newest message.
func (db *DB) WAHistory(chatID, fromID int64, limit int) ([]WAMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + waMessageColumns + ` FROM wa_messages WHERE chat_id = ?`
	args := []any{chatID}
	if fromID != 0 {
		query += ` AND (timestamp, id) < (SELECT timestamp, id FROM wa_messages WHERE id = ?)`
		args = append(args, fromID)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []WAMessage
	for rows.Next() {
		m, err := scanWAMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// LastWAMessage returns the newest message of a chat, or nil.
func (db *DB) LastWAMessage(chatID int64) (*WAMessage, error) {
	msgs, err := db.WAHistory(chatID, 0, 1)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// DeleteWAMessages removes messages by numeric id and returns the ids that
// existed.
func (db *DB) DeleteWAMessages(chatID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var deleted []int64
	err := db.Tx(func(tx *sql.Tx) error {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := []any{chatID}
		for _, id := range ids {
			args = append(args, id)
		}
		rows, err := tx.Query(`DELETE FROM wa_messages WHERE chat_id = ? AND id IN (`+placeholders+`) RETURNING id`, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			deleted = append(deleted, id)
		}
		return rows.Err()
	})
	return deleted, err
}

// CountWAUnread counts incoming messages newer than afterID.
func (db *DB) CountWAUnread(chatID, afterID int64) (int, error) {
	query := `SELECT COUNT(*) FROM wa_messages WHERE chat_id = ? AND from_me = 0`
	args := []any{chatID}
	if afterID != 0 {
		query += ` AND (timestamp, id) > (SELECT timestamp, id FROM wa_messages WHERE id = ?)`
		args = append(args, afterID)
	}
	var n int
	err := db.QueryRow(query, args...).Scan(&n)
	return n, err
}

// ClearWA drops the whole WhatsApp mirror, as after a logout.
func (db *DB) ClearWA() error {
	return db.Tx(func(tx *sql.Tx) error {
		for _, table := range []string{"wa_messages", "wa_chats", "wa_users"} {
			if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}
