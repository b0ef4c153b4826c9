package store

import "time"

// QueueOutbox adds a message to the send outbox.
func (db *DB) QueueOutbox(clientMsgID string, chatID, replyTo int64, body string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (client_msg_id, chat_id, reply_to, body, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'queued', ?, ?)`,
		clientMsgID, chatID, replyTo, body, now, now)
	return err
}

// MarkOutboxSending claims a queued entry. It reports false if another
// sender already claimed it.
func (db *DB) MarkOutboxSending(clientMsgID string) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`UPDATE outbox SET status = 'sending', updated_at = ? WHERE client_msg_id = ? AND status = 'queued'`, now, clientMsgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkOutboxSent marks an entry as handed to the backend.
func (db *DB) MarkOutboxSent(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(clientMsgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`, errMsg, now, clientMsgID)
	return err
}

// RequeueSending puts entries left in 'sending' by a crashed process back in
// the queue and returns how many were requeued.
func (db *DB) RequeueSending() (int64, error) {
	res, err := db.Exec(`UPDATE outbox SET status = 'queued', updated_at = ? WHERE status = 'sending'`, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PendingOutbox returns outbox entries that are still queued, oldest first.
func (db *DB) PendingOutbox(limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, client_msg_id, chat_id, reply_to, body, status, error_message
		FROM outbox WHERE status = 'queued' ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.ChatID, &e.ReplyTo, &e.Body, &e.Status, &e.ErrorMessage); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetOutbox returns one entry by client id, or nil.
func (db *DB) GetOutbox(clientMsgID string) (*OutboxEntry, error) {
	var e OutboxEntry
	err := db.QueryRow(`
		SELECT id, client_msg_id, chat_id, reply_to, body, status, error_message
		FROM outbox WHERE client_msg_id = ?`, clientMsgID).
		Scan(&e.ID, &e.ClientMsgID, &e.ChatID, &e.ReplyTo, &e.Body, &e.Status, &e.ErrorMessage)
	if err != nil {
		return nil, nilIfNoRows(err)
	}
	return &e, nil
}
