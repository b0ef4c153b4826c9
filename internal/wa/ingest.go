package wa

import (
	"fmt"
	"strconv"
	"time"

	"github.com/matheus3301/telesync/internal/store"
	"go.uber.org/zap"
)

// Checkpoint keys kept in the app store.
const (
	CheckpointHistorySync = "wa.checkpoint.history_sync"
	CheckpointLastMessage = "wa.checkpoint.last_message"
)

// Ingested is the outcome of mirroring one message.
type Ingested struct {
	Chat    *store.WAChat
	NewChat bool
	Sender  *store.WAUser
	Message *store.WAMessage
	Created bool
}

// Mirror handles idempotent ingestion of WhatsApp messages into the app
// store, mapping JIDs to the stable numeric ids the engine works with.
type Mirror struct {
	db     *store.DB
	logger *zap.Logger
}

// NewMirror creates a mirror over db.
func NewMirror(db *store.DB, logger *zap.Logger) *Mirror {
	return &Mirror{db: db, logger: logger}
}

// IngestMessage stores p. ownJID, when known, is the sender of outgoing
// messages.
func (m *Mirror) IngestMessage(p *ParsedMessage, chatName, ownJID string) (*Ingested, error) {
	before, err := m.db.WAChatByJID(p.ChatJID)
	if err != nil {
		return nil, fmt.Errorf("lookup chat: %w", err)
	}
	chat, err := m.db.EnsureWAChat(p.ChatJID, chatName, p.IsGroup)
	if err != nil {
		return nil, err
	}

	senderJID := p.SenderJID
	if p.FromMe {
		senderJID = ownJID
	}
	var sender *store.WAUser
	if senderJID != "" {
		if sender, err = m.db.EnsureWAUser(senderJID, "", pushNameOf(p)); err != nil {
			return nil, err
		}
	}

	row := &store.WAMessage{
		ChatID:    chat.ID,
		MsgID:     p.MsgID,
		Kind:      string(p.Content.Kind),
		Body:      p.Content.Text,
		FileName:  p.Content.FileName,
		Emoji:     p.Content.Emoji,
		FromMe:    p.FromMe,
		Timestamp: p.Timestamp,
	}
	if sender != nil {
		row.SenderID = sender.ID
	}
	created, err := m.db.InsertWAMessage(row)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if created {
		if err := m.SetCheckpoint(CheckpointLastMessage, strconv.FormatInt(p.Timestamp, 10)); err != nil {
			m.logger.Warn("failed to update checkpoint", zap.Error(err))
		}
	}
	return &Ingested{
		Chat:    chat,
		NewChat: before == nil,
		Sender:  sender,
		Message: row,
		Created: created,
	}, nil
}

// pushNameOf drops push names on outgoing messages; they carry our own.
func pushNameOf(p *ParsedMessage) string {
	if p.FromMe {
		return ""
	}
	return p.PushName
}

// SetCheckpoint updates a sync checkpoint value.
func (m *Mirror) SetCheckpoint(key, value string) error {
	return m.db.SetValue(key, []byte(value))
}

// Checkpoint returns a sync checkpoint value; ok is false when unset.
func (m *Mirror) Checkpoint(key string) (value string, ok bool, err error) {
	raw, ok, err := m.db.GetValue(key)
	return string(raw), ok, err
}

// LastHistorySync returns when the last history batch was mirrored.
func (m *Mirror) LastHistorySync() (time.Time, bool, error) {
	v, ok, err := m.Checkpoint(CheckpointHistorySync)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}
