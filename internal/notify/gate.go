// Package notify decides which incoming messages surface a notification and
// renders grouped, conversation-style notifications from a persisted
// per-chat history.
package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/matheus3301/telesync/internal/chatlist"
	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

// Candidate is an incoming message together with the engine state the
// decision depends on.
type Candidate struct {
	Message      td.Message
	Chat         chatlist.Chat
	ActiveChatID int64
	MyUserID     int64
	// SenderName is filled in before Deliver for group senders.
	SenderName string
}

// Gate filters and delivers notifications.
type Gate struct {
	db          *store.DB
	notifier    Notifier
	historySize int
	quietOpen   bool
	logger      *zap.Logger

	enabled    atomic.Bool
	foreground atomic.Bool
	// attached counts connected event watchers.
	attached atomic.Int32
}

// NewGate creates a gate. cfg.Enabled seeds the stored notification opt-in
// the first time; after that the stored value wins.
func NewGate(db *store.DB, cfg config.Notifications, notifier Notifier, logger *zap.Logger) (*Gate, error) {
	g := &Gate{
		db:          db,
		notifier:    notifier,
		historySize: cfg.HistorySize,
		quietOpen:   cfg.QuietWhileOpen,
		logger:      logger,
	}
	if g.historySize <= 0 {
		g.historySize = 10
	}
	s, ok, err := db.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		s = store.Settings{NotificationsEnabled: cfg.Enabled}
		if err := db.SaveSettings(s); err != nil {
			return nil, fmt.Errorf("save settings: %w", err)
		}
	}
	g.enabled.Store(s.NotificationsEnabled)
	return g, nil
}

// Enabled reports the notification opt-in.
func (g *Gate) Enabled() bool { return g.enabled.Load() }

// SetEnabled persists the notification opt-in.
func (g *Gate) SetEnabled(on bool) error {
	if _, err := g.db.UpdateSettings(func(s *store.Settings) { s.NotificationsEnabled = on }); err != nil {
		return err
	}
	g.enabled.Store(on)
	return nil
}

// SetForeground records whether a presentation client reports itself in the
// foreground. With quiet_while_open set, nothing is posted while it is.
func (g *Gate) SetForeground(on bool) { g.foreground.Store(on) }

// Attach registers a connected watcher. The gate stays quiet until every
// watcher has called its detach func; extra calls are ignored.
func (g *Gate) Attach() (detach func()) {
	g.attached.Add(1)
	var once sync.Once
	return func() { once.Do(func() { g.attached.Add(-1) }) }
}

func (g *Gate) quiet() bool {
	return g.quietOpen && (g.foreground.Load() || g.attached.Load() > 0)
}

// Decide reports whether c should produce a notification. It does no I/O.
func (g *Gate) Decide(c Candidate) bool {
	m := c.Message
	switch {
	case !g.enabled.Load():
		return false
	case m.ChatID == c.ActiveChatID:
		return false
	case m.IsOutgoing:
		return false
	case c.MyUserID != 0 && m.Sender.UserID == c.MyUserID:
		return false
	case !c.Chat.Notify:
		return false
	case g.quiet():
		return false
	}
	return true
}

// Deliver appends the message to the chat's history and posts a
// notification carrying the trimmed history.
func (g *Gate) Deliver(ctx context.Context, c Candidate) error {
	m := c.Message
	entry := store.HistoryEntry{
		MessageID: m.ID,
		Sender:    senderName(c),
		Text:      chatlist.Preview(&m),
		Timestamp: m.Date,
	}
	history, err := g.db.AppendHistory(m.ChatID, entry, g.historySize)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	n := Notification{
		ChatID:   m.ChatID,
		Title:    c.Chat.Title,
		IsGroup:  !c.Chat.IsPrivate(),
		Messages: history,
		Actions:  []Action{ActionMarkRead, ActionReply},
	}
	if c.Chat.Photo != nil {
		icon, err := Icon(c.Chat.Photo.Local.Path)
		if err != nil {
			g.logger.Debug("notification icon unavailable", zap.Int64("chat_id", m.ChatID), zap.Error(err))
		}
		n.Icon = icon
	}
	if err := g.notifier.Post(ctx, n); err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	g.logger.Debug("notification posted",
		zap.Int64("chat_id", m.ChatID),
		zap.Int64("message_id", m.ID),
		zap.Int("history", len(history)))
	return nil
}

func senderName(c Candidate) string {
	if c.SenderName == "" && c.Chat.IsPrivate() {
		return c.Chat.Title
	}
	return c.SenderName
}

// Dismiss drops the chat's history and withdraws its notification.
func (g *Gate) Dismiss(ctx context.Context, chatID int64) error {
	if err := g.db.ClearHistory(chatID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return g.notifier.Cancel(ctx, chatID)
}
