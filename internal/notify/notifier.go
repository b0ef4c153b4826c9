package notify

import (
	"context"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/store"
)

// Action is a notification button.
type Action string

const (
	ActionMarkRead Action = "mark_read"
	ActionReply    Action = "reply"
)

// Notification is a grouped, conversation-style notification for one chat.
type Notification struct {
	ChatID   int64
	Title    string
	IsGroup  bool
	Messages []store.HistoryEntry
	// Icon is a PNG thumbnail of the chat photo, when one is on disk.
	Icon    []byte
	Actions []Action
}

// Notifier shows and withdraws notifications.
type Notifier interface {
	Post(ctx context.Context, n Notification) error
	Cancel(ctx context.Context, chatID int64) error
}

// BusNotifier publishes notifications as bus events for whatever
// presentation layer is subscribed.
type BusNotifier struct {
	bus *bus.Bus
}

func NewBusNotifier(b *bus.Bus) *BusNotifier {
	return &BusNotifier{bus: b}
}

func (n *BusNotifier) Post(_ context.Context, notif Notification) error {
	n.bus.Emit(bus.KindNotifyPosted, notif)
	return nil
}

func (n *BusNotifier) Cancel(_ context.Context, chatID int64) error {
	n.bus.Emit(bus.KindNotifyCleared, chatID)
	return nil
}
