package bus

import "time"

// Event kinds published by the engine. Subscribers filter by prefix, so the
// part before the dot is the namespace.
const (
	KindChatsUpdated   = "chats.updated"
	KindFoldersUpdated = "chats.folders"
	KindWindowUpdated  = "window.updated"
	KindWindowOpened   = "window.opened"
	KindWindowClosed   = "window.closed"
	KindFileProgress   = "file.progress"
	KindFileCompleted  = "file.completed"
	KindNotifyPosted   = "notify.posted"
	KindNotifyCleared  = "notify.cleared"
	KindStatusChanged  = "session.status_changed"
	KindAuthLink       = "session.auth_link"
	KindLoggedOut      = "session.logged_out"
	KindOutboxSent     = "outbox.sent"
	KindOutboxFailed   = "outbox.failed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
