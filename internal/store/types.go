package store

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ChatID       int64
	ReplyTo      int64
	Body         string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
}

// HistoryEntry is one line of a conversation-style notification.
type HistoryEntry struct {
	MessageID int64  `json:"message_id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// WAChat is the local mirror of a WhatsApp conversation. ID is the stable
// numeric id handed to the engine in place of the JID.
type WAChat struct {
	ID            int64
	JID           string
	Name          string
	IsGroup       bool
	UnreadCount   int
	LastReadInbox int64
	Draft         string
	DraftAt       int64
}

// WAUser is a WhatsApp contact with a stable numeric id.
type WAUser struct {
	ID       int64
	JID      string
	Name     string
	PushName string
}

// WAMessage is a mirrored WhatsApp message. ID is the numeric message id.
type WAMessage struct {
	ID        int64
	ChatID    int64
	MsgID     string
	SenderID  int64
	Kind      string
	Body      string
	FileName  string
	Emoji     string
	FromMe    bool
	Timestamp int64
	EditedAt  int64
}
