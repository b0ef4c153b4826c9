package wa

import (
	"strings"

	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
)

// Temporary msg_id prefixes for messages sent from this device.
const (
	pendingPrefix = "pending:"
	failedPrefix  = "failed:"
)

func toMessage(m *store.WAMessage) *td.Message {
	msg := &td.Message{
		ID:         m.ID,
		ChatID:     m.ChatID,
		Sender:     td.MessageSender{UserID: m.SenderID},
		Date:       m.Timestamp,
		EditDate:   m.EditedAt,
		IsOutgoing: m.FromMe,
		Content: td.Content{
			Kind:     td.ContentKind(m.Kind),
			Text:     m.Body,
			FileName: m.FileName,
			Emoji:    m.Emoji,
		},
	}
	switch {
	case strings.HasPrefix(m.MsgID, pendingPrefix):
		msg.SendState = td.SendStatePending
	case strings.HasPrefix(m.MsgID, failedPrefix):
		msg.SendState = td.SendStateFailed
	}
	return msg
}

func toUser(u *store.WAUser) *td.User {
	first := u.Name
	if first == "" {
		first = u.PushName
	}
	if first == "" {
		first = "+" + phoneOf(u.JID)
	}
	return &td.User{
		ID:        u.ID,
		FirstName: first,
		Username:  phoneOf(u.JID),
		Kind:      td.UserRegular,
	}
}

func phoneOf(jid string) string {
	user, _, _ := strings.Cut(jid, "@")
	return user
}

// chatOrder sorts by activity, breaking ties by chat id.
func chatOrder(ts, chatID int64) int64 {
	if ts <= 0 {
		return 0
	}
	return ts<<20 | chatID&(1<<20-1)
}

func mainPositions(order int64) []td.ChatPosition {
	if order == 0 {
		return nil
	}
	return []td.ChatPosition{{List: td.ChatList{Kind: td.ListMain}, Order: order}}
}

// loadChat builds the full chat view from the mirror.
func (c *Client) loadChat(ch *store.WAChat) (*td.Chat, error) {
	chat := &td.Chat{
		ID:                     ch.ID,
		Kind:                   td.ChatPrivate,
		Title:                  ch.Name,
		UnreadCount:            int32(ch.UnreadCount),
		LastReadInboxMessageID: ch.LastReadInbox,
	}
	if ch.IsGroup {
		chat.Kind = td.ChatGroup
		if chat.Title == "" {
			chat.Title = phoneOf(ch.JID)
		}
	} else {
		u, err := c.db.EnsureWAUser(ch.JID, "", "")
		if err != nil {
			return nil, err
		}
		chat.UserID = u.ID
		if chat.Title == "" {
			chat.Title = toUser(u).FirstName
		}
	}

	last, err := c.db.LastWAMessage(ch.ID)
	if err != nil {
		return nil, err
	}
	activity := ch.DraftAt
	if last != nil {
		chat.LastMessage = toMessage(last)
		activity = max(activity, last.Timestamp)
	}
	if ch.Draft != "" {
		chat.DraftMessage = &td.DraftMessage{Date: ch.DraftAt, Text: ch.Draft}
	}
	chat.Positions = mainPositions(chatOrder(activity, ch.ID))
	return chat, nil
}
