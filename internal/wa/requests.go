package wa

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

const sendTimeout = 30 * time.Second

func unsupported(req td.Request) *td.Error {
	return &td.Error{Code: 400, Message: req.Type() + " is not supported by the WhatsApp backend"}
}

func notFound(what string) *td.Error {
	return &td.Error{Code: td.CodeNotFound, Message: what + " not found"}
}

func internalError(err error) *td.Error {
	return &td.Error{Code: 500, Message: err.Error()}
}

// handle answers one request. Runs on the client goroutine.
func (c *Client) handle(req td.Request) td.Response {
	switch r := req.(type) {
	case td.GetChat:
		return c.getChat(r.ChatID)
	case td.GetChats:
		return c.getChats(r)
	case td.GetUser:
		u, err := c.db.WAUserByID(r.UserID)
		if err != nil {
			return internalError(err)
		}
		if u == nil {
			return notFound("user")
		}
		return toUser(u)
	case td.GetMe:
		return c.getMe()
	case td.GetMessage:
		return c.getMessage(r.ChatID, r.MessageID)
	case td.GetMessages:
		out := &td.Messages{}
		for _, id := range r.MessageIDs {
			if m, ok := c.getMessage(r.ChatID, id).(*td.Message); ok {
				out.Messages = append(out.Messages, m)
			}
		}
		out.TotalCount = int32(len(out.Messages))
		return out
	case td.GetChatHistory:
		return c.getHistory(r)
	case td.SendMessage:
		return c.sendMessage(r)
	case td.DeleteMessages:
		return c.deleteMessages(r)
	case td.ViewMessages:
		return c.viewMessages(r)
	case td.SetChatDraftMessage:
		return c.setDraft(r)
	case td.AddProxy:
		return c.addProxy(r)
	case td.RemoveProxy:
		return c.removeProxy(r.ProxyID)
	case td.EnableProxy:
		return c.enableProxy(r.ProxyID)
	case td.DisableProxy:
		return c.disableProxy()
	case td.GetProxies:
		return c.getProxies()
	case td.OpenChat, td.CloseChat, td.SetTdlibParameters:
		return &td.Ok{}
	case td.LogOut:
		return c.logOut()
	case td.Close:
		go func() { _ = c.Close() }()
		return &td.Ok{}
	default:
		return unsupported(req)
	}
}

func (c *Client) getChat(chatID int64) td.Response {
	ch, err := c.db.WAChatByID(chatID)
	if err != nil {
		return internalError(err)
	}
	if ch == nil {
		return notFound("chat")
	}
	chat, err := c.loadChat(ch)
	if err != nil {
		return internalError(err)
	}
	return chat
}

// getChats lists the main list. WhatsApp archive state is not mirrored, so
// other lists are empty.
func (c *Client) getChats(r td.GetChats) td.Response {
	if r.List.Kind != td.ListMain {
		return &td.Chats{}
	}
	chats, err := c.db.ListWAChats(int(r.Limit))
	if err != nil {
		return internalError(err)
	}
	out := &td.Chats{}
	for _, ch := range chats {
		out.ChatIDs = append(out.ChatIDs, ch.ID)
	}
	return out
}

func (c *Client) getMe() td.Response {
	own := c.conn.OwnJID()
	if own == "" {
		return &td.Error{Code: 401, Message: "unauthorized"}
	}
	u, err := c.db.EnsureWAUser(own, "", "")
	if err != nil {
		return internalError(err)
	}
	return toUser(u)
}

func (c *Client) getMessage(chatID, messageID int64) td.Response {
	m, err := c.db.WAMessageByID(messageID)
	if err != nil {
		return internalError(err)
	}
	if m == nil || m.ChatID != chatID {
		return notFound("message")
	}
	return toMessage(m)
}

func (c *Client) getHistory(r td.GetChatHistory) td.Response {
	rows, err := c.db.WAHistory(r.ChatID, r.FromMessageID, int(r.Limit))
	if err != nil {
		return internalError(err)
	}
	out := &td.Messages{TotalCount: int32(len(rows))}
	for i := range rows {
		out.Messages = append(out.Messages, toMessage(&rows[i]))
	}
	return out
}

// sendMessage stores a pending message, answers with it and sends it in
// the background. The outcome arrives as a send-succeeded or send-failed
// update carrying the same id.
func (c *Client) sendMessage(r td.SendMessage) td.Response {
	ch, err := c.db.WAChatByID(r.ChatID)
	if err != nil {
		return internalError(err)
	}
	if ch == nil {
		return notFound("chat")
	}

	row := &store.WAMessage{
		ChatID:    ch.ID,
		MsgID:     pendingPrefix + uuid.NewString(),
		Kind:      string(td.ContentText),
		Body:      r.Text,
		FromMe:    true,
		Timestamp: time.Now().Unix(),
	}
	if own := c.conn.OwnJID(); own != "" {
		if u, err := c.db.EnsureWAUser(own, "", ""); err == nil {
			row.SenderID = u.ID
		}
	}
	if _, err := c.db.InsertWAMessage(row); err != nil {
		return internalError(err)
	}

	msg := toMessage(row)
	c.emit(&td.UpdateNewMessage{Message: msg})
	c.emitLastMessage(ch.ID)

	go c.deliver(row.ID, ch.JID, r.Text)
	return msg
}

func (c *Client) deliver(id int64, jid, text string) {
	ctx, cancel := context.WithTimeout(c.ctx, sendTimeout)
	defer cancel()
	serverID, sendErr := c.conn.SendText(ctx, jid, text)

	c.post(func(closed bool) {
		if closed {
			return
		}
		if sendErr != nil {
			c.logger.Warn("send failed", zap.Int64("message_id", id), zap.Error(sendErr))
			serverID = failedPrefix + uuid.NewString()
		}
		if err := c.db.SetWAMessageID(id, serverID); err != nil {
			c.logger.Error("failed to record send result", zap.Int64("message_id", id), zap.Error(err))
			return
		}
		m, err := c.db.WAMessageByID(id)
		if err != nil || m == nil {
			return
		}
		msg := toMessage(m)
		if sendErr != nil {
			c.emit(&td.UpdateMessageSendFailed{
				Message:      msg,
				OldMessageID: id,
				Error:        td.Error{Code: 500, Message: sendErr.Error()},
			})
			return
		}
		c.emit(&td.UpdateMessageSendSucceeded{Message: msg, OldMessageID: id})
	})
}

// deleteMessages removes messages from this device only.
func (c *Client) deleteMessages(r td.DeleteMessages) td.Response {
	if r.Revoke {
		return unsupported(r)
	}
	deleted, err := c.db.DeleteWAMessages(r.ChatID, r.MessageIDs)
	if err != nil {
		return internalError(err)
	}
	if len(deleted) > 0 {
		c.emit(&td.UpdateDeleteMessages{ChatID: r.ChatID, MessageIDs: deleted, IsPermanent: true})
		c.emitLastMessage(r.ChatID)
	}
	return &td.Ok{}
}

// viewMessages moves the local inbox marker. Read receipts are not sent.
func (c *Client) viewMessages(r td.ViewMessages) td.Response {
	ch, err := c.db.WAChatByID(r.ChatID)
	if err != nil {
		return internalError(err)
	}
	if ch == nil {
		return notFound("chat")
	}
	newest := ch.LastReadInbox
	for _, id := range r.MessageIDs {
		newest = max(newest, id)
	}
	if newest == ch.LastReadInbox {
		return &td.Ok{}
	}
	unread, err := c.db.CountWAUnread(ch.ID, newest)
	if err != nil {
		return internalError(err)
	}
	if err := c.db.SetWAChatRead(ch.ID, newest, unread); err != nil {
		return internalError(err)
	}
	c.emit(&td.UpdateChatReadInbox{ChatID: ch.ID, LastReadInboxMessageID: newest, UnreadCount: int32(unread)})
	return &td.Ok{}
}

func (c *Client) setDraft(r td.SetChatDraftMessage) td.Response {
	ch, err := c.db.WAChatByID(r.ChatID)
	if err != nil {
		return internalError(err)
	}
	if ch == nil {
		return notFound("chat")
	}
	if r.Text == ch.Draft {
		return &td.Ok{}
	}
	now := time.Now().Unix()
	if err := c.db.SetWADraft(ch.ID, r.Text, now); err != nil {
		return internalError(err)
	}
	ch.Draft, ch.DraftAt = r.Text, now
	if r.Text == "" {
		ch.DraftAt = 0
	}
	chat, err := c.loadChat(ch)
	if err != nil {
		return internalError(err)
	}
	c.emit(&td.UpdateChatDraftMessage{ChatID: ch.ID, DraftMessage: chat.DraftMessage, Positions: chat.Positions})
	return &td.Ok{}
}

// logOut unlinks the device in the background; the outcome is reported
// through authorization updates.
func (c *Client) logOut() td.Response {
	if c.auth != td.AuthReady {
		return &td.Error{Code: 401, Message: "unauthorized"}
	}
	c.setAuth(td.AuthLoggingOut, "")
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, sendTimeout)
		defer cancel()
		if err := c.conn.Logout(ctx); err != nil {
			c.logger.Warn("logout failed", zap.Error(err))
		}
		c.post(func(closed bool) {
			if !closed {
				c.loggedOut()
			}
		})
	}()
	return &td.Ok{}
}
