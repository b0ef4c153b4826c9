package wa

import (
	"strconv"
	"time"

	"github.com/matheus3301/telesync/internal/td"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// onEvent is the whatsmeow event handler. Events are handled on the client
// goroutine, in order with requests.
func (c *Client) onEvent(raw any) {
	c.post(func(closed bool) {
		if !closed {
			c.handleEvent(raw)
		}
	})
}

func (c *Client) handleEvent(raw any) {
	switch evt := raw.(type) {
	case *events.Message:
		c.handleMessage(evt)
	case *events.HistorySync:
		c.handleHistorySync(evt)
	case *events.Receipt:
		c.handleReceipt(evt)
	case *events.PairSuccess:
		c.setAuth(td.AuthReady, "")
	case *events.Connected:
		c.logger.Info("WhatsApp connected")
		c.setAuth(td.AuthReady, "")
		c.setConnection(td.ConnReady)
	case *events.Disconnected:
		c.logger.Warn("WhatsApp disconnected")
		c.setConnection(td.ConnConnecting)
	case *events.KeepAliveTimeout:
		c.setConnection(td.ConnWaitingForNetwork)
	case *events.KeepAliveRestored:
		c.setConnection(td.ConnReady)
	case *events.LoggedOut:
		c.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		c.loggedOut()
	}
}

func (c *Client) handleMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}
	if pm := evt.Message.GetProtocolMessage(); pm != nil {
		c.handleProtocol(evt.Info.Chat, pm)
		return
	}
	if evt.Message.GetReactionMessage() != nil {
		return
	}
	p := ParseLiveMessage(evt)
	if p.Content.Kind == td.ContentUnknown && evt.Message.GetSenderKeyDistributionMessage() != nil {
		return
	}
	p.ChatJID = c.resolveJID(evt.Info.Chat)
	p.SenderJID = c.resolveJID(evt.Info.Sender)
	name := ""
	if !p.IsGroup && !p.FromMe {
		name = p.PushName
	}
	c.ingest(p, name)
}

// ingest mirrors p and emits the resulting updates.
func (c *Client) ingest(p *ParsedMessage, chatName string) {
	in, err := c.mirror.IngestMessage(p, chatName, c.conn.OwnJID())
	if err != nil {
		c.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_id", p.MsgID))
		return
	}
	if !in.Created {
		return
	}

	if in.Sender != nil && p.PushName != "" && !p.FromMe {
		c.emit(&td.UpdateUser{User: toUser(in.Sender)})
	}
	if !p.FromMe {
		if unread, err := c.db.IncrementWAUnread(in.Chat.ID); err != nil {
			c.logger.Warn("failed to bump unread count", zap.Error(err))
		} else {
			in.Chat.UnreadCount = unread
		}
	}

	msg := toMessage(in.Message)
	if in.NewChat {
		chat, err := c.loadChat(in.Chat)
		if err != nil {
			c.logger.Error("failed to load chat", zap.Error(err), zap.Int64("chat_id", in.Chat.ID))
			return
		}
		c.emit(&td.UpdateNewChat{Chat: chat})
		c.emit(&td.UpdateNewMessage{Message: msg})
		return
	}

	c.emit(&td.UpdateNewMessage{Message: msg})
	c.emitLastMessage(in.Chat.ID)
	if !p.FromMe {
		c.emit(&td.UpdateChatReadInbox{
			ChatID:                 in.Chat.ID,
			LastReadInboxMessageID: in.Chat.LastReadInbox,
			UnreadCount:            int32(in.Chat.UnreadCount),
		})
	}
}

// emitLastMessage reports a chat's newest message and its list position.
func (c *Client) emitLastMessage(chatID int64) {
	ch, err := c.db.WAChatByID(chatID)
	if err != nil || ch == nil {
		return
	}
	chat, err := c.loadChat(ch)
	if err != nil {
		c.logger.Warn("failed to load chat", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}
	c.emit(&td.UpdateChatLastMessage{
		ChatID:      chatID,
		LastMessage: chat.LastMessage,
		Positions:   chat.Positions,
	})
}

// handleProtocol applies remote edits and revokes.
func (c *Client) handleProtocol(chatJID types.JID, pm *waE2E.ProtocolMessage) {
	ch, err := c.db.WAChatByJID(c.resolveJID(chatJID))
	if err != nil || ch == nil {
		return
	}
	target, err := c.db.WAMessageByMsgID(ch.ID, pm.GetKey().GetID())
	if err != nil || target == nil {
		return
	}

	switch pm.GetType() {
	case waE2E.ProtocolMessage_MESSAGE_EDIT:
		content := parseContent(pm.GetEditedMessage())
		now := time.Now().Unix()
		if err := c.db.EditWAMessage(target.ID, content.Text, now); err != nil {
			c.logger.Warn("failed to apply edit", zap.Error(err))
			return
		}
		c.emit(&td.UpdateMessageContent{ChatID: ch.ID, MessageID: target.ID, NewContent: content})
		c.emit(&td.UpdateMessageEdited{ChatID: ch.ID, MessageID: target.ID, EditDate: now})
	case waE2E.ProtocolMessage_REVOKE:
		deleted, err := c.db.DeleteWAMessages(ch.ID, []int64{target.ID})
		if err != nil || len(deleted) == 0 {
			return
		}
		c.emit(&td.UpdateDeleteMessages{ChatID: ch.ID, MessageIDs: deleted, IsPermanent: true})
		c.emitLastMessage(ch.ID)
	}
}

func (c *Client) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	count := 0
	for _, conv := range data.GetConversations() {
		chatJID := c.resolveString(conv.GetID())
		if chatJID == "" {
			continue
		}
		var touched *Ingested
		for _, hm := range conv.GetMessages() {
			p := ParseHistoryMessage(chatJID, hm.GetMessage())
			if p == nil {
				continue
			}
			p.SenderJID = c.resolveString(p.SenderJID)
			in, err := c.mirror.IngestMessage(p, conv.GetName(), c.conn.OwnJID())
			if err != nil {
				c.logger.Error("failed to ingest history message", zap.Error(err), zap.String("msg_id", p.MsgID))
				continue
			}
			if touched == nil || in.NewChat {
				touched = in
			}
			if in.Created {
				count++
			}
		}
		if touched == nil {
			continue
		}
		if unread := conv.GetUnreadCount(); unread > 0 {
			if err := c.db.SetWAChatRead(touched.Chat.ID, touched.Chat.LastReadInbox, int(unread)); err != nil {
				c.logger.Warn("failed to set unread count", zap.Error(err))
			}
		}
		c.announceChat(touched.Chat.ID, touched.NewChat)
	}

	if err := c.mirror.SetCheckpoint(CheckpointHistorySync, strconv.FormatInt(time.Now().UnixMilli(), 10)); err != nil {
		c.logger.Warn("failed to update checkpoint", zap.Error(err))
	}
	c.logger.Info("history batch ingested",
		zap.String("type", data.GetSyncType().String()),
		zap.Int("messages", count))
}

// announceChat emits a new chat, or a refreshed last message for a known one.
func (c *Client) announceChat(chatID int64, isNew bool) {
	if !isNew {
		c.emitLastMessage(chatID)
		return
	}
	ch, err := c.db.WAChatByID(chatID)
	if err != nil || ch == nil {
		return
	}
	chat, err := c.loadChat(ch)
	if err != nil {
		c.logger.Warn("failed to load chat", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}
	c.emit(&td.UpdateNewChat{Chat: chat})
}

// handleReceipt turns read receipts into read markers. Receipts for our
// own reads on another device move the inbox marker; a peer's read moves
// the outbox marker.
func (c *Client) handleReceipt(evt *events.Receipt) {
	if evt.Type != types.ReceiptTypeRead && evt.Type != types.ReceiptTypeReadSelf {
		return
	}
	ch, err := c.db.WAChatByJID(c.resolveJID(evt.Chat))
	if err != nil || ch == nil {
		return
	}
	var newest int64
	for _, id := range evt.MessageIDs {
		m, err := c.db.WAMessageByMsgID(ch.ID, id)
		if err == nil && m != nil && m.ID > newest {
			newest = m.ID
		}
	}
	if newest == 0 {
		return
	}

	if evt.Type == types.ReceiptTypeReadSelf {
		unread, err := c.db.CountWAUnread(ch.ID, newest)
		if err != nil {
			return
		}
		if err := c.db.SetWAChatRead(ch.ID, newest, unread); err != nil {
			c.logger.Warn("failed to store read marker", zap.Error(err))
			return
		}
		c.emit(&td.UpdateChatReadInbox{ChatID: ch.ID, LastReadInboxMessageID: newest, UnreadCount: int32(unread)})
		return
	}
	c.emit(&td.UpdateChatReadOutbox{ChatID: ch.ID, LastReadOutboxMessageID: newest})
}

// loggedOut drops the mirror and reports the session closed.
func (c *Client) loggedOut() {
	c.setAuth(td.AuthLoggingOut, "")
	if err := c.db.ClearWA(); err != nil {
		c.logger.Warn("failed to clear mirror", zap.Error(err))
	}
	c.setAuth(td.AuthClosed, "")
}

func (c *Client) resolveJID(jid types.JID) string {
	if jid.IsEmpty() {
		return ""
	}
	return c.conn.ResolveLID(c.ctx, jid).ToNonAD().String()
}

func (c *Client) resolveString(raw string) string {
	jid, err := types.ParseJID(raw)
	if err != nil {
		return raw
	}
	return c.resolveJID(jid)
}
