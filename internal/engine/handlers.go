package engine

import (
	"context"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/chatlist"
	"github.com/matheus3301/telesync/internal/dispatch"
	"github.com/matheus3301/telesync/internal/notify"
	"github.com/matheus3301/telesync/internal/status"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

// The methods below implement dispatch.Handler and only ever run on the
// loop goroutine.
var _ dispatch.Handler = (*Engine)(nil)

func (e *Engine) OnAuthorizationState(u *td.UpdateAuthorizationState) {
	e.logger.Info("authorization state", zap.String("state", string(u.State)))
	switch u.State {
	case td.AuthWaitParameters:
		// The client answers this itself.
	case td.AuthWaitPhoneNumber, td.AuthWaitCode, td.AuthWaitPassword, td.AuthWaitOtherDeviceConfirmation:
		e.transition(status.AuthRequired)
		if u.Link != "" {
			e.bus.Emit(bus.KindAuthLink, u.Link)
		}
	case td.AuthReady:
		if !e.status.Current().Online() {
			e.transition(status.Connecting)
		}
		go e.primeMe()
	case td.AuthLoggingOut:
		e.transition(status.LoggingOut)
		e.bus.Emit(bus.KindLoggedOut, nil)
	case td.AuthClosing, td.AuthClosed:
		e.transition(status.Closed)
		e.reset()
	}
	e.setAuthorization(u.State)
}

func (e *Engine) primeMe() {
	if _, err := e.GetMe(e.ctx); err != nil {
		e.logger.Warn("failed to load current user", zap.Error(err))
	}
}

// reset drops every cache, as after logout.
func (e *Engine) reset() {
	e.chats.Reset()
	e.windows.Reset()
	e.activeWindow.Store(nil)
	clear(e.users)
	e.me.Store(nil)
}

func (e *Engine) OnNewMessage(u *td.UpdateNewMessage) {
	m := u.Message
	if w := e.windows.Lookup(m.ChatID); w != nil && w.Insert(*m) {
		e.publishWindow(w)
	}
	e.maybeNotify(*m)
}

func (e *Engine) maybeNotify(m td.Message) {
	if e.gate == nil {
		return
	}
	chat, ok := e.chats.Snapshot().Get(m.ChatID)
	if !ok {
		chat = chatlist.Chat{ID: m.ChatID, Notify: true}
	}
	c := notify.Candidate{
		Message:      m,
		Chat:         chat,
		ActiveChatID: e.windows.ActiveID(),
		MyUserID:     e.myID(),
	}
	if !e.gate.Decide(c) {
		return
	}
	if !chat.IsPrivate() || m.Sender.ChatID != 0 {
		c.SenderName = e.cachedSenderName(m.Sender)
	}
	e.enqueueNotice(c)
}

// enqueueNotice hands c to the delivery worker, starting it when idle.
// Deliveries run one at a time in arrival order so a chat's last posted
// notification always carries its newest history.
func (e *Engine) enqueueNotice(c notify.Candidate) {
	e.noticeMu.Lock()
	defer e.noticeMu.Unlock()
	e.notices = append(e.notices, c)
	if e.noticeBusy {
		return
	}
	e.noticeBusy = true
	e.deliveries.Add(1)
	go e.drainNotices()
}

func (e *Engine) drainNotices() {
	defer e.deliveries.Done()
	for {
		e.noticeMu.Lock()
		if len(e.notices) == 0 {
			e.noticeBusy = false
			e.noticeMu.Unlock()
			return
		}
		c := e.notices[0]
		e.notices = e.notices[1:]
		e.noticeMu.Unlock()
		e.deliver(c)
	}
}

func (e *Engine) deliver(c notify.Candidate) {
	if c.SenderName == "" && !c.Chat.IsPrivate() {
		c.SenderName = e.fetchSenderName(e.ctx, c.Message.Sender)
	}
	if err := e.gate.Deliver(context.WithoutCancel(e.ctx), c); err != nil {
		e.logger.Error("failed to deliver notification", zap.Int64("chat_id", c.Message.ChatID), zap.Error(err))
	}
}

func (e *Engine) OnMessageContent(u *td.UpdateMessageContent) {
	if w := e.windows.Lookup(u.ChatID); w != nil && w.SetContent(u.MessageID, u.NewContent) {
		e.publishWindow(w)
	}
}

func (e *Engine) OnMessageEdited(u *td.UpdateMessageEdited) {
	if w := e.windows.Lookup(u.ChatID); w != nil && w.SetEdited(u.MessageID, u.EditDate) {
		e.publishWindow(w)
	}
}

func (e *Engine) OnDeleteMessages(u *td.UpdateDeleteMessages) {
	if !u.IsPermanent {
		return
	}
	if w := e.windows.Lookup(u.ChatID); w != nil && w.Delete(u.MessageIDs) > 0 {
		e.publishWindow(w)
	}
}

func (e *Engine) OnMessageSendSucceeded(u *td.UpdateMessageSendSucceeded) {
	if w := e.windows.Lookup(u.Message.ChatID); w != nil {
		w.ReplaceSent(u.OldMessageID, *u.Message)
		e.publishWindow(w)
	}
}

func (e *Engine) OnMessageSendFailed(u *td.UpdateMessageSendFailed) {
	e.logger.Warn("message send failed",
		zap.Int64("chat_id", u.Message.ChatID),
		zap.Int64("old_message_id", u.OldMessageID),
		zap.Int32("code", u.Error.Code),
		zap.String("message", u.Error.Message))
	if w := e.windows.Lookup(u.Message.ChatID); w != nil {
		failed := *u.Message
		failed.SendState = td.SendStateFailed
		w.ReplaceSent(u.OldMessageID, failed)
		e.publishWindow(w)
	}
}

func (e *Engine) OnNewChat(u *td.UpdateNewChat) {
	e.chats.Upsert(u.Chat)
	if user, ok := e.users[u.Chat.UserID]; ok && u.Chat.Kind == td.ChatPrivate {
		e.chats.SetUser(user)
	}
}

func (e *Engine) OnChatTitle(u *td.UpdateChatTitle) {
	e.chats.SetTitle(u.ChatID, u.Title)
}

func (e *Engine) OnChatPhoto(u *td.UpdateChatPhoto) {
	e.chats.SetPhoto(u.ChatID, u.Photo)
}

func (e *Engine) OnChatPosition(u *td.UpdateChatPosition) {
	e.chats.SetPosition(u.ChatID, u.Position)
}

func (e *Engine) OnChatLastMessage(u *td.UpdateChatLastMessage) {
	e.chats.SetLastMessage(u.ChatID, u.LastMessage, u.Positions)
}

func (e *Engine) OnChatReadInbox(u *td.UpdateChatReadInbox) {
	e.chats.SetUnread(u.ChatID, u.LastReadInboxMessageID, u.UnreadCount)
	if w := e.windows.Lookup(u.ChatID); w != nil {
		w.SetLastReadInbox(u.LastReadInboxMessageID)
		e.publishWindow(w)
	}
}

func (e *Engine) OnChatReadOutbox(u *td.UpdateChatReadOutbox) {
	if w := e.windows.Lookup(u.ChatID); w != nil {
		w.SetLastReadOutbox(u.LastReadOutboxMessageID)
		e.publishWindow(w)
	}
}

func (e *Engine) OnChatNotificationSettings(u *td.UpdateChatNotificationSettings) {
	e.chats.SetMute(u.ChatID, u.MuteFor)
}

func (e *Engine) OnChatDraftMessage(u *td.UpdateChatDraftMessage) {
	e.chats.SetDraft(u.ChatID, u.DraftMessage, u.Positions)
}

func (e *Engine) OnChatFolders(u *td.UpdateChatFolders) {
	e.chats.SetFolders(u.Folders)
}

func (e *Engine) OnFile(u *td.UpdateFile) {
	e.files.HandleFile(u.File)
}

func (e *Engine) OnUser(u *td.UpdateUser) {
	e.users[u.User.ID] = u.User
	e.chats.SetUser(u.User)
	if me := e.me.Load(); me != nil && me.ID == u.User.ID {
		e.me.Store(u.User)
	}
}

func (e *Engine) OnConnectionState(u *td.UpdateConnectionState) {
	e.connection.Store(u.State)
	if cur := e.status.Current(); cur == status.AuthRequired || cur == status.LoggingOut || cur == status.Closed {
		return
	}
	switch u.State {
	case td.ConnWaitingForNetwork:
		e.transition(status.WaitingForNetwork)
	case td.ConnConnectingToProxy:
		e.transition(status.ConnectingToProxy)
	case td.ConnConnecting:
		e.transition(status.Connecting)
	case td.ConnUpdating:
		e.transition(status.Updating)
	case td.ConnReady:
		e.transition(status.Ready)
		go e.registerPushToken(e.ctx)
	}
}
