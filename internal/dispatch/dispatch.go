// Package dispatch routes backend updates to exactly one typed handler.
package dispatch

import (
	"fmt"

	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

// Handler has one method per update kind. Adding a kind to td breaks every
// implementation until it handles the new kind.
type Handler interface {
	OnAuthorizationState(u *td.UpdateAuthorizationState)
	OnNewMessage(u *td.UpdateNewMessage)
	OnMessageContent(u *td.UpdateMessageContent)
	OnMessageEdited(u *td.UpdateMessageEdited)
	OnDeleteMessages(u *td.UpdateDeleteMessages)
	OnMessageSendSucceeded(u *td.UpdateMessageSendSucceeded)
	OnMessageSendFailed(u *td.UpdateMessageSendFailed)
	OnNewChat(u *td.UpdateNewChat)
	OnChatTitle(u *td.UpdateChatTitle)
	OnChatPhoto(u *td.UpdateChatPhoto)
	OnChatPosition(u *td.UpdateChatPosition)
	OnChatLastMessage(u *td.UpdateChatLastMessage)
	OnChatReadInbox(u *td.UpdateChatReadInbox)
	OnChatReadOutbox(u *td.UpdateChatReadOutbox)
	OnChatNotificationSettings(u *td.UpdateChatNotificationSettings)
	OnChatDraftMessage(u *td.UpdateChatDraftMessage)
	OnChatFolders(u *td.UpdateChatFolders)
	OnFile(u *td.UpdateFile)
	OnUser(u *td.UpdateUser)
	OnConnectionState(u *td.UpdateConnectionState)
}

// Dispatcher classifies updates and calls the matching Handler method.
type Dispatcher struct {
	handler Handler
	logger  *zap.Logger
}

// New creates a dispatcher for h.
func New(h Handler, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{handler: h, logger: logger}
}

// Dispatch handles one update. A panicking handler loses that update only;
// Dispatch reports false for dropped updates.
func (d *Dispatcher) Dispatch(u td.Update) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("update handler panicked",
				zap.String("update", fmt.Sprintf("%T", u)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			handled = false
		}
	}()

	h := d.handler
	switch u := u.(type) {
	case *td.UpdateAuthorizationState:
		h.OnAuthorizationState(u)
	case *td.UpdateNewMessage:
		h.OnNewMessage(u)
	case *td.UpdateMessageContent:
		h.OnMessageContent(u)
	case *td.UpdateMessageEdited:
		h.OnMessageEdited(u)
	case *td.UpdateDeleteMessages:
		h.OnDeleteMessages(u)
	case *td.UpdateMessageSendSucceeded:
		h.OnMessageSendSucceeded(u)
	case *td.UpdateMessageSendFailed:
		h.OnMessageSendFailed(u)
	case *td.UpdateNewChat:
		h.OnNewChat(u)
	case *td.UpdateChatTitle:
		h.OnChatTitle(u)
	case *td.UpdateChatPhoto:
		h.OnChatPhoto(u)
	case *td.UpdateChatPosition:
		h.OnChatPosition(u)
	case *td.UpdateChatLastMessage:
		h.OnChatLastMessage(u)
	case *td.UpdateChatReadInbox:
		h.OnChatReadInbox(u)
	case *td.UpdateChatReadOutbox:
		h.OnChatReadOutbox(u)
	case *td.UpdateChatNotificationSettings:
		h.OnChatNotificationSettings(u)
	case *td.UpdateChatDraftMessage:
		h.OnChatDraftMessage(u)
	case *td.UpdateChatFolders:
		h.OnChatFolders(u)
	case *td.UpdateFile:
		h.OnFile(u)
	case *td.UpdateUser:
		h.OnUser(u)
	case *td.UpdateConnectionState:
		h.OnConnectionState(u)
	case *td.UpdateUnknown:
		d.logger.Debug("dropping unknown update", zap.String("type", u.Type))
		return false
	default:
		d.logger.Warn("dropping unclassified update", zap.String("type", fmt.Sprintf("%T", u)))
		return false
	}
	return true
}
