package engine

import (
	"context"
	"fmt"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/correlator"
	"github.com/matheus3301/telesync/internal/notify"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/window"
	"go.uber.org/zap"
)

// DefaultPageSize is the history page size used when callers pass zero.
const DefaultPageSize = 50

// OpenChat makes chatID the active chat. A chat visited earlier in this
// session comes back exactly as it was left; otherwise its window starts
// from seed.
func (e *Engine) OpenChat(ctx context.Context, chatID int64, seed []td.Message) (*window.Snapshot, error) {
	var snap *window.Snapshot
	err := e.do(ctx, func() {
		w, restored := e.windows.Open(chatID, seed)
		if !restored {
			if chat, ok := e.chats.Snapshot().Get(chatID); ok {
				w.SetLastReadInbox(chat.LastReadInbox)
			}
		}
		e.corr.Send(td.OpenChat{ChatID: chatID})
		snap = w.Snapshot()
		e.activeWindow.Store(snap)
		e.bus.Emit(bus.KindWindowOpened, snap)
		e.logger.Debug("chat opened",
			zap.Int64("chat_id", chatID),
			zap.Bool("restored", restored),
			zap.Int("messages", w.Len()))
	})
	return snap, err
}

// CloseChat leaves the active chat, saving draft as its draft message
// first, and discards its window.
func (e *Engine) CloseChat(ctx context.Context, draft string) error {
	var closeErr error
	err := e.do(ctx, func() {
		id, ok := e.windows.Close()
		if !ok {
			closeErr = ErrNoActiveChat
			return
		}
		e.corr.Send(td.SetChatDraftMessage{ChatID: id, Text: draft})
		e.corr.Send(td.CloseChat{ChatID: id})
		e.activeWindow.Store(nil)
		e.bus.Emit(bus.KindWindowClosed, id)
	})
	if err != nil {
		return err
	}
	return closeErr
}

// FetchMore loads history older than fromMessageID into the active window
// of chatID. Zero fromMessageID continues from the oldest message already
// in the window. Further pages are requested one after another while policy
// allows. Pages arriving after the chat was left are dropped. It returns
// how many messages were added.
func (e *Engine) FetchMore(ctx context.Context, chatID, fromMessageID int64, limit int32, policy window.Backfill) (int, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	var epoch uint64
	var inactive bool
	err := e.do(ctx, func() {
		w := e.windows.Active()
		if w == nil || w.ChatID() != chatID {
			inactive = true
			return
		}
		epoch = e.windows.Epoch()
		if fromMessageID == 0 {
			fromMessageID = w.Oldest()
		}
	})
	if err != nil {
		return 0, err
	}
	if inactive {
		return 0, ErrNoActiveChat
	}

	total := 0
	from := fromMessageID
	for pages := 1; ; pages++ {
		resp, err := correlator.Call[*td.Messages](ctx, e.corr, td.GetChatHistory{
			ChatID:        chatID,
			FromMessageID: from,
			Limit:         limit,
		})
		if err != nil {
			return total, fmt.Errorf("get history: %w", err)
		}
		page := make([]td.Message, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			if m != nil {
				page = append(page, *m)
			}
		}

		added, stale := 0, false
		err = e.do(ctx, func() {
			if !e.windows.Current(chatID, epoch) {
				stale = true
				return
			}
			w := e.windows.Active()
			added = w.AppendPage(page)
			if added > 0 {
				e.publishWindow(w)
			}
		})
		if err != nil {
			return total, err
		}
		if stale {
			e.logger.Debug("dropping history page for inactive chat", zap.Int64("chat_id", chatID))
			return total, nil
		}
		total += added
		if added == 0 || !policy.Continue(pages, page) {
			return total, nil
		}
		from = oldestID(page)
	}
}

func oldestID(page []td.Message) int64 {
	oldest := page[0]
	for _, m := range page[1:] {
		if m.Date < oldest.Date || (m.Date == oldest.Date && m.ID < oldest.ID) {
			oldest = m
		}
	}
	return oldest.ID
}

// SendText queues text for chatID. The returned id names the outbox entry,
// or is empty when the message went straight to the backend.
func (e *Engine) SendText(ctx context.Context, chatID, replyTo int64, text string) (string, error) {
	if e.queue != nil {
		return e.queue.Queue(chatID, replyTo, text)
	}
	e.corr.Send(td.SendMessage{ChatID: chatID, ReplyToMessageID: replyTo, Text: text})
	return "", nil
}

// EditText replaces the text of a message. The window changes when the
// backend confirms the edit.
func (e *Engine) EditText(ctx context.Context, chatID, messageID int64, text string) error {
	_, err := e.corr.Do(ctx, td.EditMessageText{ChatID: chatID, MessageID: messageID, Text: text})
	if err != nil {
		e.logger.Warn("edit failed", zap.Int64("chat_id", chatID), zap.Int64("message_id", messageID), zap.Error(err))
	}
	return err
}

// DeleteMessages deletes messages, for everyone when revoke is set.
func (e *Engine) DeleteMessages(ctx context.Context, chatID int64, ids []int64, revoke bool) error {
	_, err := e.corr.Do(ctx, td.DeleteMessages{ChatID: chatID, MessageIDs: ids, Revoke: revoke})
	if err != nil {
		e.logger.Warn("delete failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return err
}

// MarkRead marks the chat read up to messageID and drops its notification.
// Zero messageID means the chat's last message.
func (e *Engine) MarkRead(ctx context.Context, chatID, messageID int64) error {
	if messageID == 0 {
		chat, err := correlator.Call[*td.Chat](ctx, e.corr, td.GetChat{ChatID: chatID})
		if err != nil {
			return fmt.Errorf("get chat: %w", err)
		}
		if chat.LastMessage != nil {
			messageID = chat.LastMessage.ID
		}
	}
	if messageID != 0 {
		e.corr.Send(td.ViewMessages{ChatID: chatID, MessageIDs: []int64{messageID}, ForceRead: true})
	}
	if e.gate != nil {
		if err := e.gate.Dismiss(ctx, chatID); err != nil {
			e.logger.Warn("failed to dismiss notification", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
	return nil
}

// HandleAction performs a notification action. text is the inline reply.
func (e *Engine) HandleAction(ctx context.Context, chatID int64, action notify.Action, text string) error {
	switch action {
	case notify.ActionMarkRead:
		return e.MarkRead(ctx, chatID, 0)
	case notify.ActionReply:
		if _, err := e.SendText(ctx, chatID, 0, text); err != nil {
			return err
		}
		return e.MarkRead(ctx, chatID, 0)
	default:
		return fmt.Errorf("unknown notification action %q", action)
	}
}

// Dismiss drops a chat's notification and its history.
func (e *Engine) Dismiss(ctx context.Context, chatID int64) error {
	if e.gate == nil {
		return nil
	}
	return e.gate.Dismiss(ctx, chatID)
}

// ReloadMessage fetches a message again and replaces the copy held in the
// chat's window.
func (e *Engine) ReloadMessage(ctx context.Context, chatID, messageID int64) (*td.Message, error) {
	msg, err := correlator.Call[*td.Message](ctx, e.corr, td.GetMessage{ChatID: chatID, MessageID: messageID})
	if err != nil {
		return nil, err
	}
	err = e.do(ctx, func() {
		if w := e.windows.Lookup(chatID); w != nil && w.Replace(*msg) {
			e.publishWindow(w)
		}
	})
	return msg, err
}
