package engine

import (
	"context"
	"fmt"

	"github.com/matheus3301/telesync/internal/chatlist"
	"github.com/matheus3301/telesync/internal/correlator"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

// GetMe returns the logged-in user. The first successful answer is cached.
func (e *Engine) GetMe(ctx context.Context) (*td.User, error) {
	if me := e.me.Load(); me != nil {
		return me, nil
	}
	me, err := correlator.Call[*td.User](ctx, e.corr, td.GetMe{})
	if err != nil {
		return nil, err
	}
	e.me.Store(me)
	return me, nil
}

func (e *Engine) myID() int64 {
	if me := e.me.Load(); me != nil {
		return me.ID
	}
	return 0
}

// GetChat asks the backend for a chat and records it in the chat list.
func (e *Engine) GetChat(ctx context.Context, chatID int64) (*td.Chat, error) {
	chat, err := correlator.Call[*td.Chat](ctx, e.corr, td.GetChat{ChatID: chatID})
	if err != nil {
		return nil, err
	}
	return chat, e.do(ctx, func() { e.chats.Upsert(chat) })
}

// GetUser returns a user, from the local cache when known.
func (e *Engine) GetUser(ctx context.Context, userID int64) (*td.User, error) {
	var cached *td.User
	if err := e.do(ctx, func() { cached = e.users[userID] }); err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	user, err := correlator.Call[*td.User](ctx, e.corr, td.GetUser{UserID: userID})
	if err != nil {
		return nil, err
	}
	return user, e.do(ctx, func() { e.users[user.ID] = user })
}

// cachedSenderName runs on the loop and never asks the backend.
func (e *Engine) cachedSenderName(s td.MessageSender) string {
	if s.ChatID != 0 {
		if chat, ok := e.chats.Snapshot().Get(s.ChatID); ok {
			return chat.Title
		}
		return ""
	}
	if u, ok := e.users[s.UserID]; ok {
		return chatlist.UserTitle(u)
	}
	return ""
}

func (e *Engine) fetchSenderName(ctx context.Context, s td.MessageSender) string {
	if s.ChatID != 0 {
		chat, err := e.GetChat(ctx, s.ChatID)
		if err != nil {
			return ""
		}
		return chat.Title
	}
	u, err := e.GetUser(ctx, s.UserID)
	if err != nil {
		e.logger.Debug("sender unresolved", zap.Int64("user_id", s.UserID), zap.Error(err))
		return ""
	}
	return chatlist.UserTitle(u)
}

// JoinChat joins a public group or channel.
func (e *Engine) JoinChat(ctx context.Context, chatID int64) error {
	_, err := e.corr.Do(ctx, td.JoinChat{ChatID: chatID})
	return err
}

// SearchPublicChat resolves a username and records the chat it names.
func (e *Engine) SearchPublicChat(ctx context.Context, username string) (*td.Chat, error) {
	chat, err := correlator.Call[*td.Chat](ctx, e.corr, td.SearchPublicChat{Username: username})
	if err != nil {
		return nil, err
	}
	return chat, e.do(ctx, func() { e.chats.Upsert(chat) })
}

// SearchPublicChats returns the ids of public chats matching query.
func (e *Engine) SearchPublicChats(ctx context.Context, query string) ([]int64, error) {
	chats, err := correlator.Call[*td.Chats](ctx, e.corr, td.SearchPublicChats{Query: query})
	if err != nil {
		return nil, err
	}
	return chats.ChatIDs, nil
}

// LoadArchive refreshes every archived chat into the chat list and returns
// how many were loaded. Chats that fail to load are skipped.
func (e *Engine) LoadArchive(ctx context.Context, limit int32) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := correlator.Call[*td.Chats](ctx, e.corr, td.GetChats{List: td.ChatList{Kind: td.ListArchive}, Limit: limit})
	if err != nil {
		return 0, fmt.Errorf("get archive: %w", err)
	}
	loaded := 0
	for _, id := range ids.ChatIDs {
		if _, err := e.GetChat(ctx, id); err != nil {
			if ctx.Err() != nil {
				return loaded, ctx.Err()
			}
			e.logger.Warn("failed to load archived chat", zap.Int64("chat_id", id), zap.Error(err))
			continue
		}
		loaded++
	}
	return loaded, nil
}

// AddProxy adds a proxy, enabling it when enable is set.
func (e *Engine) AddProxy(ctx context.Context, p td.Proxy, enable bool) (*td.Proxy, error) {
	return correlator.Call[*td.Proxy](ctx, e.corr, td.AddProxy{Proxy: p, Enable: enable})
}

// RemoveProxy deletes a proxy.
func (e *Engine) RemoveProxy(ctx context.Context, id int32) error {
	_, err := e.corr.Do(ctx, td.RemoveProxy{ProxyID: id})
	return err
}

// EnableProxy routes traffic through proxy id.
func (e *Engine) EnableProxy(ctx context.Context, id int32) error {
	_, err := e.corr.Do(ctx, td.EnableProxy{ProxyID: id})
	return err
}

// DisableProxy stops using any proxy.
func (e *Engine) DisableProxy(ctx context.Context) error {
	_, err := e.corr.Do(ctx, td.DisableProxy{})
	return err
}

// Proxies lists the configured proxies.
func (e *Engine) Proxies(ctx context.Context) ([]td.Proxy, error) {
	resp, err := correlator.Call[*td.Proxies](ctx, e.corr, td.GetProxies{})
	if err != nil {
		return nil, err
	}
	return resp.Proxies, nil
}

// LogOut ends the session on the backend. Caches are dropped when the
// backend reports the session closed.
func (e *Engine) LogOut(ctx context.Context) error {
	_, err := e.corr.Do(ctx, td.LogOut{})
	return err
}

// PushReceiverID asks the backend which account a push payload is for.
func (e *Engine) PushReceiverID(ctx context.Context, payload string) (int64, error) {
	resp, err := correlator.Call[*td.PushReceiverID](ctx, e.corr, td.GetPushReceiverID{Payload: payload})
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// ProcessPush hands a push payload to the backend. The messages it carries
// arrive as ordinary updates.
func (e *Engine) ProcessPush(ctx context.Context, payload string) error {
	_, err := e.corr.Do(ctx, td.ProcessPushNotification{Payload: payload})
	return err
}

// SetPushToken stores the device push token and registers it when the
// session is connected.
func (e *Engine) SetPushToken(ctx context.Context, token string) error {
	if e.db == nil {
		return fmt.Errorf("set push token: no settings store")
	}
	if _, err := e.db.UpdateSettings(func(s *store.Settings) { s.PushToken = token }); err != nil {
		return err
	}
	if e.Connection() == td.ConnReady {
		e.registerPushToken(ctx)
	}
	return nil
}

// registerPushToken registers the stored push token with the backend and
// records the receiver id it answers with.
func (e *Engine) registerPushToken(ctx context.Context) {
	if e.db == nil || e.gate == nil || !e.gate.Enabled() {
		return
	}
	s, ok, err := e.db.LoadSettings()
	if err != nil || !ok || s.PushToken == "" {
		return
	}
	resp, err := correlator.Call[*td.PushReceiverID](ctx, e.corr, td.RegisterDevice{Token: s.PushToken})
	if err != nil {
		e.logger.Warn("push token registration failed", zap.Error(err))
		return
	}
	if _, err := e.db.UpdateSettings(func(s *store.Settings) { s.PushReceiverID = resp.ID }); err != nil {
		e.logger.Error("failed to store push receiver id", zap.Error(err))
		return
	}
	e.logger.Info("push token registered", zap.Int64("receiver_id", resp.ID))
}
