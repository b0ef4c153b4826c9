package api

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/chatlist"
	"github.com/matheus3301/telesync/internal/engine"
	"github.com/matheus3301/telesync/internal/notify"
	"github.com/matheus3301/telesync/internal/outbox"
	"github.com/matheus3301/telesync/internal/status"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/window"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ID formats an id for the wire.
func ID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseID reads an id written by ID. Numbers are accepted too.
func ParseID(v *structpb.Value) (int64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return strconv.ParseInt(k.StringValue, 10, 64)
	case *structpb.Value_NumberValue:
		return int64(k.NumberValue), nil
	case nil, *structpb.Value_NullValue:
		return 0, nil
	default:
		return 0, fmt.Errorf("not an id: %v", v)
	}
}

func field(in *structpb.Struct, key string) *structpb.Value {
	return in.GetFields()[key]
}

func requireID(in *structpb.Struct, key string) (int64, error) {
	id, err := ParseID(field(in, key))
	if err != nil {
		return 0, grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", key, err)
	}
	if id == 0 {
		return 0, grpcstatus.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return id, nil
}

func optionalID(in *structpb.Struct, key string) (int64, error) {
	id, err := ParseID(field(in, key))
	if err != nil {
		return 0, grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", key, err)
	}
	return id, nil
}

func stringArg(in *structpb.Struct, key string) string {
	return field(in, key).GetStringValue()
}

func intArg(in *structpb.Struct, key string) int64 {
	return int64(field(in, key).GetNumberValue())
}

func boolArg(in *structpb.Struct, key string) bool {
	return field(in, key).GetBoolValue()
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return s, nil
}

func messageValue(m td.Message) map[string]any {
	v := map[string]any{
		"id":         ID(m.ID),
		"chat_id":    ID(m.ChatID),
		"date":       m.Date,
		"outgoing":   m.IsOutgoing,
		"kind":       string(m.Content.Kind),
		"text":       m.Content.Text,
		"preview":    chatlist.PreviewContent(m.Content),
		"send_state": sendState(m.SendState),
	}
	if m.Sender.UserID != 0 {
		v["sender_user_id"] = ID(m.Sender.UserID)
	} else if m.Sender.ChatID != 0 {
		v["sender_chat_id"] = ID(m.Sender.ChatID)
	}
	if m.EditDate != 0 {
		v["edit_date"] = m.EditDate
	}
	if m.ReplyToMessageID != 0 {
		v["reply_to"] = ID(m.ReplyToMessageID)
	}
	if m.Content.FileName != "" {
		v["file_name"] = m.Content.FileName
	}
	if m.Content.Emoji != "" {
		v["emoji"] = m.Content.Emoji
	}
	if f := m.Content.File; f != nil {
		v["file_id"] = int64(f.ID)
	}
	return v
}

func sendState(s td.SendState) string {
	switch s {
	case td.SendStatePending:
		return "pending"
	case td.SendStateFailed:
		return "failed"
	default:
		return "sent"
	}
}

func windowValue(w *window.Snapshot) map[string]any {
	if w == nil {
		return map[string]any{}
	}
	msgs := make([]any, 0, len(w.Messages))
	for _, m := range w.Messages {
		msgs = append(msgs, messageValue(m))
	}
	return map[string]any{
		"chat_id":          ID(w.ChatID),
		"messages":         msgs,
		"last_read_inbox":  ID(w.LastReadInbox),
		"last_read_outbox": ID(w.LastReadOutbox),
	}
}

func chatValue(c chatlist.Chat) map[string]any {
	v := map[string]any{
		"id":                ID(c.ID),
		"title":             c.Title,
		"kind":              string(c.Kind),
		"list":              c.List.String(),
		"order":             ID(c.Order),
		"pinned":            c.Pinned(),
		"unread":            int64(c.UnreadCount),
		"preview":           c.Preview,
		"last_message_id":   ID(c.LastMessageID),
		"last_message_time": c.LastMessageTime,
		"muted":             !c.Notify,
		"bot":               c.IsBot,
	}
	if c.Draft != nil {
		v["draft"] = c.Draft.Text
	}
	return v
}

func parseList(name string, folder int64) (td.ChatList, error) {
	switch name {
	case "", "main":
		return td.ChatList{Kind: td.ListMain}, nil
	case "archive":
		return td.ChatList{Kind: td.ListArchive}, nil
	case "folder":
		return td.ChatList{Kind: td.ListFolder, FolderID: int32(folder)}, nil
	default:
		return td.ChatList{}, grpcstatus.Errorf(codes.InvalidArgument, "unknown chat list %q", name)
	}
}

// chatsInList filters a snapshot to one list. Folder membership is not
// tracked, so folders yield the main list.
func chatsInList(s *chatlist.Snapshot, list td.ChatList) []chatlist.Chat {
	if list.Kind == td.ListFolder {
		return s.Sorted(td.ListMain)
	}
	return s.Sorted(list.Kind)
}

// eventValue renders a bus event for WatchEvents.
func eventValue(evt bus.Event) (*structpb.Struct, error) {
	return newStruct(map[string]any{
		"id":      uuid.NewString(),
		"kind":    evt.Kind,
		"ts_ms":   evt.Timestamp.UnixMilli(),
		"payload": payloadValue(evt.Payload),
	})
}

func payloadValue(p any) map[string]any {
	switch v := p.(type) {
	case nil:
		return map[string]any{}
	case *chatlist.Snapshot:
		return map[string]any{"version": int64(v.Version), "chats": int64(len(v.Chats))}
	case []td.ChatFolder:
		folders := make([]any, 0, len(v))
		for _, f := range v {
			folders = append(folders, map[string]any{"id": int64(f.ID), "title": f.Title})
		}
		return map[string]any{"folders": folders}
	case *window.Snapshot:
		return windowValue(v)
	case int64:
		return map[string]any{"chat_id": ID(v)}
	case string:
		return map[string]any{"link": v}
	case td.File:
		return map[string]any{
			"file_id":    int64(v.ID),
			"size":       v.Size,
			"downloaded": v.Local.DownloadedSize,
		}
	case engine.FileResult:
		return map[string]any{"file_id": int64(v.FileID), "ok": v.OK, "path": v.Path}
	case notify.Notification:
		msgs := make([]any, 0, len(v.Messages))
		for _, m := range v.Messages {
			msgs = append(msgs, map[string]any{
				"message_id": ID(m.MessageID),
				"sender":     m.Sender,
				"text":       m.Text,
				"timestamp":  m.Timestamp,
			})
		}
		actions := make([]any, 0, len(v.Actions))
		for _, a := range v.Actions {
			actions = append(actions, string(a))
		}
		return map[string]any{
			"chat_id":  ID(v.ChatID),
			"title":    v.Title,
			"is_group": v.IsGroup,
			"messages": msgs,
			"actions":  actions,
			"has_icon": len(v.Icon) > 0,
		}
	case status.StatusChange:
		return map[string]any{"from": string(v.From), "to": string(v.To)}
	case outbox.Sent:
		return map[string]any{"client_id": v.ClientMsgID, "chat_id": ID(v.ChatID), "message_id": ID(v.MessageID)}
	case outbox.Failed:
		return map[string]any{"client_id": v.ClientMsgID, "chat_id": ID(v.ChatID), "error": v.Error}
	default:
		return map[string]any{"value": fmt.Sprint(v)}
	}
}
