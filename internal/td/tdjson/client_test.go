package tdjson

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// bridge is a scripted TDLib bridge. answer maps a request to the frames
// written back; a nil result writes nothing.
type bridge struct {
	received chan map[string]any
	push     chan []byte
	answer   func(req map[string]any) []map[string]any
}

func newBridge(t *testing.T, answer func(map[string]any) []map[string]any) (*bridge, string) {
	t.Helper()
	b := &bridge{
		received: make(chan map[string]any, 32),
		push:     make(chan []byte, 32),
		answer:   answer,
	}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (b *bridge) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	out := make(chan []byte, 32)
	quit := make(chan struct{})
	go func() {
		for {
			var msg []byte
			select {
			case msg = <-b.push:
			case msg = <-out:
			case <-quit:
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			close(quit)
			return
		}
		var req map[string]any
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		b.received <- req
		if b.answer == nil {
			continue
		}
		for _, frame := range b.answer(req) {
			frame["@extra"] = req["@extra"]
			data, _ := json.Marshal(frame)
			out <- data
		}
	}
}

func (b *bridge) sendUpdate(raw string) {
	b.push <- []byte(raw)
}

func dial(t *testing.T, url string, params td.SetTdlibParameters) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, params, zap.NewNop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func call(t *testing.T, c *Client, req td.Request) td.Response {
	t.Helper()
	ch := make(chan td.Response, 1)
	c.Send(req, func(r td.Response) { ch <- r })
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("no reply to %s", req.Type())
		return nil
	}
}

func nextUpdate(t *testing.T, c *Client) td.Update {
	t.Helper()
	select {
	case u, ok := <-c.Updates():
		if !ok {
			t.Fatal("updates closed")
		}
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("no update")
		return nil
	}
}

func TestRequestCorrelation(t *testing.T) {
	_, url := newBridge(t, func(req map[string]any) []map[string]any {
		switch req["@type"] {
		case "getChat":
			return []map[string]any{{
				"@type": "chat",
				"id":    req["chat_id"],
				"type":  map[string]any{"@type": "chatTypePrivate", "user_id": 77},
				"title": "Alice",
				"positions": []any{map[string]any{
					"@type": "chatPosition",
					"list":  map[string]any{"@type": "chatListMain"},
					"order": "9007199254740993",
				}},
				"unread_count": 2,
			}}
		case "getChatHistory":
			return []map[string]any{{
				"@type":       "messages",
				"total_count": 1,
				"messages": []any{map[string]any{
					"@type":     "message",
					"id":        500,
					"chat_id":   req["chat_id"],
					"sender_id": map[string]any{"@type": "messageSenderUser", "user_id": 77},
					"date":      1700000000,
					"content": map[string]any{
						"@type": "messageText",
						"text":  map[string]any{"@type": "formattedText", "text": "hello"},
					},
				}, nil},
			}}
		default:
			return []map[string]any{{"@type": "error", "code": 404, "message": "Not Found"}}
		}
	})
	c := dial(t, url, td.SetTdlibParameters{})

	chat, ok := call(t, c, td.GetChat{ChatID: 42}).(*td.Chat)
	if !ok {
		t.Fatal("getChat did not return a chat")
	}
	if chat.ID != 42 || chat.Kind != td.ChatPrivate || chat.UserID != 77 || chat.UnreadCount != 2 {
		t.Errorf("chat = %+v", chat)
	}
	if pos, ok := td.MainPosition(chat.Positions); !ok || pos.Order != 9007199254740993 {
		t.Errorf("main position = %+v, %v", pos, ok)
	}

	msgs, ok := call(t, c, td.GetChatHistory{ChatID: 42, Limit: 10}).(*td.Messages)
	if !ok || len(msgs.Messages) != 1 {
		t.Fatalf("history = %+v", msgs)
	}
	if m := msgs.Messages[0]; m.ID != 500 || m.Sender.UserID != 77 || m.Content.Text != "hello" {
		t.Errorf("message = %+v", m)
	}

	e, ok := call(t, c, td.GetUser{UserID: 1}).(*td.Error)
	if !ok || !e.IsPermanent() {
		t.Errorf("getUser reply = %+v, want permanent error", e)
	}
}

func TestRequestEncoding(t *testing.T) {
	b, url := newBridge(t, func(map[string]any) []map[string]any {
		return []map[string]any{{"@type": "ok"}}
	})
	c := dial(t, url, td.SetTdlibParameters{})

	if _, ok := call(t, c, td.SendMessage{ChatID: 5, ReplyToMessageID: 9, Text: "hi"}).(*td.Ok); !ok {
		t.Fatal("want ok")
	}
	req := <-b.received
	if req["@type"] != "sendMessage" || req["chat_id"] != float64(5) {
		t.Errorf("request = %v", req)
	}
	content := req["input_message_content"].(map[string]any)
	text := content["text"].(map[string]any)
	if content["@type"] != "inputMessageText" || text["text"] != "hi" {
		t.Errorf("content = %v", content)
	}
	if reply := req["reply_to"].(map[string]any); reply["message_id"] != float64(9) {
		t.Errorf("reply_to = %v", reply)
	}

	call(t, c, td.SetChatDraftMessage{ChatID: 5})
	req = <-b.received
	if _, present := req["draft_message"]; present {
		t.Errorf("empty draft should clear, got %v", req["draft_message"])
	}

	call(t, c, td.GetChats{List: td.ChatList{Kind: td.ListFolder, FolderID: 3}, Limit: 20})
	req = <-b.received
	list := req["chat_list"].(map[string]any)
	if list["@type"] != "chatListFolder" || list["chat_folder_id"] != float64(3) {
		t.Errorf("chat_list = %v", list)
	}
}

func TestWaitParametersIsAnswered(t *testing.T) {
	b, url := newBridge(t, func(map[string]any) []map[string]any {
		return []map[string]any{{"@type": "ok"}}
	})
	c := dial(t, url, td.SetTdlibParameters{
		DatabaseDirectory: "/tmp/db",
		DatabaseKey:       []byte{1, 2, 3},
		APIID:             12345,
		APIHash:           "hash",
	})

	b.sendUpdate(`{"@type":"updateAuthorizationState","authorization_state":{"@type":"authorizationStateWaitTdlibParameters"}}`)

	u, ok := nextUpdate(t, c).(*td.UpdateAuthorizationState)
	if !ok || u.State != td.AuthWaitParameters {
		t.Fatalf("update = %+v", u)
	}
	select {
	case req := <-b.received:
		if req["@type"] != "setTdlibParameters" || req["api_id"] != float64(12345) || req["database_directory"] != "/tmp/db" {
			t.Errorf("parameters = %v", req)
		}
		if req["database_encryption_key"] != "AQID" {
			t.Errorf("key = %v, want base64", req["database_encryption_key"])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("parameters were not sent")
	}
}

func TestUpdateDecoding(t *testing.T) {
	b, url := newBridge(t, nil)
	c := dial(t, url, td.SetTdlibParameters{})

	b.sendUpdate(`{"@type":"updateAuthorizationState","authorization_state":{"@type":"authorizationStateWaitOtherDeviceConfirmation","link":"tg://login?token=abc"}}`)
	if u := nextUpdate(t, c).(*td.UpdateAuthorizationState); u.State != td.AuthWaitOtherDeviceConfirmation || u.Link != "tg://login?token=abc" {
		t.Errorf("auth = %+v", u)
	}

	b.sendUpdate(`{"@type":"updateNewMessage","message":{"@type":"message","id":7,"chat_id":3,"is_outgoing":true,"sending_state":{"@type":"messageSendingStatePending"},"content":{"@type":"messagePhoto","caption":{"text":"look"},"photo":{"sizes":[{"photo":{"id":1}},{"photo":{"id":2,"size":900}}]}}}}`)
	nm := nextUpdate(t, c).(*td.UpdateNewMessage)
	if nm.Message.SendState != td.SendStatePending || !nm.Message.IsOutgoing {
		t.Errorf("message = %+v", nm.Message)
	}
	if ct := nm.Message.Content; ct.Kind != td.ContentPhoto || ct.Text != "look" || ct.File == nil || ct.File.ID != 2 {
		t.Errorf("content = %+v", ct)
	}

	b.sendUpdate(`{"@type":"updateDeleteMessages","chat_id":3,"message_ids":[7,8],"is_permanent":true}`)
	if d := nextUpdate(t, c).(*td.UpdateDeleteMessages); !d.IsPermanent || len(d.MessageIDs) != 2 {
		t.Errorf("delete = %+v", d)
	}

	b.sendUpdate(`{"@type":"updateChatDraftMessage","chat_id":3,"positions":[]}`)
	if d := nextUpdate(t, c).(*td.UpdateChatDraftMessage); d.DraftMessage != nil {
		t.Errorf("cleared draft = %+v", d.DraftMessage)
	}

	b.sendUpdate(`{"@type":"updateConnectionState","state":{"@type":"connectionStateUpdating"}}`)
	if cs := nextUpdate(t, c).(*td.UpdateConnectionState); cs.State != td.ConnUpdating {
		t.Errorf("connection = %+v", cs)
	}

	b.sendUpdate(`{"@type":"updateOption","name":"version"}`)
	if u := nextUpdate(t, c).(*td.UpdateUnknown); u.Type != "updateOption" {
		t.Errorf("unknown = %+v", u)
	}
}

func TestCloseAnswersPending(t *testing.T) {
	_, url := newBridge(t, nil)
	c := dial(t, url, td.SetTdlibParameters{})

	got := make(chan td.Response, 1)
	c.Send(td.GetMe{}, func(r td.Response) { got <- r })
	c.Close()

	select {
	case r := <-got:
		if _, ok := r.(*td.Error); !ok {
			t.Errorf("reply = %T, want error", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending request was never answered")
	}

	for range c.Updates() {
	}

	after := call(t, c, td.GetMe{})
	if _, ok := after.(*td.Error); !ok {
		t.Errorf("send after close = %T, want error", after)
	}
}
