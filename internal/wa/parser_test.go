package wa

import (
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/td"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestExtractTextBody(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil message", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, "hello"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("extended")}}, "extended"},
		{"image (no text)", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, ""},
		{"empty conversation", &waE2E.Message{Conversation: proto.String("")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTextBody(tt.msg); got != tt.want {
				t.Errorf("extractTextBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseContent(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want td.Content
	}{
		{"nil", nil, td.Content{Kind: td.ContentUnknown}},
		{"text", &waE2E.Message{Conversation: proto.String("hi there")}, td.Content{Kind: td.ContentText, Text: "hi there"}},
		{"single emoji", &waE2E.Message{Conversation: proto.String("🔥")}, td.Content{Kind: td.ContentAnimatedEmoji, Emoji: "🔥"}},
		{"emoji with text", &waE2E.Message{Conversation: proto.String("🔥 hot")}, td.Content{Kind: td.ContentText, Text: "🔥 hot"}},
		{"photo caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("look")}}, td.Content{Kind: td.ContentPhoto, Text: "look"}},
		{"video", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}}, td.Content{Kind: td.ContentVideo}},
		{"gif", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{GifPlayback: proto.Bool(true)}}, td.Content{Kind: td.ContentAnimation}},
		{"voice", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}, td.Content{Kind: td.ContentVoice}},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{FileName: proto.String("a.pdf")}}, td.Content{Kind: td.ContentDocument, FileName: "a.pdf"}},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, td.Content{Kind: td.ContentSticker}},
		{"location", &waE2E.Message{LocationMessage: &waE2E.LocationMessage{}}, td.Content{Kind: td.ContentUnknown}},
		{"empty message", &waE2E.Message{}, td.Content{Kind: td.ContentUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseContent(tt.msg); got != tt.want {
				t.Errorf("parseContent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseLiveMessage(t *testing.T) {
	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	evt := &events.Message{
		Info: types.MessageInfo{
			PushName:  "Alice",
			Timestamp: ts,
			MessageSource: types.MessageSource{
				Chat:     types.JID{User: "chat", Server: types.DefaultUserServer},
				Sender:   types.JID{User: "sender", Server: types.DefaultUserServer, Device: 3},
				IsFromMe: true,
			},
			ID: "MSG123",
		},
		Message: &waE2E.Message{Conversation: proto.String("hello world")},
	}

	p := ParseLiveMessage(evt)

	if p.ChatJID != "chat@s.whatsapp.net" {
		t.Errorf("ChatJID = %q", p.ChatJID)
	}
	if p.SenderJID != "sender@s.whatsapp.net" {
		t.Errorf("SenderJID = %q, want device suffix stripped", p.SenderJID)
	}
	if p.MsgID != "MSG123" || p.PushName != "Alice" || !p.FromMe || p.IsGroup {
		t.Errorf("parsed = %+v", p)
	}
	if p.Content.Text != "hello world" {
		t.Errorf("Text = %q", p.Content.Text)
	}
	if p.Timestamp != ts.Unix() {
		t.Errorf("Timestamp = %d, want %d", p.Timestamp, ts.Unix())
	}
}

func TestParseHistoryMessage(t *testing.T) {
	ts := uint64(1700000000)
	wm := &waWeb.WebMessageInfo{
		Key: &waCommon.MessageKey{
			ID:          proto.String("hm1"),
			FromMe:      proto.Bool(false),
			RemoteJID:   proto.String("120363@g.us"),
			Participant: proto.String("5511:2@s.whatsapp.net"),
		},
		MessageTimestamp: &ts,
		PushName:         proto.String("Eric"),
		Message:          &waE2E.Message{Conversation: proto.String("old news")},
	}

	p := ParseHistoryMessage("120363@g.us", wm)
	if p == nil {
		t.Fatal("nil result")
	}
	if !p.IsGroup {
		t.Error("group chat not detected")
	}
	if p.SenderJID != "5511@s.whatsapp.net" {
		t.Errorf("SenderJID = %q", p.SenderJID)
	}
	if p.Timestamp != 1700000000 || p.PushName != "Eric" || p.Content.Text != "old news" {
		t.Errorf("parsed = %+v", p)
	}

	if ParseHistoryMessage("x@s.whatsapp.net", &waWeb.WebMessageInfo{}) != nil {
		t.Error("entry without content should be skipped")
	}
}

func TestParseHistoryMessagePrivateSender(t *testing.T) {
	wm := &waWeb.WebMessageInfo{
		Key:     &waCommon.MessageKey{ID: proto.String("p1"), FromMe: proto.Bool(false)},
		Message: &waE2E.Message{Conversation: proto.String("hey")},
	}
	p := ParseHistoryMessage("5511@s.whatsapp.net", wm)
	if p.SenderJID != "5511@s.whatsapp.net" {
		t.Errorf("SenderJID = %q, want the peer of a private chat", p.SenderJID)
	}
}

func TestNormalizeJID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"558592403672@s.whatsapp.net", "558592403672@s.whatsapp.net"},
		{"558592403672:0@s.whatsapp.net", "558592403672@s.whatsapp.net"},
		{"558592403672:5@s.whatsapp.net", "558592403672@s.whatsapp.net"},
		{"120363123456@g.us", "120363123456@g.us"},
		{"", ""},
		{"3917077286968@lid", "3917077286968@lid"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeJID(tt.input); got != tt.want {
				t.Errorf("NormalizeJID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
