package wa

import (
	"strings"

	"github.com/forPelevin/gomoji"
	"github.com/matheus3301/telesync/internal/td"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// ParsedMessage is a normalized message ready for ingestion. Timestamp is
// unix seconds.
type ParsedMessage struct {
	ChatJID   string
	IsGroup   bool
	MsgID     string
	SenderJID string
	PushName  string
	Content   td.Content
	FromMe    bool
	Timestamp int64
}

// ParseLiveMessage normalizes a live whatsmeow message event.
func ParseLiveMessage(evt *events.Message) *ParsedMessage {
	return &ParsedMessage{
		ChatJID:   NormalizeJID(evt.Info.Chat.String()),
		IsGroup:   evt.Info.IsGroup || evt.Info.Chat.Server == types.GroupServer,
		MsgID:     evt.Info.ID,
		SenderJID: NormalizeJID(evt.Info.Sender.String()),
		PushName:  evt.Info.PushName,
		Content:   parseContent(evt.Message),
		FromMe:    evt.Info.IsFromMe,
		Timestamp: evt.Info.Timestamp.Unix(),
	}
}

// ParseHistoryMessage normalizes one message of a history sync
// conversation. It returns nil for entries without content.
func ParseHistoryMessage(chatJID string, wm *waWeb.WebMessageInfo) *ParsedMessage {
	if wm == nil || wm.GetMessage() == nil {
		return nil
	}
	key := wm.GetKey()
	chat := NormalizeJID(chatJID)
	sender := key.GetParticipant()
	if sender == "" {
		sender = wm.GetParticipant()
	}
	if sender == "" && !key.GetFromMe() {
		sender = chat
	}
	return &ParsedMessage{
		ChatJID:   chat,
		IsGroup:   strings.HasSuffix(chat, "@"+types.GroupServer),
		MsgID:     key.GetID(),
		SenderJID: NormalizeJID(sender),
		PushName:  wm.GetPushName(),
		Content:   parseContent(wm.GetMessage()),
		FromMe:    key.GetFromMe(),
		Timestamp: int64(wm.GetMessageTimestamp()),
	}
}

// NormalizeJID strips the device part of a JID string.
func NormalizeJID(raw string) string {
	if raw == "" {
		return ""
	}
	jid, err := types.ParseJID(raw)
	if err != nil {
		return raw
	}
	return jid.ToNonAD().String()
}

func parseContent(msg *waE2E.Message) td.Content {
	if msg == nil {
		return td.Content{Kind: td.ContentUnknown}
	}
	if text := extractTextBody(msg); text != "" {
		if emoji, ok := singleEmoji(text); ok {
			return td.Content{Kind: td.ContentAnimatedEmoji, Emoji: emoji}
		}
		return td.Content{Kind: td.ContentText, Text: text}
	}
	switch {
	case msg.GetImageMessage() != nil:
		return td.Content{Kind: td.ContentPhoto, Text: msg.GetImageMessage().GetCaption()}
	case msg.GetVideoMessage() != nil:
		v := msg.GetVideoMessage()
		if v.GetGifPlayback() {
			return td.Content{Kind: td.ContentAnimation, Text: v.GetCaption()}
		}
		return td.Content{Kind: td.ContentVideo, Text: v.GetCaption()}
	case msg.GetAudioMessage() != nil:
		return td.Content{Kind: td.ContentVoice}
	case msg.GetDocumentMessage() != nil:
		d := msg.GetDocumentMessage()
		return td.Content{Kind: td.ContentDocument, Text: d.GetCaption(), FileName: d.GetFileName()}
	case msg.GetStickerMessage() != nil:
		return td.Content{Kind: td.ContentSticker}
	default:
		return td.Content{Kind: td.ContentUnknown}
	}
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

// singleEmoji reports whether text is exactly one emoji, ignoring spaces.
func singleEmoji(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if strings.TrimSpace(gomoji.RemoveEmojis(text)) != "" {
		return "", false
	}
	found := gomoji.FindAll(text)
	if len(found) != 1 {
		return "", false
	}
	return text, true
}
