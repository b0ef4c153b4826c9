package chatlist

import (
	"strings"
	"unicode/utf8"

	"github.com/matheus3301/telesync/internal/td"
)

// MaxPreviewRunes bounds the rendered last-message preview.
const MaxPreviewRunes = 64

// Preview renders a one-line summary of a message for the chat list.
func Preview(msg *td.Message) string {
	if msg == nil {
		return ""
	}
	return PreviewContent(msg.Content)
}

// PreviewContent renders a one-line summary of message content.
func PreviewContent(c td.Content) string {
	var s string
	switch c.Kind {
	case td.ContentText:
		s = c.Text
	case td.ContentPhoto:
		s = withCaption("[Photo]", c.Text)
	case td.ContentVideo:
		s = withCaption("[Video]", c.Text)
	case td.ContentVoice:
		s = withCaption("[Voice]", c.Text)
	case td.ContentAnimation:
		s = withCaption("[Animation]", c.Text)
	case td.ContentDocument:
		s = withCaption("[File] "+c.FileName, c.Text)
	case td.ContentSticker, td.ContentAnimatedEmoji:
		s = c.Emoji
	default:
		s = "[Unsupported message]"
	}
	return truncate(flatten(s), MaxPreviewRunes)
}

// DraftPreview renders a draft overlay preview.
func DraftPreview(text string) string {
	return truncate("[Draft] "+flatten(text), MaxPreviewRunes)
}

func withCaption(label, caption string) string {
	label = strings.TrimSpace(label)
	if caption == "" {
		return label
	}
	return label + " " + caption
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
