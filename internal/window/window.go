// Package window holds per-chat message buffers and the switcher that
// suspends and restores them as the active chat changes.
package window

import (
	"cmp"
	"slices"

	"github.com/matheus3301/telesync/internal/td"
)

// Window is the ordered message buffer of one chat, newest first, with an
// id-index rejecting duplicates. It is owned by a single goroutine.
type Window struct {
	chatID         int64
	messages       []td.Message
	index          map[int64]struct{}
	lastReadInbox  int64
	lastReadOutbox int64
}

// New creates an empty window for chatID.
func New(chatID int64) *Window {
	return &Window{
		chatID: chatID,
		index:  make(map[int64]struct{}),
	}
}

// newer orders messages by date then id, newest first.
func newer(a, b td.Message) int {
	if c := cmp.Compare(b.Date, a.Date); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

// ChatID returns the chat this window belongs to.
func (w *Window) ChatID() int64 { return w.chatID }

// Len returns the number of buffered messages.
func (w *Window) Len() int { return len(w.messages) }

// Contains reports whether id is buffered.
func (w *Window) Contains(id int64) bool {
	_, ok := w.index[id]
	return ok
}

// Oldest returns the id of the oldest buffered message, the pagination
// cursor. It is 0 for an empty window.
func (w *Window) Oldest() int64 {
	if len(w.messages) == 0 {
		return 0
	}
	return w.messages[len(w.messages)-1].ID
}

// Newest returns the newest buffered message.
func (w *Window) Newest() (td.Message, bool) {
	if len(w.messages) == 0 {
		return td.Message{}, false
	}
	return w.messages[0], true
}

// Get returns the message with the given id.
func (w *Window) Get(id int64) (td.Message, bool) {
	if i := w.find(id); i >= 0 {
		return w.messages[i], true
	}
	return td.Message{}, false
}

func (w *Window) find(id int64) int {
	if !w.Contains(id) {
		return -1
	}
	return slices.IndexFunc(w.messages, func(m td.Message) bool { return m.ID == id })
}

// Insert adds msg at its sorted position. Duplicates are ignored.
func (w *Window) Insert(msg td.Message) bool {
	if w.Contains(msg.ID) {
		return false
	}
	i, _ := slices.BinarySearchFunc(w.messages, msg, newer)
	w.messages = slices.Insert(w.messages, i, msg)
	w.index[msg.ID] = struct{}{}
	return true
}

// AppendPage merges a history page, skipping ids already present, and
// returns how many messages were added.
func (w *Window) AppendPage(page []td.Message) int {
	added := 0
	for _, m := range page {
		if w.Contains(m.ID) {
			continue
		}
		w.messages = append(w.messages, m)
		w.index[m.ID] = struct{}{}
		added++
	}
	if added > 0 {
		slices.SortStableFunc(w.messages, newer)
	}
	return added
}

// Replace overwrites the message with msg.ID if present.
func (w *Window) Replace(msg td.Message) bool {
	i := w.find(msg.ID)
	if i < 0 {
		return false
	}
	w.messages[i] = msg
	slices.SortStableFunc(w.messages, newer)
	return true
}

// SetEdited records an edit timestamp. Unknown ids are ignored.
func (w *Window) SetEdited(id, editDate int64) bool {
	i := w.find(id)
	if i < 0 {
		return false
	}
	w.messages[i].EditDate = editDate
	return true
}

// SetContent replaces the content of a message. Unknown ids are ignored.
func (w *Window) SetContent(id int64, content td.Content) bool {
	i := w.find(id)
	if i < 0 {
		return false
	}
	w.messages[i].Content = content
	return true
}

// Delete removes ids from the buffer and the index.
func (w *Window) Delete(ids []int64) int {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if w.Contains(id) {
			drop[id] = struct{}{}
			delete(w.index, id)
		}
	}
	if len(drop) == 0 {
		return 0
	}
	w.messages = slices.DeleteFunc(w.messages, func(m td.Message) bool {
		_, ok := drop[m.ID]
		return ok
	})
	return len(drop)
}

// ReplaceSent swaps the pending message oldID for the confirmed msg. When
// oldID is not buffered msg is inserted.
func (w *Window) ReplaceSent(oldID int64, msg td.Message) {
	w.Delete([]int64{oldID})
	if w.Contains(msg.ID) {
		w.Replace(msg)
		return
	}
	w.Insert(msg)
}

// LastRead returns the inbox and outbox read markers.
func (w *Window) LastRead() (inbox, outbox int64) {
	return w.lastReadInbox, w.lastReadOutbox
}

// SetLastReadInbox sets the newest message the user has read.
func (w *Window) SetLastReadInbox(id int64) { w.lastReadInbox = id }

// SetLastReadOutbox sets the newest outgoing message the peer has read.
func (w *Window) SetLastReadOutbox(id int64) { w.lastReadOutbox = id }

// Snapshot is an immutable copy of a window for readers.
type Snapshot struct {
	ChatID         int64
	Messages       []td.Message
	LastReadInbox  int64
	LastReadOutbox int64
}

// Snapshot copies the window state.
func (w *Window) Snapshot() *Snapshot {
	return &Snapshot{
		ChatID:         w.chatID,
		Messages:       slices.Clone(w.messages),
		LastReadInbox:  w.lastReadInbox,
		LastReadOutbox: w.lastReadOutbox,
	}
}
