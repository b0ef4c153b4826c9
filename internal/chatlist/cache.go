// Package chatlist keeps the ordered chat list as a sequence of immutable
// snapshots. One goroutine writes; any goroutine may read.
package chatlist

import (
	"cmp"
	"slices"
	"sync/atomic"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/td"
)

// Draft holds the preview, time and order a draft displaced.
type Draft struct {
	Text         string
	Date         int64
	SavedPreview string
	SavedTime    int64
	SavedOrder   int64
}

// Chat is the chat-list view of a conversation. Values are never mutated
// after they are published in a Snapshot.
type Chat struct {
	ID    int64
	Title string
	Kind  td.ChatKind
	// UserID is the peer of a private chat.
	UserID int64
	IsBot  bool
	Photo  *td.File

	// Order is the single sort key. List names the list that owns it.
	Order int64
	List  td.ChatListKind
	// MainPinned and ArchivePinned are nil when the chat has no position in
	// that list.
	MainPinned    *bool
	ArchivePinned *bool

	UnreadCount     int32
	LastReadInbox   int64
	LastMessageID   int64
	Preview         string
	LastMessageTime int64
	Draft           *Draft

	// Notify is false while the chat is muted.
	Notify bool
}

// IsGroup reports whether the chat has more than two members.
func (c Chat) IsGroup() bool { return c.Kind == td.ChatGroup }

// IsChannel reports whether the chat is a broadcast channel.
func (c Chat) IsChannel() bool { return c.Kind == td.ChatChannel }

// IsPrivate reports whether the chat is one-to-one.
func (c Chat) IsPrivate() bool { return c.Kind == td.ChatPrivate || c.Kind == td.ChatSecret }

// Pinned reports the pin flag for the list that owns the order.
func (c Chat) Pinned() bool {
	var p *bool
	if c.List == td.ListArchive {
		p = c.ArchivePinned
	} else {
		p = c.MainPinned
	}
	return p != nil && *p
}

func newChat(id int64) Chat {
	return Chat{ID: id, Notify: true}
}

// Snapshot is an immutable view of the list, most recently touched first.
type Snapshot struct {
	Chats   []Chat
	Folders []td.ChatFolder
	Version uint64
}

// Get returns the chat with the given id.
func (s *Snapshot) Get(id int64) (Chat, bool) {
	if i := s.index(id); i >= 0 {
		return s.Chats[i], true
	}
	return Chat{}, false
}

func (s *Snapshot) index(id int64) int {
	return slices.IndexFunc(s.Chats, func(c Chat) bool { return c.ID == id })
}

// Sorted returns the chats positioned in list, pinned first then by order
// descending. The receiver is not modified.
func (s *Snapshot) Sorted(list td.ChatListKind) []Chat {
	out := make([]Chat, 0, len(s.Chats))
	for _, c := range s.Chats {
		if c.Order != 0 && c.List == list {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b Chat) int {
		if a.Pinned() != b.Pinned() {
			if a.Pinned() {
				return -1
			}
			return 1
		}
		return cmp.Compare(b.Order, a.Order)
	})
	return out
}

// Cache holds the current Snapshot. Mutators must be called from a single
// goroutine; Snapshot is safe from any goroutine.
type Cache struct {
	current atomic.Pointer[Snapshot]
	bus     *bus.Bus
}

// New creates an empty cache. b may be nil.
func New(b *bus.Bus) *Cache {
	c := &Cache{bus: b}
	c.current.Store(&Snapshot{})
	return c
}

// Snapshot returns the latest published snapshot.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// update copies the list, applies fn to the chat (created with defaults when
// absent) and moves it to the front.
func (c *Cache) update(id int64, fn func(*Chat)) Chat {
	prev := c.current.Load()
	chat := newChat(id)
	rest := prev.Chats
	if i := prev.index(id); i >= 0 {
		chat = prev.Chats[i]
		rest = slices.Concat(prev.Chats[:i], prev.Chats[i+1:])
	}
	fn(&chat)

	chats := make([]Chat, 0, len(rest)+1)
	chats = append(chats, chat)
	chats = append(chats, rest...)
	c.publish(&Snapshot{Chats: chats, Folders: prev.Folders, Version: prev.Version + 1})
	return chat
}

func (c *Cache) publish(s *Snapshot) {
	c.current.Store(s)
	c.bus.Emit(bus.KindChatsUpdated, s)
}

// Upsert inserts chat or refreshes every field the backend reports for it.
func (c *Cache) Upsert(chat *td.Chat) Chat {
	return c.update(chat.ID, func(ch *Chat) {
		ch.Title = chat.Title
		ch.Kind = chat.Kind
		ch.UserID = chat.UserID
		ch.Photo = chat.Photo
		ch.UnreadCount = chat.UnreadCount
		ch.LastReadInbox = chat.LastReadInboxMessageID
		ch.Notify = chat.MuteFor == 0
		for _, p := range chat.Positions {
			applyPosition(ch, p)
		}
		if chat.LastMessage != nil {
			ch.LastMessageID = chat.LastMessage.ID
			ch.Preview = Preview(chat.LastMessage)
			ch.LastMessageTime = chat.LastMessage.Date
		}
		if chat.DraftMessage != nil {
			applyDraft(ch, chat.DraftMessage, nil)
		}
	})
}

// SetTitle replaces the chat title.
func (c *Cache) SetTitle(id int64, title string) {
	c.update(id, func(ch *Chat) { ch.Title = title })
}

// SetPhoto replaces the chat photo.
func (c *Cache) SetPhoto(id int64, photo *td.File) {
	c.update(id, func(ch *Chat) { ch.Photo = photo })
}

// SetUnread replaces the unread counter and inbox read marker.
func (c *Cache) SetUnread(id int64, lastReadInbox int64, unread int32) {
	c.update(id, func(ch *Chat) {
		ch.UnreadCount = unread
		ch.LastReadInbox = lastReadInbox
	})
}

// SetLastMessage replaces the preview, time, order and main pin flag. While
// a draft is shown, the preview and time go to the draft's saved fields
// instead; the order always moves.
func (c *Cache) SetLastMessage(id int64, msg *td.Message, positions []td.ChatPosition) {
	c.update(id, func(ch *Chat) {
		preview, date, msgID := "", int64(0), int64(0)
		if msg != nil {
			preview, date, msgID = Preview(msg), msg.Date, msg.ID
		}
		ch.LastMessageID = msgID
		main, hasMain := td.MainPosition(positions)
		if hasMain {
			applyPosition(ch, main)
		}
		if ch.Draft != nil {
			d := *ch.Draft
			d.SavedPreview = preview
			d.SavedTime = date
			if hasMain {
				d.SavedOrder = main.Order
			}
			ch.Draft = &d
			return
		}
		ch.Preview = preview
		ch.LastMessageTime = date
	})
}

// SetDraft shows a draft as the preview, or restores the displaced preview
// when draft is nil. Clearing a chat that has no draft overlay is a no-op.
func (c *Cache) SetDraft(id int64, draft *td.DraftMessage, positions []td.ChatPosition) {
	if draft == nil {
		if ch, ok := c.Snapshot().Get(id); !ok || ch.Draft == nil {
			return
		}
		c.update(id, func(ch *Chat) {
			d := ch.Draft
			ch.Preview = d.SavedPreview
			ch.LastMessageTime = d.SavedTime
			ch.Order = d.SavedOrder
			ch.Draft = nil
			if main, ok := td.MainPosition(positions); ok {
				applyPosition(ch, main)
			}
		})
		return
	}
	c.update(id, func(ch *Chat) { applyDraft(ch, draft, positions) })
}

func applyDraft(ch *Chat, draft *td.DraftMessage, positions []td.ChatPosition) {
	d := Draft{Text: draft.Text, Date: draft.Date}
	if ch.Draft != nil {
		d.SavedPreview = ch.Draft.SavedPreview
		d.SavedTime = ch.Draft.SavedTime
		d.SavedOrder = ch.Draft.SavedOrder
	} else {
		d.SavedPreview = ch.Preview
		d.SavedTime = ch.LastMessageTime
		d.SavedOrder = ch.Order
	}
	ch.Draft = &d
	ch.Preview = DraftPreview(draft.Text)
	ch.LastMessageTime = draft.Date
	if main, ok := td.MainPosition(positions); ok && main.Order != 0 {
		applyPosition(ch, main)
	} else if draft.Date != 0 {
		ch.Order = draft.Date
	}
}

// SetPosition updates the order and pin flag for the list the position
// refers to. Folder positions are ignored.
func (c *Cache) SetPosition(id int64, pos td.ChatPosition) {
	if pos.List.Kind == td.ListFolder {
		return
	}
	c.update(id, func(ch *Chat) { applyPosition(ch, pos) })
}

func applyPosition(ch *Chat, pos td.ChatPosition) {
	switch pos.List.Kind {
	case td.ListMain:
		ch.MainPinned = pinFlag(pos)
	case td.ListArchive:
		ch.ArchivePinned = pinFlag(pos)
	default:
		return
	}
	switch {
	case pos.Order != 0:
		ch.Order = pos.Order
		ch.List = pos.List.Kind
	case ch.List == pos.List.Kind:
		ch.Order = 0
	}
}

func pinFlag(pos td.ChatPosition) *bool {
	if pos.Order == 0 {
		return nil
	}
	pinned := pos.IsPinned
	return &pinned
}

// SetMute replaces the notification eligibility flag.
func (c *Cache) SetMute(id int64, muteFor int32) {
	c.update(id, func(ch *Chat) { ch.Notify = muteFor == 0 })
}

// SetUser refreshes the private chats whose peer is user. Chats that
// already show the user's name are left in place.
func (c *Cache) SetUser(user *td.User) {
	title, isBot := UserTitle(user), user.Kind == td.UserBot
	for _, ch := range c.Snapshot().Chats {
		if !ch.IsPrivate() || ch.UserID != user.ID {
			continue
		}
		if ch.Title == title && ch.IsBot == isBot {
			continue
		}
		c.update(ch.ID, func(ch *Chat) {
			ch.Title = title
			ch.IsBot = isBot
		})
	}
}

// UserTitle is the display name of a user.
func UserTitle(u *td.User) string {
	switch u.Kind {
	case td.UserDeleted:
		return "Deleted account"
	case td.UserUnknown:
		return "Unknown chat"
	}
	return flatten(u.FirstName + " " + u.LastName)
}

// SetFolders replaces the folder list without touching chats.
func (c *Cache) SetFolders(folders []td.ChatFolder) {
	prev := c.current.Load()
	next := &Snapshot{Chats: prev.Chats, Folders: slices.Clone(folders), Version: prev.Version + 1}
	c.current.Store(next)
	c.bus.Emit(bus.KindFoldersUpdated, next)
}

// Remove deletes a chat from the list.
func (c *Cache) Remove(id int64) {
	prev := c.current.Load()
	i := prev.index(id)
	if i < 0 {
		return
	}
	c.publish(&Snapshot{
		Chats:   slices.Concat(prev.Chats[:i], prev.Chats[i+1:]),
		Folders: prev.Folders,
		Version: prev.Version + 1,
	})
}

// Reset empties the list, as after logout.
func (c *Cache) Reset() {
	prev := c.current.Load()
	c.publish(&Snapshot{Version: prev.Version + 1})
}
