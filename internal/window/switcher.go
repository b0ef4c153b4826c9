package window

import "github.com/matheus3301/telesync/internal/td"

// Switcher keeps at most one active window and parks the others, untouched,
// in a side table keyed by chat id.
type Switcher struct {
	active    *Window
	suspended map[int64]*Window
	epoch     uint64
}

// NewSwitcher creates a switcher with no active chat.
func NewSwitcher() *Switcher {
	return &Switcher{suspended: make(map[int64]*Window)}
}

// Open activates chatID. The previously active window is suspended. A
// suspended window for chatID is restored as is; otherwise a new window is
// seeded with seed. restored reports which happened.
func (s *Switcher) Open(chatID int64, seed []td.Message) (w *Window, restored bool) {
	if s.active != nil {
		if s.active.chatID == chatID {
			return s.active, true
		}
		s.suspended[s.active.chatID] = s.active
	}
	s.epoch++

	if w, ok := s.suspended[chatID]; ok {
		delete(s.suspended, chatID)
		s.active = w
		return w, true
	}
	w = New(chatID)
	w.AppendPage(seed)
	s.active = w
	return w, false
}

// Close deactivates the active chat and drops its window. It returns the
// closed chat id, or false when nothing was active.
func (s *Switcher) Close() (int64, bool) {
	if s.active == nil {
		return 0, false
	}
	id := s.active.chatID
	delete(s.suspended, id)
	s.active = nil
	s.epoch++
	return id, true
}

// Active returns the active window, or nil.
func (s *Switcher) Active() *Window {
	return s.active
}

// ActiveID returns the active chat id, or 0.
func (s *Switcher) ActiveID() int64 {
	if s.active == nil {
		return 0
	}
	return s.active.chatID
}

// Epoch changes every time the active chat changes. Work started under one
// epoch must be discarded if the epoch has moved on.
func (s *Switcher) Epoch() uint64 {
	return s.epoch
}

// Current reports whether chatID is still active under epoch.
func (s *Switcher) Current(chatID int64, epoch uint64) bool {
	return s.epoch == epoch && s.ActiveID() == chatID
}

// Lookup returns the active or suspended window for chatID.
func (s *Switcher) Lookup(chatID int64) *Window {
	if s.active != nil && s.active.chatID == chatID {
		return s.active
	}
	return s.suspended[chatID]
}

// Suspended reports whether chatID has a parked window.
func (s *Switcher) Suspended(chatID int64) bool {
	_, ok := s.suspended[chatID]
	return ok
}

// Forget drops any window for chatID, deactivating it if active.
func (s *Switcher) Forget(chatID int64) {
	delete(s.suspended, chatID)
	if s.active != nil && s.active.chatID == chatID {
		s.active = nil
		s.epoch++
	}
}

// Reset drops every window.
func (s *Switcher) Reset() {
	s.active = nil
	s.suspended = make(map[int64]*Window)
	s.epoch++
}
