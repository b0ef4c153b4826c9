package window

import "github.com/matheus3301/telesync/internal/td"

// Backfill decides whether a history fetch keeps requesting older pages.
// The zero value fetches a single page.
type Backfill struct {
	// MaxPages bounds the number of pages; negative means until the backend
	// returns an empty page.
	MaxPages int
	// Until stops once a page reaches a message dated at or before this
	// unix time. Zero disables the check.
	Until int64
}

// UntilStart fetches pages until the history is exhausted.
var UntilStart = Backfill{MaxPages: -1}

// Continue reports whether another page should be requested after pages
// pages have been fetched, the last of which is page.
func (b Backfill) Continue(pages int, page []td.Message) bool {
	if len(page) == 0 {
		return false
	}
	if b.MaxPages >= 0 && pages >= max(b.MaxPages, 1) {
		return false
	}
	if b.Until != 0 {
		for _, m := range page {
			if m.Date <= b.Until {
				return false
			}
		}
	}
	return true
}
