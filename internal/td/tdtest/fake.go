// Package tdtest provides an in-memory td.Client for tests.
package tdtest

import (
	"sync"

	"github.com/matheus3301/telesync/internal/td"
)

// Fake records every request and answers with Reply. A nil Reply answers
// every request with td.Ok.
type Fake struct {
	Reply func(req td.Request) td.Response

	mu       sync.Mutex
	requests []td.Request
	updates  chan td.Update
	closed   bool
}

// NewFake creates a fake with a buffered update channel.
func NewFake(reply func(td.Request) td.Response) *Fake {
	return &Fake{
		Reply:   reply,
		updates: make(chan td.Update, 256),
	}
}

// Send records req and invokes handler synchronously.
func (f *Fake) Send(req td.Request, handler func(td.Response)) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply := f.Reply
	f.mu.Unlock()

	var resp td.Response = &td.Ok{}
	if reply != nil {
		if r := reply(req); r != nil {
			resp = r
		}
	}
	if handler != nil {
		handler(resp)
	}
}

// Updates returns the update stream.
func (f *Fake) Updates() <-chan td.Update {
	return f.updates
}

// Push queues an update as if the backend emitted it.
func (f *Fake) Push(u td.Update) {
	f.updates <- u
}

// Close closes the update stream. Safe to call twice.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.updates)
	}
	return nil
}

// Requests returns a copy of all requests sent so far.
func (f *Fake) Requests() []td.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]td.Request(nil), f.requests...)
}

// Count returns how many requests of the given method were sent.
func (f *Fake) Count(method string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Type() == method {
			n++
		}
	}
	return n
}
