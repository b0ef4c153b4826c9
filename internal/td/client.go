package td

import "fmt"

// Response is a backend reply to a Request.
type Response interface {
	isResponse()
}

// Ok acknowledges a request with no payload.
type Ok struct{}

type Messages struct {
	TotalCount int32
	Messages   []*Message
}

type Chats struct {
	ChatIDs []int64
}

type Proxies struct {
	Proxies []Proxy
}

type PushReceiverID struct {
	ID int64
}

func (*Ok) isResponse()             {}
func (*Chat) isResponse()           {}
func (*Chats) isResponse()          {}
func (*User) isResponse()           {}
func (*Message) isResponse()        {}
func (*Messages) isResponse()       {}
func (*File) isResponse()           {}
func (*Proxy) isResponse()          {}
func (*Proxies) isResponse()        {}
func (*PushReceiverID) isResponse() {}
func (*Error) isResponse()          {}

// CodeNotFound marks errors that no retry can fix.
const CodeNotFound = 404

// Error is a backend-reported failure.
type Error struct {
	Code    int32
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Code, e.Message)
}

// IsPermanent reports whether the error belongs to the not-found class.
func (e *Error) IsPermanent() bool {
	return e.Code == CodeNotFound
}

// Client is an asynchronous request/callback channel to a backend.
//
// Send never blocks on the network. handler, when non-nil, is called exactly
// once with the response. Updates are delivered in arrival order on the
// channel returned by Updates, which is closed after Close.
type Client interface {
	Send(req Request, handler func(Response))
	Updates() <-chan Update
	Close() error
}
