// Package wa is a WhatsApp backend speaking the td.Client contract. Chats,
// users and messages are mirrored in the app store so the engine sees the
// same numeric ids and paging behaviour it gets from TDLib.
package wa

import (
	"context"
	"sync"

	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

var errClosed = &td.Error{Code: 500, Message: "client closed"}

// job runs on the client goroutine. closed is true when it is drained
// after Close instead of run.
type job func(closed bool)

// Client implements td.Client over a whatsmeow connection.
type Client struct {
	conn   Conn
	db     *store.DB
	mirror *Mirror
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queue  []job
	closed bool
	wake   chan struct{}
	done   chan struct{}

	updates chan td.Update

	// Owned by the client goroutine.
	auth td.AuthorizationState
	link string
}

var _ td.Client = (*Client)(nil)

// NewClient starts a client over conn, mirroring into db.
func NewClient(conn Conn, db *store.DB, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:    conn,
		db:      db,
		mirror:  NewMirror(db, logger),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		updates: make(chan td.Update, 256),
	}
	conn.AddEventHandler(c.onEvent)
	go c.run()
	return c
}

// Send queues req; handler runs on the client goroutine.
func (c *Client) Send(req td.Request, handler func(td.Response)) {
	ok := c.post(func(closed bool) {
		var resp td.Response = errClosed
		if !closed {
			resp = c.handle(req)
		}
		if handler != nil {
			handler(resp)
		}
	})
	if !ok && handler != nil {
		handler(errClosed)
	}
}

func (c *Client) Updates() <-chan td.Update {
	return c.updates
}

// Close disconnects and stops the client. Queued requests are answered
// with an error and the update channel is closed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	close(c.done)
	c.conn.Disconnect()
	return nil
}

func (c *Client) post(j job) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, j)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

func (c *Client) take() []job {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queue
	c.queue = nil
	return q
}

func (c *Client) run() {
	defer close(c.updates)
	for {
		select {
		case <-c.wake:
			for _, j := range c.take() {
				j(false)
			}
		case <-c.done:
			for _, j := range c.take() {
				j(true)
			}
			return
		}
	}
}

// emit publishes u. Must run on the client goroutine.
func (c *Client) emit(u td.Update) {
	select {
	case c.updates <- u:
	case <-c.done:
	}
}

// setAuth emits an authorization update when the state or link changes.
func (c *Client) setAuth(state td.AuthorizationState, link string) {
	if state == c.auth && link == c.link {
		return
	}
	c.auth, c.link = state, link
	c.emit(&td.UpdateAuthorizationState{State: state, Link: link})
}

func (c *Client) setConnection(state td.ConnectionState) {
	c.emit(&td.UpdateConnectionState{State: state})
}
