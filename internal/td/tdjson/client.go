// Package tdjson talks to a TDLib JSON bridge over a websocket. Each frame
// carries one TDLib object; replies are matched to requests by "@extra".
package tdjson

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

const (
	readLimit    = 8 << 20
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

var errClosed = &td.Error{Code: 500, Message: "connection closed"}

// Client implements td.Client on top of a websocket connection.
type Client struct {
	conn   *websocket.Conn
	params td.SetTdlibParameters
	logger *zap.Logger

	send    chan []byte
	done    chan struct{}
	updates chan td.Update

	mu      sync.Mutex
	pending map[string]func(td.Response)
	closed  bool

	closeOnce sync.Once
}

var _ td.Client = (*Client)(nil)

// Dial connects to the bridge at url. params answers the bridge's
// request for TDLib parameters whenever it asks.
func Dial(ctx context.Context, url string, params td.SetTdlibParameters, logger *zap.Logger) (*Client, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		params:  params,
		logger:  logger,
		send:    make(chan []byte, 256),
		done:    make(chan struct{}),
		updates: make(chan td.Update, 256),
		pending: make(map[string]func(td.Response)),
	}
	go c.writePump()
	go c.readPump()

	logger.Info("connected to TDLib bridge", zap.String("url", url))
	return c, nil
}

// Send queues req. handler is called on the reader goroutine.
func (c *Client) Send(req td.Request, handler func(td.Response)) {
	if handler == nil {
		handler = func(td.Response) {}
	}
	extra := uuid.NewString()
	data, err := encodeRequest(req, extra)
	if err != nil {
		handler(&td.Error{Code: 400, Message: err.Error()})
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		handler(errClosed)
		return
	}
	c.pending[extra] = handler
	c.mu.Unlock()

	select {
	case c.send <- data:
	case <-c.done:
		if h := c.take(extra); h != nil {
			h(errClosed)
		}
	}
}

func (c *Client) Updates() <-chan td.Update {
	return c.updates
}

// Close drops the connection. Requests still in flight are answered with
// an error and the updates channel is closed once the reader exits.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

func (c *Client) take(extra string) func(td.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.pending[extra]
	delete(c.pending, extra)
	return h
}

// failPending answers every outstanding request and refuses new ones.
func (c *Client) failPending() {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]func(td.Response))
	c.mu.Unlock()

	for _, h := range pending {
		h(errClosed)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		c.failPending()
		close(c.updates)
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("bridge connection lost", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleFrame(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("failed to write to bridge", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) handleFrame(data []byte) {
	var head object
	if err := json.Unmarshal(data, &head); err != nil {
		c.logger.Warn("failed to parse bridge frame", zap.Error(err))
		return
	}

	if head.Extra != "" {
		h := c.take(head.Extra)
		if h == nil {
			c.logger.Debug("reply for unknown request", zap.String("type", head.Type))
			return
		}
		resp, err := decodeResponse(head.Type, data)
		if err != nil {
			resp = &td.Error{Code: 500, Message: fmt.Sprintf("decode %s: %v", head.Type, err)}
		}
		h(resp)
		return
	}

	upd, err := decodeUpdate(head.Type, data)
	if err != nil {
		c.logger.Warn("failed to decode update", zap.String("type", head.Type), zap.Error(err))
		upd = &td.UpdateUnknown{Type: head.Type}
	}
	if as, ok := upd.(*td.UpdateAuthorizationState); ok && as.State == td.AuthWaitParameters {
		c.Send(c.params, func(r td.Response) {
			if e, ok := r.(*td.Error); ok {
				c.logger.Error("bridge rejected parameters", zap.Error(e))
			}
		})
	}

	select {
	case c.updates <- upd:
	case <-c.done:
	}
}
