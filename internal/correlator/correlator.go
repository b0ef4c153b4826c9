// Package correlator turns fire-and-forget backend calls into awaitable
// results with bounded retry.
package correlator

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

// MaxRetries is how many times a transiently failing request is re-sent.
const MaxRetries = 3

// ErrUnexpectedResponse is returned by Call when the reply has the wrong type.
var ErrUnexpectedResponse = errors.New("unexpected response type")

// Correlator sends requests through a td.Client and waits for replies.
type Correlator struct {
	client     td.Client
	maxRetries int
	logger     *zap.Logger
}

// New creates a correlator over client.
func New(client td.Client, logger *zap.Logger) *Correlator {
	return &Correlator{
		client:     client,
		maxRetries: MaxRetries,
		logger:     logger,
	}
}

// Do sends req and waits for a non-error reply. Backend errors are retried up
// to MaxRetries times unless permanent. The returned error is a *td.Error for
// backend failures or the context error.
func (c *Correlator) Do(ctx context.Context, req td.Request) (td.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.once(ctx, req)
		if err != nil {
			return nil, err
		}
		tdErr, ok := resp.(*td.Error)
		if !ok {
			return resp, nil
		}
		if tdErr.IsPermanent() || attempt >= c.maxRetries {
			return nil, tdErr
		}
		c.logger.Debug("retrying request",
			zap.String("method", req.Type()),
			zap.Int("attempt", attempt+1),
			zap.Int32("code", tdErr.Code),
			zap.String("message", tdErr.Message))
	}
}

func (c *Correlator) once(ctx context.Context, req td.Request) (td.Response, error) {
	ch := make(chan td.Response, 1)
	c.client.Send(req, func(resp td.Response) {
		ch <- resp
	})
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Go runs Do on its own goroutine and hands the outcome to done.
func (c *Correlator) Go(ctx context.Context, req td.Request, done func(td.Response, error)) {
	go func() {
		done(c.Do(ctx, req))
	}()
}

// Send is a fire-and-forget call. Failures are only logged.
func (c *Correlator) Send(req td.Request) {
	c.client.Send(req, func(resp td.Response) {
		if tdErr, ok := resp.(*td.Error); ok {
			c.logger.Warn("request failed",
				zap.String("method", req.Type()),
				zap.Int32("code", tdErr.Code),
				zap.String("message", tdErr.Message))
		}
	})
}

// Call is Do with the reply asserted to T.
func Call[T td.Response](ctx context.Context, c *Correlator, req td.Request) (T, error) {
	var zero T
	resp, err := c.Do(ctx, req)
	if err != nil {
		return zero, err
	}
	typed, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("%s: %w (%T)", req.Type(), ErrUnexpectedResponse, resp)
	}
	return typed, nil
}
