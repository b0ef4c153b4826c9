// Package push answers push wake-ups. A payload goes to the live main
// session when there is one, in this process or in the daemon; otherwise a
// short-lived backend session is opened just for it.
package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/telesync/internal/backend"
	"github.com/matheus3301/telesync/internal/lock"
	"github.com/matheus3301/telesync/internal/store"
	"go.uber.org/zap"
)

// ErrForeignReceiver means the payload is addressed to another account.
var ErrForeignReceiver = errors.New("push payload is for another account")

// Live is a running session able to take a payload.
type Live interface {
	PushReceiverID(ctx context.Context, payload string) (int64, error)
	ProcessPush(ctx context.Context, payload string) error
}

// Engine is what an ephemeral session must offer.
type Engine interface {
	Live
	backend.AuthSource
}

// Forwarder hands a payload to the daemon.
type Forwarder interface {
	Push(ctx context.Context, payload string) error
	Close() error
}

// Session is an ephemeral backend session opened for one payload.
type Session struct {
	Engine Engine
	DB     *store.DB
	// Close stops the engine and releases everything the session holds.
	Close func()
}

// Options wires a Responder to its environment.
type Options struct {
	// Linger keeps an ephemeral session open after the payload is
	// processed so the updates it causes can arrive.
	Linger time.Duration
	// Probe reports a held session lock as lock.LockHeldError.
	Probe func() error
	Dial  func(ctx context.Context) (Forwarder, error)
	Open  func(ctx context.Context) (*Session, error)
}

// Responder serializes push handling for one account.
type Responder struct {
	opts   Options
	logger *zap.Logger

	mu   sync.Mutex
	live Live
}

func NewResponder(opts Options, logger *zap.Logger) *Responder {
	return &Responder{opts: opts, logger: logger}
}

// SetLive registers the in-process main session, or clears it with nil.
func (r *Responder) SetLive(l Live) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = l
}

// Handle processes one payload. Calls are serialized.
func (r *Responder) Handle(ctx context.Context, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live != nil {
		r.logger.Debug("push handled by the main session")
		return r.live.ProcessPush(ctx, payload)
	}

	if r.opts.Probe != nil {
		if err := r.opts.Probe(); lock.Held(err) {
			return r.forward(ctx, payload)
		} else if err != nil {
			return fmt.Errorf("probe session lock: %w", err)
		}
	}
	return r.ephemeral(ctx, payload)
}

func (r *Responder) forward(ctx context.Context, payload string) error {
	if r.opts.Dial == nil {
		return fmt.Errorf("session is held by another process")
	}
	fwd, err := r.opts.Dial(ctx)
	if err != nil {
		return fmt.Errorf("reach daemon: %w", err)
	}
	defer fwd.Close()

	r.logger.Info("push forwarded to the daemon")
	return fwd.Push(ctx, payload)
}

func (r *Responder) ephemeral(ctx context.Context, payload string) error {
	sess, err := r.opts.Open(ctx)
	if err != nil {
		return fmt.Errorf("open push session: %w", err)
	}
	defer sess.Close()

	if err := backend.AwaitAuthorization(ctx, sess.Engine); err != nil {
		return err
	}

	receiver, err := sess.Engine.PushReceiverID(ctx, payload)
	if err != nil {
		return fmt.Errorf("resolve push receiver: %w", err)
	}
	if sess.DB != nil {
		s, ok, err := sess.DB.LoadSettings()
		if err != nil {
			return err
		}
		if ok && s.PushReceiverID != 0 && s.PushReceiverID != receiver {
			r.logger.Info("dropping push for another account",
				zap.Int64("receiver_id", receiver),
				zap.Int64("ours", s.PushReceiverID))
			return ErrForeignReceiver
		}
	}

	if err := sess.Engine.ProcessPush(ctx, payload); err != nil {
		return fmt.Errorf("process push: %w", err)
	}
	r.logger.Info("push processed in ephemeral session", zap.Duration("linger", r.opts.Linger))

	if r.opts.Linger > 0 {
		select {
		case <-time.After(r.opts.Linger):
		case <-ctx.Done():
		}
	}
	return nil
}
