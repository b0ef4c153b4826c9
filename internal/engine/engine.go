// Package engine owns the chat list, the message windows and the file
// tracker for one backend session. A single goroutine applies backend
// updates and posted jobs in order; everything else reads snapshots.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/chatlist"
	"github.com/matheus3301/telesync/internal/correlator"
	"github.com/matheus3301/telesync/internal/dispatch"
	"github.com/matheus3301/telesync/internal/notify"
	"github.com/matheus3301/telesync/internal/status"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/transfer"
	"github.com/matheus3301/telesync/internal/window"
	"go.uber.org/zap"
)

var (
	ErrNoActiveChat = errors.New("no active chat")
	ErrStopped      = errors.New("engine stopped")
	ErrNotFound     = errors.New("not found")
)

// Queue accepts outgoing text for delivery. The outbox sender satisfies it.
type Queue interface {
	Queue(chatID, replyTo int64, text string) (string, error)
}

// Engine is the single writer for one backend session.
type Engine struct {
	client  td.Client
	corr    *correlator.Correlator
	disp    *dispatch.Dispatcher
	chats   *chatlist.Cache
	windows *window.Switcher
	files   *transfer.Tracker
	status  *status.Machine
	db      *store.DB
	gate    *notify.Gate
	queue   Queue
	bus     *bus.Bus
	logger  *zap.Logger

	jobs   chan func()
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned.
	users map[int64]*td.User

	activeWindow atomic.Pointer[window.Snapshot]
	me           atomic.Pointer[td.User]
	connection   atomic.Value // td.ConnectionState

	authMu      sync.Mutex
	auth        td.AuthorizationState
	authChanged chan struct{}

	started    atomic.Bool
	deliveries sync.WaitGroup

	noticeMu   sync.Mutex
	notices    []notify.Candidate
	noticeBusy bool
}

// New creates an engine over client. gate and queue may be nil: without a
// gate nothing is notified and without a queue sends go straight to the
// backend.
func New(client td.Client, db *store.DB, gate *notify.Gate, queue Queue, b *bus.Bus, logger *zap.Logger) *Engine {
	e := &Engine{
		client:      client,
		corr:        correlator.New(client, logger),
		chats:       chatlist.New(b),
		windows:     window.NewSwitcher(),
		files:       transfer.NewTracker(client, logger),
		status:      status.NewMachine(b),
		db:          db,
		gate:        gate,
		queue:       queue,
		bus:         b,
		logger:      logger,
		jobs:        make(chan func()),
		done:        make(chan struct{}),
		users:       make(map[int64]*td.User),
		authChanged: make(chan struct{}),
	}
	e.disp = dispatch.New(e, logger)
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Start runs the update loop until ctx is done, Stop is called or the
// backend closes its update stream.
func (e *Engine) Start(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			e.cancel()
		case <-e.ctx.Done():
		}
	}()
	go e.loop()
}

// Stop ends the loop, fails pending downloads and waits for notifications
// already being delivered.
func (e *Engine) Stop() {
	e.cancel()
	if e.started.Load() {
		<-e.done
	}
	e.files.Close()
	e.deliveries.Wait()
}

// Done is closed once the loop has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) loop() {
	defer close(e.done)
	updates := e.client.Updates()
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				e.logger.Info("backend update stream closed")
				return
			}
			e.disp.Dispatch(u)
		case job := <-e.jobs:
			job()
		case <-e.ctx.Done():
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it.
func (e *Engine) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		fn()
	}
	select {
	case e.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
}

// Chats returns the current chat list snapshot.
func (e *Engine) Chats() *chatlist.Snapshot {
	return e.chats.Snapshot()
}

// Window returns a snapshot of the active window, or nil.
func (e *Engine) Window() *window.Snapshot {
	return e.activeWindow.Load()
}

// Status returns the session state.
func (e *Engine) Status() status.State {
	return e.status.Current()
}

// Connection returns the last reported connection state.
func (e *Engine) Connection() td.ConnectionState {
	s, _ := e.connection.Load().(td.ConnectionState)
	return s
}

// Authorization returns the current authorization state and a channel
// closed on the next change.
func (e *Engine) Authorization() (td.AuthorizationState, <-chan struct{}) {
	e.authMu.Lock()
	defer e.authMu.Unlock()
	return e.auth, e.authChanged
}

func (e *Engine) setAuthorization(s td.AuthorizationState) {
	e.authMu.Lock()
	defer e.authMu.Unlock()
	e.auth = s
	close(e.authChanged)
	e.authChanged = make(chan struct{})
}

// publishWindow refreshes the reader snapshot when w is the active window.
func (e *Engine) publishWindow(w *window.Window) {
	if w == nil || w != e.windows.Active() {
		return
	}
	snap := w.Snapshot()
	e.activeWindow.Store(snap)
	e.bus.Emit(bus.KindWindowUpdated, snap)
}

func (e *Engine) transition(to status.State) {
	if err := e.status.Transition(to); err != nil {
		e.logger.Debug("status transition rejected", zap.Error(err))
	}
}
