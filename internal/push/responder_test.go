package push

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/backend"
	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/lock"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

type fakeEngine struct {
	mu        sync.Mutex
	auth      td.AuthorizationState
	receiver  int64
	processed []string
}

func (f *fakeEngine) Authorization() (td.AuthorizationState, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth, make(chan struct{})
}

func (f *fakeEngine) PushReceiverID(context.Context, string) (int64, error) {
	return f.receiver, nil
}

func (f *fakeEngine) ProcessPush(_ context.Context, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, payload)
	return nil
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

type fakeForwarder struct {
	pushed []string
	closed bool
}

func (f *fakeForwarder) Push(_ context.Context, payload string) error {
	f.pushed = append(f.pushed, payload)
	return nil
}

func (f *fakeForwarder) Close() error {
	f.closed = true
	return nil
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, _, err := store.OpenMigrated(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ephemeralOpts opens eng as the ephemeral session and counts opens and
// closes.
func ephemeralOpts(eng *fakeEngine, db *store.DB, opened, closed *int) Options {
	return Options{
		Probe: func() error { return nil },
		Open: func(context.Context) (*Session, error) {
			*opened++
			return &Session{Engine: eng, DB: db, Close: func() { *closed++ }}, nil
		},
	}
}

func TestLiveSessionTakesPayload(t *testing.T) {
	opened := 0
	r := NewResponder(Options{
		Open: func(context.Context) (*Session, error) {
			opened++
			return nil, errors.New("should not open")
		},
	}, zap.NewNop())

	live := &fakeEngine{}
	r.SetLive(live)
	if err := r.Handle(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	if live.count() != 1 || opened != 0 {
		t.Errorf("live processed %d, opened %d", live.count(), opened)
	}

	r.SetLive(nil)
	if err := r.Handle(context.Background(), "p2"); err == nil {
		t.Error("expected open error once the live session is gone")
	}
}

func TestForwardWhenLockHeld(t *testing.T) {
	fwd := &fakeForwarder{}
	r := NewResponder(Options{
		Probe: func() error { return &lock.LockHeldError{PID: 42} },
		Dial:  func(context.Context) (Forwarder, error) { return fwd, nil },
		Open: func(context.Context) (*Session, error) {
			t.Fatal("ephemeral session opened while the lock is held")
			return nil, nil
		},
	}, zap.NewNop())

	if err := r.Handle(context.Background(), "p"); err != nil {
		t.Fatal(err)
	}
	if len(fwd.pushed) != 1 || fwd.pushed[0] != "p" || !fwd.closed {
		t.Errorf("forwarder = %+v", fwd)
	}
}

func TestEphemeralSession(t *testing.T) {
	db := testDB(t)
	eng := &fakeEngine{auth: td.AuthReady, receiver: 7}
	opened, closed := 0, 0
	r := NewResponder(ephemeralOpts(eng, db, &opened, &closed), zap.NewNop())

	if err := r.Handle(context.Background(), "p"); err != nil {
		t.Fatal(err)
	}
	if eng.count() != 1 || opened != 1 || closed != 1 {
		t.Errorf("processed %d, opened %d, closed %d", eng.count(), opened, closed)
	}
}

func TestForeignReceiverDropped(t *testing.T) {
	db := testDB(t)
	if _, err := db.UpdateSettings(func(s *store.Settings) { s.PushReceiverID = 7 }); err != nil {
		t.Fatal(err)
	}
	eng := &fakeEngine{auth: td.AuthReady, receiver: 8}
	opened, closed := 0, 0
	r := NewResponder(ephemeralOpts(eng, db, &opened, &closed), zap.NewNop())

	if err := r.Handle(context.Background(), "p"); !errors.Is(err, ErrForeignReceiver) {
		t.Errorf("err = %v, want ErrForeignReceiver", err)
	}
	if eng.count() != 0 || closed != 1 {
		t.Errorf("processed %d, closed %d", eng.count(), closed)
	}
}

func TestUnauthorizedSession(t *testing.T) {
	eng := &fakeEngine{auth: td.AuthWaitPhoneNumber}
	opened, closed := 0, 0
	r := NewResponder(ephemeralOpts(eng, nil, &opened, &closed), zap.NewNop())

	if err := r.Handle(context.Background(), "p"); !errors.Is(err, backend.ErrAuthorizationRequired) {
		t.Errorf("err = %v, want ErrAuthorizationRequired", err)
	}
	if closed != 1 {
		t.Error("session not closed")
	}
}

func TestLingerEndsWithContext(t *testing.T) {
	eng := &fakeEngine{auth: td.AuthReady}
	opened, closed := 0, 0
	opts := ephemeralOpts(eng, nil, &opened, &closed)
	opts.Linger = time.Hour
	r := NewResponder(opts, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := r.Handle(ctx, "p"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("linger ignored the context")
	}
	if eng.count() != 1 || closed != 1 {
		t.Errorf("processed %d, closed %d", eng.count(), closed)
	}
}

func TestDefaultOptionsForwardsToRunningDaemon(t *testing.T) {
	t.Setenv(session.HomeEnv, t.TempDir())
	if err := session.EnsureDir("main"); err != nil {
		t.Fatal(err)
	}
	lk, err := lock.Acquire(session.Dir("main"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	opts := DefaultOptions("main", config.Default(), nil, zap.NewNop())
	if opts.Linger != 10*time.Second {
		t.Errorf("linger = %v", opts.Linger)
	}
	if err := opts.Probe(); !lock.Held(err) {
		t.Errorf("probe = %v, want held", err)
	}
	if _, err := opts.Open(context.Background()); err == nil {
		t.Error("ephemeral session opened while the daemon holds the lock")
	}
}
