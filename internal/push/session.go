package push

import (
	"context"
	"fmt"

	"github.com/matheus3301/telesync/internal/backend"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/client"
	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/engine"
	"github.com/matheus3301/telesync/internal/lock"
	"github.com/matheus3301/telesync/internal/notify"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/store"
	"go.uber.org/zap"
)

// DefaultOptions wires a Responder to the on-disk session name. Notifications
// from an ephemeral session go to notifier, or onto its private bus when
// notifier is nil.
func DefaultOptions(name string, cfg *config.Config, notifier notify.Notifier, logger *zap.Logger) Options {
	return Options{
		Linger: cfg.Push.Linger.Duration,
		Probe:  func() error { return lock.Probe(session.Dir(name)) },
		Dial: func(context.Context) (Forwarder, error) {
			return client.New(session.SocketPath(name))
		},
		Open: func(ctx context.Context) (*Session, error) {
			return openSession(ctx, name, cfg, notifier, logger)
		},
	}
}

func openSession(ctx context.Context, name string, cfg *config.Config, notifier notify.Notifier, logger *zap.Logger) (*Session, error) {
	if err := session.EnsureDir(name); err != nil {
		return nil, err
	}
	lk, err := lock.Acquire(session.Dir(name))
	if err != nil {
		return nil, err
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	closers = append(closers, func() {
		if err := lk.Release(); err != nil {
			logger.Warn("failed to release session lock", zap.Error(err))
		}
	})

	db, _, err := store.OpenMigrated(session.AppDBPath(name))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open store: %w", err)
	}
	closers = append(closers, func() { _ = db.Close() })

	creds, err := backend.OpenCredentials(name, cfg.Backend, logger)
	if err != nil {
		cleanup()
		return nil, err
	}

	b := bus.New()
	if notifier == nil {
		notifier = notify.NewBusNotifier(b)
	}
	gate, err := notify.NewGate(db, cfg.Notifications, notifier, logger)
	if err != nil {
		cleanup()
		return nil, err
	}

	tdc, err := backend.Open(ctx, cfg.Backend, backend.Ephemeral, backend.Deps{
		Session:     name,
		DB:          db,
		Credentials: creds,
		Logger:      logger,
	})
	if err != nil {
		cleanup()
		return nil, err
	}
	closers = append(closers, func() { _ = tdc.Close() })

	e := engine.New(tdc, db, gate, nil, b, logger.Named("push"))
	e.Start(context.WithoutCancel(ctx))
	closers = append(closers, e.Stop)

	logger.Info("ephemeral push session opened", zap.String("backend", cfg.Backend.Kind))
	return &Session{Engine: e, DB: db, Close: cleanup}, nil
}
