package daemon

import (
	"context"

	"github.com/matheus3301/telesync/internal/api"
	"github.com/matheus3301/telesync/internal/auth"
	"github.com/matheus3301/telesync/internal/backend"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/engine"
	"github.com/matheus3301/telesync/internal/lock"
	"github.com/matheus3301/telesync/internal/logging"
	"github.com/matheus3301/telesync/internal/notify"
	"github.com/matheus3301/telesync/internal/outbox"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // nil = load from the config file
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideCredentials,
			provideBackend,
			provideGate,
			provideSender,
			provideEngine,
			providePresenter,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so nothing touches the session files
// before it is held.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, result, err := store.OpenMigrated(dbPath)
	if err != nil {
		return nil, err
	}
	if result.Changed() {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("to", result.To))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.To))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCredentials(p Params, _ *lock.Lock, cfg *config.Config, logger *zap.Logger) (*store.Credentials, error) {
	return backend.OpenCredentials(p.SessionName, cfg.Backend, logger)
}

func provideBackend(p Params, cfg *config.Config, db *store.DB, creds *store.Credentials, logger *zap.Logger) (td.Client, error) {
	return backend.Open(context.Background(), cfg.Backend, backend.LongLived, backend.Deps{
		Session:     p.SessionName,
		DB:          db,
		Credentials: creds,
		Logger:      logger,
	})
}

func provideGate(db *store.DB, cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*notify.Gate, error) {
	return notify.NewGate(db, cfg.Notifications, notify.NewBusNotifier(b), logger)
}

func provideSender(db *store.DB, client td.Client, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, client, b, cfg.Outbox.RatePerSecond, logger)
}

func provideEngine(client td.Client, db *store.DB, gate *notify.Gate, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger) *engine.Engine {
	return engine.New(client, db, gate, sender, b, logger)
}

func providePresenter(p Params, b *bus.Bus, logger *zap.Logger) *auth.Presenter {
	return auth.NewPresenter(b, session.QRPath(p.SessionName), logger)
}

func provideService(p Params, e *engine.Engine, gate *notify.Gate, creds *store.Credentials, b *bus.Bus, logger *zap.Logger) *api.Server {
	return api.NewServer(p.SessionName, e, gate, creds, b, logger)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Server     *Server
	Lock       *lock.Lock
	DB         *store.DB
	Client     td.Client
	Engine     *engine.Engine
	Sender     *outbox.Sender
	Presenter  *auth.Presenter
	Creds      *store.Credentials
	Logger     *zap.Logger
}

func registerLifecycle(lp lifecycleParams) {
	logger := lp.Logger
	ctx, cancel := context.WithCancel(context.Background())

	lp.Lifecycle.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The presenter must be listening before the first auth link.
			lp.Presenter.Start(ctx)
			lp.Engine.Start(ctx)
			lp.Sender.Start(ctx)

			go func() {
				if err := lp.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			go recordAccount(ctx, lp.Engine, lp.Creds, logger)

			// A backend that closes its update stream ends the daemon.
			go func() {
				select {
				case <-lp.Engine.Done():
					logger.Warn("backend session ended, shutting down")
					_ = lp.Shutdowner.Shutdown()
				case <-ctx.Done():
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			lp.Server.Stop(stopCtx)
			lp.Sender.Stop()
			lp.Engine.Stop()
			if err := lp.Client.Close(); err != nil {
				logger.Warn("error closing backend", zap.Error(err))
			}
			lp.Presenter.Stop()
			if err := lp.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

// recordAccount stores the signed-in user id once authorization is ready.
func recordAccount(ctx context.Context, e *engine.Engine, creds *store.Credentials, logger *zap.Logger) {
	for {
		state, changed := e.Authorization()
		if state == td.AuthReady {
			break
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return
		}
	}

	me, err := e.GetMe(ctx)
	if err != nil {
		logger.Warn("failed to load own user", zap.Error(err))
		return
	}
	if err := creds.SetAccount(api.ID(me.ID)); err != nil {
		logger.Warn("failed to record account", zap.Error(err))
		return
	}
	logger.Info("account recorded", zap.Int64("user_id", me.ID))
}
