// Package backend opens a td.Client for a session, either against a TDLib
// JSON bridge or against WhatsApp, for a long-lived daemon or for a
// short push-handling session.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/td/tdjson"
	"github.com/matheus3301/telesync/internal/wa"
	"go.uber.org/zap"
)

// Version is reported to the backend as the application version.
const Version = "0.1.0"

var (
	ErrAuthorizationRequired = errors.New("authorization required")
	ErrClosed                = errors.New("backend session closed")
)

// Lifetime says how a session is used.
type Lifetime int

const (
	// LongLived sessions belong to the daemon and may run an interactive
	// login.
	LongLived Lifetime = iota
	// Ephemeral sessions exist for one push payload and never prompt.
	Ephemeral
)

func (l Lifetime) String() string {
	if l == Ephemeral {
		return "ephemeral"
	}
	return "long-lived"
}

// Deps are the session resources a backend needs.
type Deps struct {
	Session     string
	DB          *store.DB
	Credentials *store.Credentials
	Logger      *zap.Logger
}

// Open creates the backend client selected by cfg.Kind.
func Open(ctx context.Context, cfg config.Backend, lifetime Lifetime, deps Deps) (td.Client, error) {
	logger := deps.Logger.With(zap.String("backend", cfg.Kind), zap.Stringer("lifetime", lifetime))

	switch cfg.Kind {
	case config.BackendTDJSON:
		params, err := Parameters(cfg, deps)
		if err != nil {
			return nil, err
		}
		client, err := tdjson.Dial(ctx, cfg.URL, params, logger)
		if err != nil {
			return nil, fmt.Errorf("open tdjson backend: %w", err)
		}
		return client, nil

	case config.BackendWhatsApp:
		adapter, err := wa.NewAdapter(ctx, session.SessionDBPath(deps.Session), logger)
		if err != nil {
			return nil, fmt.Errorf("open whatsapp backend: %w", err)
		}
		client := wa.NewClient(adapter, deps.DB, logger)
		if err := client.Login(ctx, lifetime == LongLived); err != nil {
			client.Close()
			return nil, fmt.Errorf("whatsapp login: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// Parameters builds the TDLib parameters for a session. The database key
// comes from the encrypted credentials store.
func Parameters(cfg config.Backend, deps Deps) (td.SetTdlibParameters, error) {
	if deps.Credentials == nil {
		return td.SetTdlibParameters{}, fmt.Errorf("tdjson backend requires a credentials store")
	}
	key, err := deps.Credentials.DatabaseKey()
	if err != nil {
		return td.SetTdlibParameters{}, err
	}
	return td.SetTdlibParameters{
		DatabaseDirectory:  session.DatabaseDir(deps.Session),
		FilesDirectory:     session.FilesDir(deps.Session),
		DatabaseKey:        key,
		APIID:              cfg.APIID,
		APIHash:            cfg.APIHash,
		SystemLanguageCode: cfg.SystemLanguage,
		DeviceModel:        cfg.DeviceModel,
		ApplicationVersion: Version,
	}, nil
}

// AuthSource reports authorization progress. The engine satisfies it.
type AuthSource interface {
	Authorization() (td.AuthorizationState, <-chan struct{})
}

// AwaitAuthorization blocks until src is authorized. A session that asks
// for a login yields ErrAuthorizationRequired; one that closes yields
// ErrClosed.
func AwaitAuthorization(ctx context.Context, src AuthSource) error {
	for {
		state, changed := src.Authorization()
		switch state {
		case td.AuthReady:
			return nil
		case td.AuthWaitPhoneNumber, td.AuthWaitCode, td.AuthWaitPassword, td.AuthWaitOtherDeviceConfirmation:
			return ErrAuthorizationRequired
		case td.AuthLoggingOut, td.AuthClosing, td.AuthClosed:
			return ErrClosed
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PassphraseEnv overrides the configured credentials passphrase.
const PassphraseEnv = "TELESYNC_PASSPHRASE"

// OpenCredentials opens the session's encrypted credentials store. The
// passphrase is taken from $TELESYNC_PASSPHRASE, then from the config, and
// falls back to the session name.
func OpenCredentials(name string, cfg config.Backend, logger *zap.Logger) (*store.Credentials, error) {
	pass := os.Getenv(PassphraseEnv)
	if pass == "" {
		pass = cfg.Passphrase
	}
	if pass == "" {
		logger.Warn("no credentials passphrase configured, using the session name")
		pass = name
	}
	return store.OpenCredentials(session.CredentialsDir(name), pass)
}
