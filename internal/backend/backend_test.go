package backend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"gitlab.com/elixxir/ekv"
	"go.uber.org/zap"
)

type fakeAuth struct {
	mu      sync.Mutex
	state   td.AuthorizationState
	changed chan struct{}
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{changed: make(chan struct{})}
}

func (f *fakeAuth) Authorization() (td.AuthorizationState, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.changed
}

func (f *fakeAuth) set(s td.AuthorizationState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
	close(f.changed)
	f.changed = make(chan struct{})
}

func TestAwaitAuthorization(t *testing.T) {
	tests := []struct {
		name  string
		steps []td.AuthorizationState
		want  error
	}{
		{"ready", []td.AuthorizationState{td.AuthWaitParameters, td.AuthReady}, nil},
		{"login needed", []td.AuthorizationState{td.AuthWaitParameters, td.AuthWaitOtherDeviceConfirmation}, ErrAuthorizationRequired},
		{"phone needed", []td.AuthorizationState{td.AuthWaitPhoneNumber}, ErrAuthorizationRequired},
		{"closed", []td.AuthorizationState{td.AuthClosing}, ErrClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeAuth()
			result := make(chan error, 1)
			go func() { result <- AwaitAuthorization(context.Background(), src) }()

			for _, s := range tt.steps {
				src.set(s)
			}
			select {
			case err := <-result:
				if !errors.Is(err, tt.want) {
					t.Errorf("AwaitAuthorization() = %v, want %v", err, tt.want)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("AwaitAuthorization did not return")
			}
		})
	}
}

func TestAwaitAuthorizationContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := AwaitAuthorization(ctx, newFakeAuth()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestParameters(t *testing.T) {
	t.Setenv(session.HomeEnv, t.TempDir())
	creds := store.NewCredentials(ekv.MakeMemstore())
	cfg := config.Default().Backend
	cfg.APIID = 42
	cfg.APIHash = "abc"

	p, err := Parameters(cfg, Deps{Session: "main", Credentials: creds})
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	if p.APIID != 42 || p.APIHash != "abc" || p.DeviceModel != "Watch" || p.ApplicationVersion != Version {
		t.Errorf("params = %+v", p)
	}
	if p.DatabaseDirectory != session.DatabaseDir("main") || p.FilesDirectory != session.FilesDir("main") {
		t.Errorf("directories = %q, %q", p.DatabaseDirectory, p.FilesDirectory)
	}
	if len(p.DatabaseKey) != 32 {
		t.Errorf("key length = %d", len(p.DatabaseKey))
	}

	again, _ := Parameters(cfg, Deps{Session: "main", Credentials: creds})
	if string(again.DatabaseKey) != string(p.DatabaseKey) {
		t.Error("database key changed between sessions")
	}

	if _, err := Parameters(cfg, Deps{Session: "main"}); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestOpenRejectsUnknownKind(t *testing.T) {
	cfg := config.Backend{Kind: "carrier-pigeon"}
	if _, err := Open(context.Background(), cfg, Ephemeral, Deps{Logger: zap.NewNop()}); err == nil {
		t.Error("expected error for unknown backend kind")
	}
}

func TestOpenTDJSONUnreachable(t *testing.T) {
	cfg := config.Default().Backend
	cfg.URL = "ws://127.0.0.1:1/td"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Open(ctx, cfg, LongLived, Deps{
		Session:     "main",
		Credentials: store.NewCredentials(ekv.MakeMemstore()),
		Logger:      zap.NewNop(),
	})
	if err == nil {
		t.Error("expected dial error")
	}
}

func TestOpenCredentialsPassphraseOrder(t *testing.T) {
	t.Setenv(session.HomeEnv, t.TempDir())
	t.Setenv(PassphraseEnv, "from-env")
	if err := session.EnsureDir("main"); err != nil {
		t.Fatal(err)
	}

	cfg := config.Backend{Passphrase: "from-config"}
	creds, err := OpenCredentials("main", cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("OpenCredentials: %v", err)
	}
	if err := creds.SetAccount("42"); err != nil {
		t.Fatal(err)
	}

	reopened, err := store.OpenCredentials(session.CredentialsDir("main"), "from-env")
	if err != nil {
		t.Fatalf("environment passphrase was not used: %v", err)
	}
	if acct, ok, err := reopened.Account(); err != nil || !ok || acct != "42" {
		t.Errorf("Account() = %q, %v, %v", acct, ok, err)
	}
}
