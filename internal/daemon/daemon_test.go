package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/telesync/internal/client"
	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/lock"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// fakeBridge answers every TDLib request with ok, getMe with a user, and
// reports the session authorized as soon as a client connects.
func fakeBridge(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ready := map[string]any{
			"@type":               "updateAuthorizationState",
			"authorization_state": map[string]any{"@type": "authorizationStateReady"},
		}
		if err := conn.WriteJSON(ready); err != nil {
			return
		}
		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			reply := map[string]any{"@type": "ok"}
			switch req["@type"] {
			case "getMe", "getUser":
				reply = map[string]any{"@type": "user", "id": 42, "first_name": "Ada"}
			case "getChats":
				reply = map[string]any{"@type": "chats", "total_count": 0, "chat_ids": []int64{}}
			}
			reply["@extra"] = req["@extra"]
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/td"
}

func TestDaemonLifecycle(t *testing.T) {
	// Use a short path to avoid the Unix socket path length limit.
	tmpDir, err := os.MkdirTemp("/tmp", "telesync-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	t.Setenv(session.HomeEnv, tmpDir)

	sessionName := "test"
	socketPath := filepath.Join(tmpDir, "d.sock")

	cfg := config.Default()
	cfg.Backend.URL = fakeBridge(t)
	cfg.Backend.APIID = 1
	cfg.Backend.APIHash = "hash"
	cfg.Backend.Passphrase = "secret"

	app := fx.New(
		Module(Params{SessionName: sessionName, SocketPath: socketPath, Config: cfg}),
		fx.NopLogger,
	)
	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// A second daemon for the same session must be refused.
	if err := lock.Probe(session.Dir(sessionName)); !lock.Held(err) {
		t.Errorf("lock probe = %v, want held", err)
	}

	c, err := client.New(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		ctx, cancelCall := context.WithTimeout(context.Background(), time.Second)
		resp, err := c.Status(ctx)
		cancelCall()
		if err == nil && resp.Fields["authorization"].GetStringValue() == "ready" {
			if got := resp.Fields["session"].GetStringValue(); got != sessionName {
				t.Errorf("session = %q, want %q", got, sessionName)
			}
			if _, ok := resp.Fields["account"]; ok {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("daemon never became ready: %v, %v", resp, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket left behind: %v", err)
	}
	if err := lock.Probe(session.Dir(sessionName)); err != nil {
		t.Errorf("lock still held after stop: %v", err)
	}

	creds, err := store.OpenCredentials(session.CredentialsDir(sessionName), "secret")
	if err != nil {
		t.Fatal(err)
	}
	if acct, ok, err := creds.Account(); err != nil || !ok || acct != "42" {
		t.Errorf("Account() = %q, %v, %v", acct, ok, err)
	}
}

func TestSecondDaemonRefused(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "telesync-lock-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	t.Setenv(session.HomeEnv, tmpDir)

	if err := session.EnsureDir("held"); err != nil {
		t.Fatal(err)
	}
	lk, err := lock.Acquire(session.Dir("held"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	app := fx.New(
		Module(Params{SessionName: "held", SocketPath: filepath.Join(tmpDir, "d.sock"), Config: config.Default()}),
		fx.NopLogger,
	)
	if err := app.Err(); !lock.Held(err) {
		t.Errorf("app error = %v, want held lock", err)
	}
}

func TestServerRemovesStaleSocket(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "telesync-sock-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	socketPath := filepath.Join(tmpDir, "d.sock")
	if err := os.WriteFile(socketPath, []byte("stale"), 0600); err != nil {
		t.Fatal(err)
	}

	srv, err := NewServer(Params{SocketPath: socketPath}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSocket == 0 || info.Mode().Perm() != 0600 {
		t.Errorf("socket mode = %v", info.Mode())
	}
	srv.Stop(context.Background())
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket not removed on stop")
	}
}
