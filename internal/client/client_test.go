package client

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/api"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/engine"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/td/tdtest"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func serve(t *testing.T) (*Client, *tdtest.Fake, *bus.Bus) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("/tmp", "telesync-client-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })
	socketPath := filepath.Join(tmpDir, "d.sock")

	b := bus.New()
	fake := tdtest.NewFake(nil)
	e := engine.New(fake, nil, nil, nil, b, zap.NewNop())
	e.Start(context.Background())
	t.Cleanup(e.Stop)

	srv := grpc.NewServer()
	api.Register(srv, api.NewServer("test", e, nil, nil, b, zap.NewNop()))
	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := New(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, fake, b
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPushReachesBackend(t *testing.T) {
	c, fake, _ := serve(t)
	if err := c.Push(testCtx(t), `{"loc_key":"MESSAGE_TEXT"}`); err != nil {
		t.Fatalf("Push: %v", err)
	}
	for _, req := range fake.Requests() {
		if p, ok := req.(td.ProcessPushNotification); ok {
			if p.Payload != `{"loc_key":"MESSAGE_TEXT"}` {
				t.Errorf("payload = %q", p.Payload)
			}
			return
		}
	}
	t.Error("payload never reached the backend")
}

func TestListChats(t *testing.T) {
	c, fake, _ := serve(t)
	fake.Push(&td.UpdateNewChat{Chat: &td.Chat{ID: 3, Title: "Three", Positions: []td.ChatPosition{{Order: 1}}}})

	deadline := time.Now().Add(3 * time.Second)
	for {
		chats, err := c.ListChats(testCtx(t), "main", 0)
		if err != nil {
			t.Fatalf("ListChats: %v", err)
		}
		if len(chats) == 1 {
			if id, _ := api.ParseID(chats[0].Fields["id"]); id != 3 {
				t.Errorf("id = %d, want 3", id)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("chat never listed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCloseWithoutChat(t *testing.T) {
	c, _, _ := serve(t)
	if err := c.CloseChat(testCtx(t), ""); grpcstatus.Code(err) != codes.FailedPrecondition {
		t.Errorf("err = %v, want FailedPrecondition", err)
	}
}

func TestWatch(t *testing.T) {
	c, _, b := serve(t)
	stop := errors.New("stop")

	ctx := testCtx(t)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, []string{"outbox."}, func(evt *structpb.Struct) error {
			if evt.Fields["kind"].GetStringValue() != bus.KindOutboxFailed {
				return nil
			}
			return stop
		})
	}()

	for {
		b.Emit(bus.KindOutboxFailed, nil)
		select {
		case err := <-done:
			if !errors.Is(err, stop) {
				t.Fatalf("Watch = %v, want stop", err)
			}
			return
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			t.Fatal("no event delivered")
		}
	}
}

func TestUnreachableDaemon(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "missing.sock"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Status(ctx); err == nil {
		t.Error("expected error for missing daemon")
	}
}
