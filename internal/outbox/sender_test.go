package outbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/td/tdtest"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func pendingReply(req td.Request) td.Response {
	if r, ok := req.(td.SendMessage); ok {
		return &td.Message{ID: -1, ChatID: r.ChatID, IsOutgoing: true, SendState: td.SendStatePending}
	}
	return nil
}

func waitEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return bus.Event{}
}

func TestSenderProcessesPendingMessages(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	fake := tdtest.NewFake(pendingReply)
	logger, _ := zap.NewDevelopment()
	s := NewSender(db, fake, b, 100, logger)

	ch, unsub := b.Subscribe("outbox.", 10)
	defer unsub()

	id, err := s.Queue(42, 7, "hello")
	if err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop()

	evt := waitEvent(t, ch)
	if evt.Kind != bus.KindOutboxSent {
		t.Fatalf("event = %s, want %s", evt.Kind, bus.KindOutboxSent)
	}
	sent := evt.Payload.(Sent)
	if sent.ClientMsgID != id || sent.ChatID != 42 || sent.MessageID != -1 {
		t.Errorf("payload = %+v", sent)
	}

	reqs := fake.Requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	req := reqs[0].(td.SendMessage)
	if req.ChatID != 42 || req.ReplyToMessageID != 7 || req.Text != "hello" {
		t.Errorf("request = %+v", req)
	}

	entry, err := db.GetOutbox(id)
	if err != nil || entry == nil || entry.Status != "sent" {
		t.Errorf("entry = %+v, %v", entry, err)
	}
}

func TestSenderMarksFailed(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	fake := tdtest.NewFake(func(td.Request) td.Response {
		return &td.Error{Code: 400, Message: "CHAT_WRITE_FORBIDDEN"}
	})
	s := NewSender(db, fake, b, 100, zap.NewNop())

	ch, unsub := b.Subscribe("outbox.", 10)
	defer unsub()

	id, err := s.Queue(1, 0, "nope")
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop()

	evt := waitEvent(t, ch)
	if evt.Kind != bus.KindOutboxFailed {
		t.Fatalf("event = %s, want %s", evt.Kind, bus.KindOutboxFailed)
	}
	entry, _ := db.GetOutbox(id)
	if entry == nil || entry.Status != "failed" || entry.ErrorMessage == "" {
		t.Errorf("entry = %+v", entry)
	}
	// Fire-and-forget: a failed send is not retried.
	time.Sleep(600 * time.Millisecond)
	if n := fake.Count("sendMessage"); n != 1 {
		t.Errorf("sendMessage count = %d, want 1", n)
	}
}

func TestStartRequeuesInterruptedSends(t *testing.T) {
	db := testDB(t)
	if err := db.QueueOutbox("left-over", 3, 0, "again"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.MarkOutboxSending("left-over"); err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	ch, unsub := b.Subscribe("outbox.", 10)
	defer unsub()

	s := NewSender(db, tdtest.NewFake(pendingReply), b, 100, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop()

	evt := waitEvent(t, ch)
	if sent, ok := evt.Payload.(Sent); !ok || sent.ClientMsgID != "left-over" {
		t.Errorf("event = %+v", evt)
	}
}

func TestSendsKeepQueueOrder(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	fake := tdtest.NewFake(pendingReply)
	s := NewSender(db, fake, b, 1000, zap.NewNop())

	ch, unsub := b.Subscribe("outbox.", 10)
	defer unsub()

	for _, text := range []string{"one", "two", "three"} {
		if _, err := s.Queue(1, 0, text); err != nil {
			t.Fatal(err)
		}
	}
	s.Start(context.Background())
	defer s.Stop()
	for range 3 {
		waitEvent(t, ch)
	}

	var got []string
	for _, r := range fake.Requests() {
		got = append(got, r.(td.SendMessage).Text)
	}
	if len(got) != 3 || got[0] != "one" || got[1] != "two" || got[2] != "three" {
		t.Errorf("send order = %v", got)
	}
}
