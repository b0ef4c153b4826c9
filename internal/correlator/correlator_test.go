package correlator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/td/tdtest"
	"go.uber.org/zap"
)

func TestDoRetryBound(t *testing.T) {
	tests := []struct {
		name         string
		reply        td.Response
		wantAttempts int
		wantErr      bool
	}{
		{"success first try", &td.User{ID: 1}, 1, false},
		{"transient error retried 3 times", &td.Error{Code: 500, Message: "internal"}, 4, true},
		{"flood wait retried", &td.Error{Code: 429, Message: "Too Many Requests"}, 4, true},
		{"permanent error not retried", &td.Error{Code: 404, Message: "Not Found"}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := tdtest.NewFake(func(td.Request) td.Response { return tt.reply })
			c := New(fake, zap.NewNop())

			_, err := c.Do(context.Background(), td.GetUser{UserID: 1})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Do() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := fake.Count("getUser"); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
			if tt.wantErr {
				var tdErr *td.Error
				if !errors.As(err, &tdErr) {
					t.Errorf("error %v is not a *td.Error", err)
				}
			}
		})
	}
}

func TestDoRecoversAfterTransientErrors(t *testing.T) {
	calls := 0
	fake := tdtest.NewFake(func(td.Request) td.Response {
		calls++
		if calls < 3 {
			return &td.Error{Code: 500, Message: "retry"}
		}
		return &td.Chat{ID: 42}
	})
	c := New(fake, zap.NewNop())

	chat, err := Call[*td.Chat](context.Background(), c, td.GetChat{ChatID: 42})
	if err != nil {
		t.Fatal(err)
	}
	if chat.ID != 42 {
		t.Errorf("chat id = %d, want 42", chat.ID)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestCallUnexpectedResponse(t *testing.T) {
	fake := tdtest.NewFake(func(td.Request) td.Response { return &td.Ok{} })
	c := New(fake, zap.NewNop())

	_, err := Call[*td.User](context.Background(), c, td.GetMe{})
	if !errors.Is(err, ErrUnexpectedResponse) {
		t.Errorf("err = %v, want ErrUnexpectedResponse", err)
	}
}

// silentClient never answers.
type silentClient struct{ tdtest.Fake }

func (s *silentClient) Send(td.Request, func(td.Response)) {}

func TestDoContextCancel(t *testing.T) {
	c := New(&silentClient{}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Do(ctx, td.GetMe{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestGoDeliversResult(t *testing.T) {
	fake := tdtest.NewFake(func(td.Request) td.Response { return &td.User{ID: 7} })
	c := New(fake, zap.NewNop())

	done := make(chan td.Response, 1)
	c.Go(context.Background(), td.GetMe{}, func(resp td.Response, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- resp
	})

	select {
	case resp := <-done:
		if u, ok := resp.(*td.User); !ok || u.ID != 7 {
			t.Errorf("resp = %#v, want user 7", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Go callback")
	}
}
