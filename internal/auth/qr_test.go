package auth

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/status"
	"go.uber.org/zap"
)

func TestRender(t *testing.T) {
	out, err := Render("tg://login?token=abc")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 10 {
		t.Fatalf("only %d lines rendered", len(lines))
	}
	if !strings.ContainsRune(out, '█') {
		t.Error("no full blocks in rendering")
	}
	width := len([]rune(lines[0]))
	for i, l := range lines {
		if len([]rune(l)) != width {
			t.Fatalf("line %d has width %d, want %d", i, len([]rune(l)), width)
		}
	}
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qr.png")
	if err := WritePNG(path, "2@abc,def,ghi"); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != PNGSize || b.Dy() != PNGSize {
		t.Errorf("size = %v", b)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not met")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPresenterLifecycle(t *testing.T) {
	b := bus.New()
	path := filepath.Join(t.TempDir(), "login-qr.png")
	p := NewPresenter(b, path, zap.NewNop())
	p.Start(context.Background())
	defer p.Stop()

	exists := func() bool {
		_, err := os.Stat(path)
		return err == nil
	}

	b.Emit(bus.KindAuthLink, "tg://login?token=xyz")
	waitFor(t, exists)

	b.Emit(bus.KindStatusChanged, status.StatusChange{From: status.AuthRequired, To: status.Connecting})
	waitFor(t, func() bool { return !exists() })
}
