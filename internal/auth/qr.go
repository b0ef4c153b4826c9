// Package auth shows "confirm on another device" login links as QR codes:
// a PNG in the session directory for the presentation layer and a
// half-block rendering in the log for a terminal.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/status"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// PNGSize is the edge length of the written image in pixels.
const PNGSize = 256

// Presenter renders every login link published on the bus.
type Presenter struct {
	bus    *bus.Bus
	path   string
	logger *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPresenter writes QR images to path.
func NewPresenter(b *bus.Bus, path string, logger *zap.Logger) *Presenter {
	return &Presenter{bus: b, path: path, logger: logger}
}

// Start subscribes to session events until ctx is done or Stop is called.
func (p *Presenter) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	events, unsub := p.bus.SubscribeMany(16, bus.KindAuthLink, bus.KindStatusChanged)

	go func() {
		defer close(p.done)
		defer unsub()
		for {
			select {
			case evt := <-events:
				p.handle(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the subscription and waits for it.
func (p *Presenter) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Presenter) handle(evt bus.Event) {
	switch evt.Kind {
	case bus.KindAuthLink:
		link, _ := evt.Payload.(string)
		if link == "" {
			return
		}
		if err := WritePNG(p.path, link); err != nil {
			p.logger.Error("failed to write login QR", zap.Error(err))
			return
		}
		p.logger.Info("login QR written, scan it to link this device", zap.String("path", p.path))
		if ascii, err := Render(link); err == nil {
			p.logger.Info("login QR\n" + ascii)
		}
	case bus.KindStatusChanged:
		change, ok := evt.Payload.(status.StatusChange)
		if !ok || change.From != status.AuthRequired || change.To == status.AuthRequired {
			return
		}
		if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("failed to remove login QR", zap.Error(err))
		}
	}
}

// WritePNG encodes content as a QR image at path.
func WritePNG(path, content string) error {
	if err := qrcode.WriteFile(content, qrcode.Medium, PNGSize, path); err != nil {
		return fmt.Errorf("encode QR: %w", err)
	}
	return nil
}

// Render draws content as a QR code with Unicode half blocks, two bitmap
// rows per line.
func Render(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("encode QR: %w", err)
	}

	bitmap := qr.Bitmap()
	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		sb.WriteString("  ")
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bot := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String(), nil
}
