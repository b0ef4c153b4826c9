package wa

import (
	"context"
	"fmt"

	"github.com/matheus3301/telesync/internal/td"
	"go.mau.fi/whatsmeow"
	"go.uber.org/zap"
)

// Login connects the client. With stored credentials it reports
// AuthReady and connects. Otherwise, when interactive, each pairing code
// is reported as an AuthWaitOtherDeviceConfirmation link until the phone
// confirms; when not interactive the client stays unauthorized.
func (c *Client) Login(ctx context.Context, interactive bool) error {
	if err := c.restoreProxy(); err != nil {
		c.logger.Warn("failed to restore proxy", zap.Error(err))
	}

	if c.conn.IsLoggedIn() {
		c.post(func(closed bool) {
			if closed {
				return
			}
			c.setAuth(td.AuthReady, "")
			c.setConnection(td.ConnConnecting)
		})
		if err := c.conn.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		return nil
	}

	if !interactive {
		c.post(func(closed bool) {
			if !closed {
				c.setAuth(td.AuthWaitOtherDeviceConfirmation, "")
			}
		})
		return nil
	}

	qr, err := c.conn.QRChannel(ctx)
	if err != nil {
		return err
	}
	// Connect must be called after QRChannel.
	if err := c.conn.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	go c.pair(qr)
	return nil
}

func (c *Client) pair(qr <-chan whatsmeow.QRChannelItem) {
	for item := range qr {
		switch item.Event {
		case "code":
			code := item.Code
			c.post(func(closed bool) {
				if !closed {
					c.setAuth(td.AuthWaitOtherDeviceConfirmation, code)
				}
			})
		case "success":
			c.logger.Info("device paired")
			c.post(func(closed bool) {
				if !closed {
					c.setAuth(td.AuthReady, "")
				}
			})
			return
		case "timeout":
			c.logger.Warn("pairing timed out")
			c.post(func(closed bool) {
				if !closed {
					c.setAuth(td.AuthClosed, "")
				}
			})
			return
		default:
			if item.Error != nil {
				c.logger.Warn("pairing failed", zap.String("event", item.Event), zap.Error(item.Error))
				c.post(func(closed bool) {
					if !closed {
						c.setAuth(td.AuthClosed, "")
					}
				})
				return
			}
		}
	}
}
