// Package client talks to a running daemon over its Unix socket.
package client

import (
	"context"
	"fmt"

	"github.com/matheus3301/telesync/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client wraps a gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket. The connection is lazy: an
// absent daemon surfaces on the first call.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call invokes a unary method with args and returns the raw reply.
func (c *Client) Call(ctx context.Context, method string, args map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context) (*structpb.Struct, error) {
	return c.Call(ctx, api.MethodStatus, nil)
}

// ListChats returns the chats of list ("main", "archive" or "folder"),
// limit zero meaning all of them.
func (c *Client) ListChats(ctx context.Context, list string, limit int) ([]*structpb.Struct, error) {
	out, err := c.Call(ctx, api.MethodListChats, map[string]any{"list": list, "limit": limit})
	if err != nil {
		return nil, err
	}
	return structs(out.GetFields()["chats"]), nil
}

func (c *Client) LoadArchive(ctx context.Context, limit int) (int, error) {
	out, err := c.Call(ctx, api.MethodLoadArchive, map[string]any{"limit": limit})
	if err != nil {
		return 0, err
	}
	return int(out.GetFields()["loaded"].GetNumberValue()), nil
}

// OpenChat makes chatID the daemon's active chat and returns its window.
func (c *Client) OpenChat(ctx context.Context, chatID int64) (*structpb.Struct, error) {
	return c.Call(ctx, api.MethodOpenChat, map[string]any{"chat_id": api.ID(chatID)})
}

func (c *Client) CloseChat(ctx context.Context, draft string) error {
	_, err := c.Call(ctx, api.MethodCloseChat, map[string]any{"draft": draft})
	return err
}

// History fetches older messages into the open chat and returns its window.
func (c *Client) History(ctx context.Context, chatID int64, limit int, all bool) (*structpb.Struct, error) {
	return c.Call(ctx, api.MethodHistory, map[string]any{
		"chat_id": api.ID(chatID),
		"limit":   limit,
		"all":     all,
	})
}

// Send queues text and returns the outbox id.
func (c *Client) Send(ctx context.Context, chatID, replyTo int64, text string) (string, error) {
	out, err := c.Call(ctx, api.MethodSend, map[string]any{
		"chat_id":  api.ID(chatID),
		"reply_to": api.ID(replyTo),
		"text":     text,
	})
	if err != nil {
		return "", err
	}
	return out.GetFields()["client_id"].GetStringValue(), nil
}

func (c *Client) MarkRead(ctx context.Context, chatID, messageID int64) error {
	_, err := c.Call(ctx, api.MethodMarkRead, map[string]any{
		"chat_id":    api.ID(chatID),
		"message_id": api.ID(messageID),
	})
	return err
}

func (c *Client) Action(ctx context.Context, chatID int64, action, text string) error {
	_, err := c.Call(ctx, api.MethodAction, map[string]any{
		"chat_id": api.ID(chatID),
		"action":  action,
		"text":    text,
	})
	return err
}

func (c *Client) Dismiss(ctx context.Context, chatID int64) error {
	_, err := c.Call(ctx, api.MethodDismiss, map[string]any{"chat_id": api.ID(chatID)})
	return err
}

// Push hands a push payload to the daemon's session.
func (c *Client) Push(ctx context.Context, payload string) error {
	_, err := c.Call(ctx, api.MethodPush, map[string]any{"payload": payload})
	return err
}

func (c *Client) SetForeground(ctx context.Context, foreground bool) error {
	_, err := c.Call(ctx, api.MethodSetForeground, map[string]any{"foreground": foreground})
	return err
}

func (c *Client) LogOut(ctx context.Context) error {
	_, err := c.Call(ctx, api.MethodLogOut, nil)
	return err
}

// Watch streams daemon events until ctx ends or the stream fails. Each
// event is passed to fn; a non-nil return from fn stops the watch.
func (c *Client) Watch(ctx context.Context, namespaces []string, fn func(*structpb.Struct) error) error {
	ns := make([]any, 0, len(namespaces))
	for _, n := range namespaces {
		ns = append(ns, n)
	}
	in, err := structpb.NewStruct(map[string]any{"namespaces": ns})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := c.conn.NewStream(ctx, &api.ServiceDesc.Streams[0], api.FullMethod(api.StreamWatchEvents))
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		evt := new(structpb.Struct)
		if err := stream.RecvMsg(evt); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}

func structs(v *structpb.Value) []*structpb.Struct {
	values := v.GetListValue().GetValues()
	out := make([]*structpb.Struct, 0, len(values))
	for _, item := range values {
		if s := item.GetStructValue(); s != nil {
			out = append(out, s)
		}
	}
	return out
}
