package wa

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// Conn is the subset of a WhatsApp connection the client drives.
type Conn interface {
	IsLoggedIn() bool
	OwnJID() string
	Connect() error
	Disconnect()
	Logout(ctx context.Context) error
	SendText(ctx context.Context, jid, text string) (string, error)
	QRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)
	SetProxyAddress(addr string) error
	AddEventHandler(handler func(evt any))
	ResolveLID(ctx context.Context, jid types.JID) types.JID
}

// Adapter wraps the whatsmeow client and its device store.
type Adapter struct {
	client *whatsmeow.Client
	logger *zap.Logger
}

var _ Conn = (*Adapter)(nil)

// NewAdapter opens the device store at dbPath and creates a client for its
// first device.
func NewAdapter(ctx context.Context, dbPath string, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("Telesync", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create device store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	return &Adapter{
		client: whatsmeow.NewClient(device, nil),
		logger: logger,
	}, nil
}

// IsLoggedIn reports whether the device store holds paired credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// OwnJID returns the paired account's JID without device suffix.
func (a *Adapter) OwnJID() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.ToNonAD().String()
}

func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout unlinks the device and removes its credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

func (a *Adapter) AddEventHandler(handler func(evt any)) {
	a.client.AddEventHandler(handler)
}

// SendText sends a text message to jid and returns the server message id.
func (a *Adapter) SendText(ctx context.Context, jid, text string) (string, error) {
	to, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// QRChannel returns the pairing channel. Must be called before Connect.
func (a *Adapter) QRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if a.IsLoggedIn() {
		return nil, fmt.Errorf("already logged in")
	}
	ch, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}

// SetProxyAddress routes the websocket through a socks5 or http proxy. An
// empty address removes the proxy. Takes effect on the next connect.
func (a *Adapter) SetProxyAddress(addr string) error {
	return a.client.SetProxyAddress(addr)
}

// ResolveLID maps a LID JID to its phone-number JID using the device store.
// Other JIDs, and LIDs without a mapping, are returned unchanged.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}
