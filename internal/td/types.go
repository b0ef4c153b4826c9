// Package td defines the contract between the engine and a chat backend:
// typed requests, typed responses and a closed set of push updates.
package td

import "fmt"

// ChatListKind identifies which chat list a position refers to.
type ChatListKind int

const (
	ListMain ChatListKind = iota
	ListArchive
	ListFolder
)

func (k ChatListKind) String() string {
	switch k {
	case ListMain:
		return "main"
	case ListArchive:
		return "archive"
	case ListFolder:
		return "folder"
	default:
		return fmt.Sprintf("list(%d)", int(k))
	}
}

// ChatList names a list; FolderID is only meaningful for ListFolder.
type ChatList struct {
	Kind     ChatListKind
	FolderID int32
}

// ChatPosition is a chat's place in one list. Order 0 means the chat is not
// in that list.
type ChatPosition struct {
	List     ChatList
	Order    int64
	IsPinned bool
}

// ChatKind is the underlying conversation type.
type ChatKind string

const (
	ChatPrivate ChatKind = "private"
	ChatGroup   ChatKind = "group"
	ChatChannel ChatKind = "channel"
	ChatSecret  ChatKind = "secret"
)

// UserKind distinguishes regular accounts from bots and tombstones.
type UserKind string

const (
	UserRegular UserKind = "regular"
	UserBot     UserKind = "bot"
	UserDeleted UserKind = "deleted"
	UserUnknown UserKind = "unknown"
)

// ContentKind is the variant tag of a message's content.
type ContentKind string

const (
	ContentText          ContentKind = "text"
	ContentPhoto         ContentKind = "photo"
	ContentVideo         ContentKind = "video"
	ContentVoice         ContentKind = "voice"
	ContentDocument      ContentKind = "document"
	ContentAnimation     ContentKind = "animation"
	ContentSticker       ContentKind = "sticker"
	ContentAnimatedEmoji ContentKind = "animated_emoji"
	ContentUnknown       ContentKind = "unknown"
)

// Content is a message body. Text holds the text or the media caption.
type Content struct {
	Kind     ContentKind
	Text     string
	FileName string
	Emoji    string
	File     *File
}

// MessageSender is either a user or a chat posting as itself.
type MessageSender struct {
	UserID int64
	ChatID int64
}

// SendState tracks an outgoing message through the backend.
type SendState int

const (
	SendStateSent SendState = iota
	SendStatePending
	SendStateFailed
)

// Message is a single chat message. Dates are unix seconds.
type Message struct {
	ID               int64
	ChatID           int64
	Sender           MessageSender
	Date             int64
	EditDate         int64
	Content          Content
	ReplyToMessageID int64
	IsOutgoing       bool
	SendState        SendState
}

// DraftMessage is an unsent text kept by the backend for a chat.
type DraftMessage struct {
	Date int64
	Text string
}

// Chat is the backend's full view of a conversation.
type Chat struct {
	ID                      int64
	Kind                    ChatKind
	UserID                  int64
	Title                   string
	Photo                   *File
	Positions               []ChatPosition
	UnreadCount             int32
	LastReadInboxMessageID  int64
	LastReadOutboxMessageID int64
	LastMessage             *Message
	MuteFor                 int32
	DraftMessage            *DraftMessage
}

// User is an account known to the backend.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	Kind      UserKind
}

// LocalFile is the on-device state of a file.
type LocalFile struct {
	Path                   string
	IsDownloadingActive    bool
	IsDownloadingCompleted bool
	DownloadedSize         int64
}

// File is a remote file with its local download state.
type File struct {
	ID       int32
	Size     int64
	Local    LocalFile
	RemoteID string
}

// ChatFolder is a user-defined chat list.
type ChatFolder struct {
	ID    int32
	Title string
}

// ProxyKind is the proxy protocol.
type ProxyKind string

const (
	ProxySocks5  ProxyKind = "socks5"
	ProxyHTTP    ProxyKind = "http"
	ProxyMtproto ProxyKind = "mtproto"
)

// Proxy is a configured network proxy.
type Proxy struct {
	ID        int32
	Server    string
	Port      int32
	IsEnabled bool
	Kind      ProxyKind
	Username  string
	Password  string
	Secret    string
}

// AuthorizationState is the backend's login progress.
type AuthorizationState string

const (
	AuthWaitParameters              AuthorizationState = "wait_parameters"
	AuthWaitPhoneNumber             AuthorizationState = "wait_phone_number"
	AuthWaitOtherDeviceConfirmation AuthorizationState = "wait_other_device_confirmation"
	AuthWaitCode                    AuthorizationState = "wait_code"
	AuthWaitPassword                AuthorizationState = "wait_password"
	AuthReady                       AuthorizationState = "ready"
	AuthLoggingOut                  AuthorizationState = "logging_out"
	AuthClosing                     AuthorizationState = "closing"
	AuthClosed                      AuthorizationState = "closed"
)

// ConnectionState is the backend's network status.
type ConnectionState string

const (
	ConnWaitingForNetwork ConnectionState = "waiting_for_network"
	ConnConnectingToProxy ConnectionState = "connecting_to_proxy"
	ConnConnecting        ConnectionState = "connecting"
	ConnUpdating          ConnectionState = "updating"
	ConnReady             ConnectionState = "ready"
)

// MainPosition returns the main-list entry of positions, if any.
func MainPosition(positions []ChatPosition) (ChatPosition, bool) {
	for _, p := range positions {
		if p.List.Kind == ListMain {
			return p, true
		}
	}
	return ChatPosition{}, false
}
