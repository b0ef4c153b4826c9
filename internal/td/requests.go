package td

// Request is an outbound call. Type returns the backend method name.
type Request interface {
	Type() string
}

type GetChat struct{ ChatID int64 }
type GetChats struct {
	List  ChatList
	Limit int32
}
type GetUser struct{ UserID int64 }
type GetMe struct{}
type GetMessage struct{ ChatID, MessageID int64 }
type GetMessages struct {
	ChatID     int64
	MessageIDs []int64
}

// GetChatHistory returns up to Limit messages older than FromMessageID,
// newest first. FromMessageID 0 starts at the newest message.
type GetChatHistory struct {
	ChatID        int64
	FromMessageID int64
	Offset        int32
	Limit         int32
	OnlyLocal     bool
}

type SendMessage struct {
	ChatID           int64
	ReplyToMessageID int64
	Text             string
}
type EditMessageText struct {
	ChatID    int64
	MessageID int64
	Text      string
}
type DeleteMessages struct {
	ChatID     int64
	MessageIDs []int64
	Revoke     bool
}

// ViewMessages marks messages as read.
type ViewMessages struct {
	ChatID     int64
	MessageIDs []int64
	ForceRead  bool
}
type SetChatDraftMessage struct {
	ChatID int64
	Text   string
}
type JoinChat struct{ ChatID int64 }
type SearchPublicChat struct{ Username string }
type SearchPublicChats struct{ Query string }

type AddProxy struct {
	Proxy  Proxy
	Enable bool
}
type RemoveProxy struct{ ProxyID int32 }
type EnableProxy struct{ ProxyID int32 }
type DisableProxy struct{}
type GetProxies struct{}

type DownloadFile struct {
	FileID      int32
	Priority    int32
	Synchronous bool
}
type CancelDownloadFile struct {
	FileID        int32
	OnlyIfPending bool
}

// RegisterDevice registers a push token; the reply is a PushReceiverID.
type RegisterDevice struct{ Token string }
type GetPushReceiverID struct{ Payload string }
type ProcessPushNotification struct{ Payload string }

// OpenChat and CloseChat tell the backend which chat has focus.
type OpenChat struct{ ChatID int64 }
type CloseChat struct{ ChatID int64 }

// SetTdlibParameters answers AuthWaitParameters.
type SetTdlibParameters struct {
	DatabaseDirectory  string
	FilesDirectory     string
	DatabaseKey        []byte
	APIID              int32
	APIHash            string
	SystemLanguageCode string
	DeviceModel        string
	ApplicationVersion string
}

type LogOut struct{}
type Close struct{}

func (GetChat) Type() string                 { return "getChat" }
func (GetChats) Type() string                { return "getChats" }
func (GetUser) Type() string                 { return "getUser" }
func (GetMe) Type() string                   { return "getMe" }
func (GetMessage) Type() string              { return "getMessage" }
func (GetMessages) Type() string             { return "getMessages" }
func (GetChatHistory) Type() string          { return "getChatHistory" }
func (SendMessage) Type() string             { return "sendMessage" }
func (EditMessageText) Type() string         { return "editMessageText" }
func (DeleteMessages) Type() string          { return "deleteMessages" }
func (ViewMessages) Type() string            { return "viewMessages" }
func (SetChatDraftMessage) Type() string     { return "setChatDraftMessage" }
func (JoinChat) Type() string                { return "joinChat" }
func (SearchPublicChat) Type() string        { return "searchPublicChat" }
func (SearchPublicChats) Type() string       { return "searchPublicChats" }
func (AddProxy) Type() string                { return "addProxy" }
func (RemoveProxy) Type() string             { return "removeProxy" }
func (EnableProxy) Type() string             { return "enableProxy" }
func (DisableProxy) Type() string            { return "disableProxy" }
func (GetProxies) Type() string              { return "getProxies" }
func (DownloadFile) Type() string            { return "downloadFile" }
func (CancelDownloadFile) Type() string      { return "cancelDownloadFile" }
func (RegisterDevice) Type() string          { return "registerDevice" }
func (GetPushReceiverID) Type() string       { return "getPushReceiverId" }
func (ProcessPushNotification) Type() string { return "processPushNotification" }
func (OpenChat) Type() string                { return "openChat" }
func (CloseChat) Type() string               { return "closeChat" }
func (SetTdlibParameters) Type() string      { return "setTdlibParameters" }
func (LogOut) Type() string                  { return "logOut" }
func (Close) Type() string                   { return "close" }
