package td

// Update is a push event from the backend. The set of implementations is
// closed: only types in this package satisfy it.
type Update interface {
	isUpdate()
}

type UpdateAuthorizationState struct {
	State AuthorizationState
	// Link is set for AuthWaitOtherDeviceConfirmation.
	Link string
}

type UpdateNewMessage struct {
	Message *Message
}

type UpdateMessageContent struct {
	ChatID     int64
	MessageID  int64
	NewContent Content
}

type UpdateMessageEdited struct {
	ChatID    int64
	MessageID int64
	EditDate  int64
}

type UpdateDeleteMessages struct {
	ChatID      int64
	MessageIDs  []int64
	IsPermanent bool
}

// UpdateMessageSendSucceeded replaces a pending message (OldMessageID) with
// the server-confirmed one.
type UpdateMessageSendSucceeded struct {
	Message      *Message
	OldMessageID int64
}

type UpdateMessageSendFailed struct {
	Message      *Message
	OldMessageID int64
	Error        Error
}

type UpdateNewChat struct {
	Chat *Chat
}

type UpdateChatTitle struct {
	ChatID int64
	Title  string
}

type UpdateChatPhoto struct {
	ChatID int64
	Photo  *File
}

type UpdateChatPosition struct {
	ChatID   int64
	Position ChatPosition
}

type UpdateChatLastMessage struct {
	ChatID      int64
	LastMessage *Message
	Positions   []ChatPosition
}

type UpdateChatReadInbox struct {
	ChatID                 int64
	LastReadInboxMessageID int64
	UnreadCount            int32
}

type UpdateChatReadOutbox struct {
	ChatID                  int64
	LastReadOutboxMessageID int64
}

type UpdateChatNotificationSettings struct {
	ChatID  int64
	MuteFor int32
}

// UpdateChatDraftMessage carries a nil DraftMessage when the draft is cleared.
type UpdateChatDraftMessage struct {
	ChatID       int64
	DraftMessage *DraftMessage
	Positions    []ChatPosition
}

type UpdateChatFolders struct {
	Folders []ChatFolder
}

type UpdateFile struct {
	File File
}

type UpdateUser struct {
	User *User
}

type UpdateConnectionState struct {
	State ConnectionState
}

// UpdateUnknown wraps an update the transport could not classify.
type UpdateUnknown struct {
	Type string
}

func (*UpdateAuthorizationState) isUpdate()       {}
func (*UpdateNewMessage) isUpdate()               {}
func (*UpdateMessageContent) isUpdate()           {}
func (*UpdateMessageEdited) isUpdate()            {}
func (*UpdateDeleteMessages) isUpdate()           {}
func (*UpdateMessageSendSucceeded) isUpdate()     {}
func (*UpdateMessageSendFailed) isUpdate()        {}
func (*UpdateNewChat) isUpdate()                  {}
func (*UpdateChatTitle) isUpdate()                {}
func (*UpdateChatPhoto) isUpdate()                {}
func (*UpdateChatPosition) isUpdate()             {}
func (*UpdateChatLastMessage) isUpdate()          {}
func (*UpdateChatReadInbox) isUpdate()            {}
func (*UpdateChatReadOutbox) isUpdate()           {}
func (*UpdateChatNotificationSettings) isUpdate() {}
func (*UpdateChatDraftMessage) isUpdate()         {}
func (*UpdateChatFolders) isUpdate()              {}
func (*UpdateFile) isUpdate()                     {}
func (*UpdateUser) isUpdate()                     {}
func (*UpdateConnectionState) isUpdate()          {}
func (*UpdateUnknown) isUpdate()                  {}
