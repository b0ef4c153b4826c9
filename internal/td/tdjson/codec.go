package tdjson

import (
	"encoding/json"
	"fmt"

	"github.com/matheus3301/telesync/internal/td"
)

// object is the common head of every TDLib JSON value.
type object struct {
	Type  string `json:"@type"`
	Extra string `json:"@extra,omitempty"`
}

type formattedText struct {
	Text string `json:"text"`
}

func (t *formattedText) text() string {
	if t == nil {
		return ""
	}
	return t.Text
}

type wireFile struct {
	ID    int32 `json:"id"`
	Size  int64 `json:"size"`
	Local struct {
		Path                   string `json:"path"`
		IsDownloadingActive    bool   `json:"is_downloading_active"`
		IsDownloadingCompleted bool   `json:"is_downloading_completed"`
		DownloadedSize         int64  `json:"downloaded_size"`
	} `json:"local"`
	Remote struct {
		ID string `json:"id"`
	} `json:"remote"`
}

func (f *wireFile) file() *td.File {
	if f == nil {
		return nil
	}
	return &td.File{
		ID:   f.ID,
		Size: f.Size,
		Local: td.LocalFile{
			Path:                   f.Local.Path,
			IsDownloadingActive:    f.Local.IsDownloadingActive,
			IsDownloadingCompleted: f.Local.IsDownloadingCompleted,
			DownloadedSize:         f.Local.DownloadedSize,
		},
		RemoteID: f.Remote.ID,
	}
}

type wireContent struct {
	Type    string         `json:"@type"`
	Text    *formattedText `json:"text"`
	Caption *formattedText `json:"caption"`
	Emoji   string         `json:"emoji"`
	Photo   *struct {
		Sizes []struct {
			Photo wireFile `json:"photo"`
		} `json:"sizes"`
	} `json:"photo"`
	Video *struct {
		FileName string   `json:"file_name"`
		Video    wireFile `json:"video"`
	} `json:"video"`
	VoiceNote *struct {
		Voice wireFile `json:"voice"`
	} `json:"voice_note"`
	Document *struct {
		FileName string   `json:"file_name"`
		Document wireFile `json:"document"`
	} `json:"document"`
	Animation *struct {
		FileName  string   `json:"file_name"`
		Animation wireFile `json:"animation"`
	} `json:"animation"`
	Sticker *struct {
		Emoji   string   `json:"emoji"`
		Sticker wireFile `json:"sticker"`
	} `json:"sticker"`
}

func (c *wireContent) content() td.Content {
	out := td.Content{Kind: td.ContentUnknown, Text: c.Caption.text()}
	switch c.Type {
	case "messageText":
		out.Kind = td.ContentText
		out.Text = c.Text.text()
	case "messagePhoto":
		out.Kind = td.ContentPhoto
		if c.Photo != nil && len(c.Photo.Sizes) > 0 {
			out.File = c.Photo.Sizes[len(c.Photo.Sizes)-1].Photo.file()
		}
	case "messageVideo":
		out.Kind = td.ContentVideo
		if c.Video != nil {
			out.FileName = c.Video.FileName
			out.File = c.Video.Video.file()
		}
	case "messageVoiceNote":
		out.Kind = td.ContentVoice
		if c.VoiceNote != nil {
			out.File = c.VoiceNote.Voice.file()
		}
	case "messageDocument":
		out.Kind = td.ContentDocument
		if c.Document != nil {
			out.FileName = c.Document.FileName
			out.File = c.Document.Document.file()
		}
	case "messageAnimation":
		out.Kind = td.ContentAnimation
		if c.Animation != nil {
			out.FileName = c.Animation.FileName
			out.File = c.Animation.Animation.file()
		}
	case "messageSticker":
		out.Kind = td.ContentSticker
		if c.Sticker != nil {
			out.Emoji = c.Sticker.Emoji
			out.File = c.Sticker.Sticker.file()
		}
	case "messageAnimatedEmoji":
		out.Kind = td.ContentAnimatedEmoji
		out.Emoji = c.Emoji
	}
	return out
}

type wireMessage struct {
	ID       int64 `json:"id"`
	ChatID   int64 `json:"chat_id"`
	SenderID struct {
		Type   string `json:"@type"`
		UserID int64  `json:"user_id"`
		ChatID int64  `json:"chat_id"`
	} `json:"sender_id"`
	SendingState *object `json:"sending_state"`
	IsOutgoing   bool    `json:"is_outgoing"`
	Date         int64   `json:"date"`
	EditDate     int64   `json:"edit_date"`
	ReplyTo      *struct {
		MessageID int64 `json:"message_id"`
	} `json:"reply_to"`
	Content wireContent `json:"content"`
}

func (m *wireMessage) message() *td.Message {
	if m == nil {
		return nil
	}
	out := &td.Message{
		ID:         m.ID,
		ChatID:     m.ChatID,
		Date:       m.Date,
		EditDate:   m.EditDate,
		IsOutgoing: m.IsOutgoing,
		Content:    m.Content.content(),
	}
	if m.SenderID.Type == "messageSenderChat" {
		out.Sender.ChatID = m.SenderID.ChatID
	} else {
		out.Sender.UserID = m.SenderID.UserID
	}
	if m.ReplyTo != nil {
		out.ReplyToMessageID = m.ReplyTo.MessageID
	}
	if m.SendingState != nil {
		switch m.SendingState.Type {
		case "messageSendingStatePending":
			out.SendState = td.SendStatePending
		case "messageSendingStateFailed":
			out.SendState = td.SendStateFailed
		}
	}
	return out
}

type wireChatList struct {
	Type         string `json:"@type"`
	ChatFolderID int32  `json:"chat_folder_id,omitempty"`
}

func (l wireChatList) list() td.ChatList {
	switch l.Type {
	case "chatListArchive":
		return td.ChatList{Kind: td.ListArchive}
	case "chatListFolder":
		return td.ChatList{Kind: td.ListFolder, FolderID: l.ChatFolderID}
	default:
		return td.ChatList{Kind: td.ListMain}
	}
}

func encodeChatList(l td.ChatList) wireChatList {
	switch l.Kind {
	case td.ListArchive:
		return wireChatList{Type: "chatListArchive"}
	case td.ListFolder:
		return wireChatList{Type: "chatListFolder", ChatFolderID: l.FolderID}
	default:
		return wireChatList{Type: "chatListMain"}
	}
}

type wirePosition struct {
	List     wireChatList `json:"list"`
	Order    int64        `json:"order,string"`
	IsPinned bool         `json:"is_pinned"`
}

func positions(in []wirePosition) []td.ChatPosition {
	out := make([]td.ChatPosition, 0, len(in))
	for _, p := range in {
		out = append(out, td.ChatPosition{List: p.List.list(), Order: p.Order, IsPinned: p.IsPinned})
	}
	return out
}

type wireDraft struct {
	Date             int64 `json:"date"`
	InputMessageText struct {
		Text formattedText `json:"text"`
	} `json:"input_message_text"`
}

func (d *wireDraft) draft() *td.DraftMessage {
	if d == nil {
		return nil
	}
	return &td.DraftMessage{Date: d.Date, Text: d.InputMessageText.Text.Text}
}

type wireChatPhoto struct {
	Small wireFile `json:"small"`
}

func (p *wireChatPhoto) file() *td.File {
	if p == nil {
		return nil
	}
	return p.Small.file()
}

type wireChat struct {
	ID   int64 `json:"id"`
	Type struct {
		Type      string `json:"@type"`
		UserID    int64  `json:"user_id"`
		IsChannel bool   `json:"is_channel"`
	} `json:"type"`
	Title                   string         `json:"title"`
	Photo                   *wireChatPhoto `json:"photo"`
	Positions               []wirePosition `json:"positions"`
	UnreadCount             int32          `json:"unread_count"`
	LastReadInboxMessageID  int64          `json:"last_read_inbox_message_id"`
	LastReadOutboxMessageID int64          `json:"last_read_outbox_message_id"`
	LastMessage             *wireMessage   `json:"last_message"`
	NotificationSettings    struct {
		MuteFor int32 `json:"mute_for"`
	} `json:"notification_settings"`
	DraftMessage *wireDraft `json:"draft_message"`
}

func (c *wireChat) chat() *td.Chat {
	out := &td.Chat{
		ID:                      c.ID,
		Title:                   c.Title,
		Photo:                   c.Photo.file(),
		Positions:               positions(c.Positions),
		UnreadCount:             c.UnreadCount,
		LastReadInboxMessageID:  c.LastReadInboxMessageID,
		LastReadOutboxMessageID: c.LastReadOutboxMessageID,
		LastMessage:             c.LastMessage.message(),
		MuteFor:                 c.NotificationSettings.MuteFor,
		DraftMessage:            c.DraftMessage.draft(),
	}
	switch c.Type.Type {
	case "chatTypePrivate":
		out.Kind, out.UserID = td.ChatPrivate, c.Type.UserID
	case "chatTypeSecret":
		out.Kind, out.UserID = td.ChatSecret, c.Type.UserID
	case "chatTypeSupergroup":
		out.Kind = td.ChatGroup
		if c.Type.IsChannel {
			out.Kind = td.ChatChannel
		}
	default:
		out.Kind = td.ChatGroup
	}
	return out
}

type wireUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Usernames *struct {
		ActiveUsernames []string `json:"active_usernames"`
	} `json:"usernames"`
	Type object `json:"type"`
}

func (u *wireUser) user() *td.User {
	out := &td.User{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Kind: td.UserRegular}
	if u.Usernames != nil && len(u.Usernames.ActiveUsernames) > 0 {
		out.Username = u.Usernames.ActiveUsernames[0]
	}
	switch u.Type.Type {
	case "userTypeBot":
		out.Kind = td.UserBot
	case "userTypeDeleted":
		out.Kind = td.UserDeleted
	case "userTypeUnknown":
		out.Kind = td.UserUnknown
	}
	return out
}

type wireProxyType struct {
	Type     string `json:"@type"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Secret   string `json:"secret,omitempty"`
}

type wireProxy struct {
	ID        int32         `json:"id"`
	Server    string        `json:"server"`
	Port      int32         `json:"port"`
	IsEnabled bool          `json:"is_enabled"`
	Type      wireProxyType `json:"type"`
}

func (p *wireProxy) proxy() td.Proxy {
	out := td.Proxy{
		ID:        p.ID,
		Server:    p.Server,
		Port:      p.Port,
		IsEnabled: p.IsEnabled,
		Username:  p.Type.Username,
		Password:  p.Type.Password,
		Secret:    p.Type.Secret,
	}
	switch p.Type.Type {
	case "proxyTypeHttp":
		out.Kind = td.ProxyHTTP
	case "proxyTypeMtproto":
		out.Kind = td.ProxyMtproto
	default:
		out.Kind = td.ProxySocks5
	}
	return out
}

func encodeProxyType(p td.Proxy) wireProxyType {
	switch p.Kind {
	case td.ProxyHTTP:
		return wireProxyType{Type: "proxyTypeHttp", Username: p.Username, Password: p.Password}
	case td.ProxyMtproto:
		return wireProxyType{Type: "proxyTypeMtproto", Secret: p.Secret}
	default:
		return wireProxyType{Type: "proxyTypeSocks5", Username: p.Username, Password: p.Password}
	}
}

func inputText(text string) map[string]any {
	return map[string]any{
		"@type": "inputMessageText",
		"text":  map[string]any{"@type": "formattedText", "text": text},
	}
}

// encodeRequest renders req as a TDLib JSON object tagged with extra.
func encodeRequest(req td.Request, extra string) ([]byte, error) {
	m := map[string]any{"@type": req.Type(), "@extra": extra}
	switch r := req.(type) {
	case td.GetChat:
		m["chat_id"] = r.ChatID
	case td.GetChats:
		m["chat_list"] = encodeChatList(r.List)
		m["limit"] = r.Limit
	case td.GetUser:
		m["user_id"] = r.UserID
	case td.GetMessage:
		m["chat_id"], m["message_id"] = r.ChatID, r.MessageID
	case td.GetMessages:
		m["chat_id"], m["message_ids"] = r.ChatID, r.MessageIDs
	case td.GetChatHistory:
		m["chat_id"] = r.ChatID
		m["from_message_id"] = r.FromMessageID
		m["offset"] = r.Offset
		m["limit"] = r.Limit
		m["only_local"] = r.OnlyLocal
	case td.SendMessage:
		m["chat_id"] = r.ChatID
		if r.ReplyToMessageID != 0 {
			m["reply_to"] = map[string]any{"@type": "inputMessageReplyToMessage", "message_id": r.ReplyToMessageID}
		}
		m["input_message_content"] = inputText(r.Text)
	case td.EditMessageText:
		m["chat_id"], m["message_id"] = r.ChatID, r.MessageID
		m["input_message_content"] = inputText(r.Text)
	case td.DeleteMessages:
		m["chat_id"], m["message_ids"], m["revoke"] = r.ChatID, r.MessageIDs, r.Revoke
	case td.ViewMessages:
		m["chat_id"], m["message_ids"], m["force_read"] = r.ChatID, r.MessageIDs, r.ForceRead
	case td.SetChatDraftMessage:
		m["chat_id"] = r.ChatID
		if r.Text != "" {
			m["draft_message"] = map[string]any{"@type": "draftMessage", "input_message_text": inputText(r.Text)}
		}
	case td.JoinChat:
		m["chat_id"] = r.ChatID
	case td.SearchPublicChat:
		m["username"] = r.Username
	case td.SearchPublicChats:
		m["query"] = r.Query
	case td.AddProxy:
		m["server"], m["port"], m["enable"] = r.Proxy.Server, r.Proxy.Port, r.Enable
		m["type"] = encodeProxyType(r.Proxy)
	case td.RemoveProxy:
		m["proxy_id"] = r.ProxyID
	case td.EnableProxy:
		m["proxy_id"] = r.ProxyID
	case td.DownloadFile:
		m["file_id"], m["priority"], m["synchronous"] = r.FileID, r.Priority, r.Synchronous
	case td.CancelDownloadFile:
		m["file_id"], m["only_if_pending"] = r.FileID, r.OnlyIfPending
	case td.RegisterDevice:
		m["device_token"] = map[string]any{"@type": "deviceTokenFirebaseCloudMessaging", "token": r.Token}
		m["other_user_ids"] = []int64{}
	case td.GetPushReceiverID:
		m["payload"] = r.Payload
	case td.ProcessPushNotification:
		m["payload"] = r.Payload
	case td.OpenChat:
		m["chat_id"] = r.ChatID
	case td.CloseChat:
		m["chat_id"] = r.ChatID
	case td.SetTdlibParameters:
		m["use_test_dc"] = false
		m["database_directory"] = r.DatabaseDirectory
		m["files_directory"] = r.FilesDirectory
		m["database_encryption_key"] = r.DatabaseKey
		m["use_file_database"] = true
		m["use_chat_info_database"] = true
		m["use_message_database"] = true
		m["use_secret_chats"] = false
		m["api_id"] = r.APIID
		m["api_hash"] = r.APIHash
		m["system_language_code"] = r.SystemLanguageCode
		m["device_model"] = r.DeviceModel
		m["application_version"] = r.ApplicationVersion
	case td.GetMe, td.DisableProxy, td.GetProxies, td.LogOut, td.Close:
	default:
		return nil, fmt.Errorf("unknown request %T", req)
	}
	return json.Marshal(m)
}

// decodeResponse turns a reply object into a td.Response.
func decodeResponse(typ string, raw []byte) (td.Response, error) {
	switch typ {
	case "ok":
		return &td.Ok{}, nil
	case "error":
		var e struct {
			Code    int32  `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		return &td.Error{Code: e.Code, Message: e.Message}, nil
	case "chat":
		var c wireChat
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c.chat(), nil
	case "chats":
		var c struct {
			ChatIDs []int64 `json:"chat_ids"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return &td.Chats{ChatIDs: c.ChatIDs}, nil
	case "user":
		var u wireUser
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, err
		}
		return u.user(), nil
	case "message":
		var m wireMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m.message(), nil
	case "messages":
		var m struct {
			TotalCount int32          `json:"total_count"`
			Messages   []*wireMessage `json:"messages"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		out := &td.Messages{TotalCount: m.TotalCount}
		for _, wm := range m.Messages {
			// getMessages answers null for ids it cannot find.
			if wm != nil {
				out.Messages = append(out.Messages, wm.message())
			}
		}
		return out, nil
	case "file":
		var f wireFile
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return f.file(), nil
	case "proxy":
		var p wireProxy
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		proxy := p.proxy()
		return &proxy, nil
	case "proxies":
		var p struct {
			Proxies []wireProxy `json:"proxies"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		out := &td.Proxies{}
		for i := range p.Proxies {
			out.Proxies = append(out.Proxies, p.Proxies[i].proxy())
		}
		return out, nil
	case "pushReceiverId":
		var p struct {
			ID int64 `json:"id,string"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return &td.PushReceiverID{ID: p.ID}, nil
	default:
		return nil, fmt.Errorf("unexpected reply type %q", typ)
	}
}

var authStates = map[string]td.AuthorizationState{
	"authorizationStateWaitTdlibParameters":       td.AuthWaitParameters,
	"authorizationStateWaitPhoneNumber":           td.AuthWaitPhoneNumber,
	"authorizationStateWaitOtherDeviceConfirmation": td.AuthWaitOtherDeviceConfirmation,
	"authorizationStateWaitCode":                  td.AuthWaitCode,
	"authorizationStateWaitPassword":              td.AuthWaitPassword,
	"authorizationStateReady":                     td.AuthReady,
	"authorizationStateLoggingOut":                td.AuthLoggingOut,
	"authorizationStateClosing":                   td.AuthClosing,
	"authorizationStateClosed":                    td.AuthClosed,
}

var connectionStates = map[string]td.ConnectionState{
	"connectionStateWaitingForNetwork": td.ConnWaitingForNetwork,
	"connectionStateConnectingToProxy": td.ConnConnectingToProxy,
	"connectionStateConnecting":        td.ConnConnecting,
	"connectionStateUpdating":          td.ConnUpdating,
	"connectionStateReady":             td.ConnReady,
}

// decodeUpdate turns an update object into a td.Update. Types outside the
// closed set come back as td.UpdateUnknown.
func decodeUpdate(typ string, raw []byte) (td.Update, error) {
	switch typ {
	case "updateAuthorizationState":
		var u struct {
			State struct {
				Type string `json:"@type"`
				Link string `json:"link"`
			} `json:"authorization_state"`
		}
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, err
		}
		state, ok := authStates[u.State.Type]
		if !ok {
			return &td.UpdateUnknown{Type: typ + "/" + u.State.Type}, nil
		}
		return &td.UpdateAuthorizationState{State: state, Link: u.State.Link}, nil
	case "updateNewMessage":
		var u struct {
			Message wireMessage `json:"message"`
		}
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, err
		}
		return &td.UpdateNewMessage{Message: u.Message.message()}, nil
	case "updateMessageContent":
		var u struct {
			ChatID     int64       `json:"chat_id"`
			MessageID  int64       `json:"message_id"`
			NewContent wireContent `json:"new_content"`
		}
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, err
		}
		return &td.UpdateMessageContent{ChatID: u.ChatID, MessageID: u.MessageID, NewContent: u.NewContent.content()}, nil
	case "updateMessageEdited":
		var w struct {
			ChatID    int64 `json:"chat_id"`
			MessageID int64 `json:"message_id"`
			EditDate  int64 `json:"edit_date"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateMessageEdited{ChatID: w.ChatID, MessageID: w.MessageID, EditDate: w.EditDate}, nil
	case "updateDeleteMessages":
		var w struct {
			ChatID      int64   `json:"chat_id"`
			MessageIDs  []int64 `json:"message_ids"`
			IsPermanent bool    `json:"is_permanent"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateDeleteMessages{ChatID: w.ChatID, MessageIDs: w.MessageIDs, IsPermanent: w.IsPermanent}, nil
	case "updateMessageSendSucceeded":
		var w struct {
			Message      wireMessage `json:"message"`
			OldMessageID int64       `json:"old_message_id"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateMessageSendSucceeded{Message: w.Message.message(), OldMessageID: w.OldMessageID}, nil
	case "updateMessageSendFailed":
		var w struct {
			Message      wireMessage `json:"message"`
			OldMessageID int64       `json:"old_message_id"`
			Error        struct {
				Code    int32  `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateMessageSendFailed{
			Message:      w.Message.message(),
			OldMessageID: w.OldMessageID,
			Error:        td.Error{Code: w.Error.Code, Message: w.Error.Message},
		}, nil
	case "updateNewChat":
		var w struct {
			Chat wireChat `json:"chat"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateNewChat{Chat: w.Chat.chat()}, nil
	case "updateChatTitle":
		var w struct {
			ChatID int64  `json:"chat_id"`
			Title  string `json:"title"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateChatTitle{ChatID: w.ChatID, Title: w.Title}, nil
	case "updateChatPhoto":
		var w struct {
			ChatID int64          `json:"chat_id"`
			Photo  *wireChatPhoto `json:"photo"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateChatPhoto{ChatID: w.ChatID, Photo: w.Photo.file()}, nil
	case "updateChatPosition":
		var w struct {
			ChatID   int64        `json:"chat_id"`
			Position wirePosition `json:"position"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateChatPosition{ChatID: w.ChatID, Position: positions([]wirePosition{w.Position})[0]}, nil
	case "updateChatLastMessage":
		var w struct {
			ChatID      int64          `json:"chat_id"`
			LastMessage *wireMessage   `json:"last_message"`
			Positions   []wirePosition `json:"positions"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateChatLastMessage{ChatID: w.ChatID, LastMessage: w.LastMessage.message(), Positions: positions(w.Positions)}, nil
	case "updateChatReadInbox":
		var w struct {
			ChatID                 int64 `json:"chat_id"`
			LastReadInboxMessageID int64 `json:"last_read_inbox_message_id"`
			UnreadCount            int32 `json:"unread_count"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateChatReadInbox{ChatID: w.ChatID, LastReadInboxMessageID: w.LastReadInboxMessageID, UnreadCount: w.UnreadCount}, nil
	case "updateChatReadOutbox":
		var w struct {
			ChatID                  int64 `json:"chat_id"`
			LastReadOutboxMessageID int64 `json:"last_read_outbox_message_id"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateChatReadOutbox{ChatID: w.ChatID, LastReadOutboxMessageID: w.LastReadOutboxMessageID}, nil
	case "updateChatNotificationSettings":
		var w struct {
			ChatID   int64 `json:"chat_id"`
			Settings struct {
				MuteFor int32 `json:"mute_for"`
			} `json:"notification_settings"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateChatNotificationSettings{ChatID: w.ChatID, MuteFor: w.Settings.MuteFor}, nil
	case "updateChatDraftMessage":
		var w struct {
			ChatID       int64          `json:"chat_id"`
			DraftMessage *wireDraft     `json:"draft_message"`
			Positions    []wirePosition `json:"positions"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateChatDraftMessage{ChatID: w.ChatID, DraftMessage: w.DraftMessage.draft(), Positions: positions(w.Positions)}, nil
	case "updateChatFolders":
		var w struct {
			Folders []struct {
				ID    int32  `json:"id"`
				Title string `json:"title"`
				Name  *struct {
					Text formattedText `json:"text"`
				} `json:"name"`
			} `json:"chat_folders"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		out := &td.UpdateChatFolders{}
		for _, f := range w.Folders {
			title := f.Title
			if f.Name != nil {
				title = f.Name.Text.Text
			}
			out.Folders = append(out.Folders, td.ChatFolder{ID: f.ID, Title: title})
		}
		return out, nil
	case "updateFile":
		var w struct {
			File wireFile `json:"file"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateFile{File: *w.File.file()}, nil
	case "updateUser":
		var w struct {
			User wireUser `json:"user"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &td.UpdateUser{User: w.User.user()}, nil
	case "updateConnectionState":
		var w struct {
			State object `json:"state"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		state, ok := connectionStates[w.State.Type]
		if !ok {
			return &td.UpdateUnknown{Type: typ + "/" + w.State.Type}, nil
		}
		return &td.UpdateConnectionState{State: state}, nil
	default:
		return &td.UpdateUnknown{Type: typ}, nil
	}
}
