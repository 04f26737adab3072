package yunhu

import (
	"encoding/json"
	"fmt"
)

// Header is the common header of every webhook delivery.
type Header struct {
	EventID   string `json:"eventId"`
	EventTime int64  `json:"eventTime"`
	EventType string `json:"eventType" validate:"required"`
}

// Sender is the author of an inbound message.
type Sender struct {
	SenderID        string `json:"senderId" validate:"required"`
	SenderType      string `json:"senderType" validate:"oneof=user"`
	SenderUserLevel string `json:"senderUserLevel" validate:"oneof=owner administrator member unknown"`
	SenderNickname  string `json:"senderNickname"`
}

// Chat identifies where a message was posted. For a group chat ChatID is the
// group ID; for a private chat ChatType is "bot" and ChatID is the bot ID.
type Chat struct {
	ChatID   string `json:"chatId" validate:"required"`
	ChatType string `json:"chatType" validate:"oneof=bot group"`
}

// EventMessage is the message body of a message event.
type EventMessage struct {
	MsgID       string      `json:"msgId" validate:"required"`
	ParentID    string      `json:"parentId,omitempty"`
	SendTime    int64       `json:"sendTime"`
	ChatID      string      `json:"chatId" validate:"required"`
	ChatType    string      `json:"chatType" validate:"oneof=group bot"`
	ContentType ContentType `json:"contentType"`
	Content     Content     `json:"content"`
	CommandID   *int64      `json:"commandId,omitempty"`
	CommandName string      `json:"commandName,omitempty"`
}

// UnmarshalJSON resolves the content union and back-fills ContentType from it.
func (m *EventMessage) UnmarshalJSON(data []byte) error {
	type alias EventMessage
	var raw struct {
		alias
		Content map[string]any `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	content, tag, err := ResolveContent(raw.Content, raw.ContentType)
	if err != nil {
		return err
	}
	*m = EventMessage(raw.alias)
	m.Content = content
	m.ContentType = tag
	return nil
}

// MessageEventDetail is the "event" object of a message event.
type MessageEventDetail struct {
	Sender  Sender       `json:"sender"`
	Chat    Chat         `json:"chat"`
	Message EventMessage `json:"message"`
}

// Reply is a parent message fetched through the message lookup API.
type Reply struct {
	MsgID          string      `json:"msgId" validate:"required"`
	ParentID       string      `json:"parentId"`
	SenderID       string      `json:"senderId" validate:"required"`
	SenderType     string      `json:"senderType"`
	SenderNickname string      `json:"senderNickname"`
	ContentType    ContentType `json:"contentType"`
	Content        Content     `json:"content"`
	CommandID      *int64      `json:"commandId,omitempty"`
	CommandName    string      `json:"commandName,omitempty"`
	SendTime       int64       `json:"sendTime"`
}

// UnmarshalJSON resolves the content union the same way EventMessage does.
func (r *Reply) UnmarshalJSON(data []byte) error {
	type alias Reply
	var raw struct {
		alias
		Content map[string]any `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	content, tag, err := ResolveContent(raw.Content, raw.ContentType)
	if err != nil {
		return err
	}
	*r = Reply(raw.alias)
	r.Content = content
	r.ContentType = tag
	return nil
}

// ParseReply decodes and validates a message returned by the lookup API.
func ParseReply(raw []byte) (*Reply, error) {
	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, &ParseError{Variant: "reply", Err: err}
	}
	if err := validate.Struct(reply); err != nil {
		return nil, &ParseError{Variant: "reply", Err: err}
	}
	return &reply, nil
}

// GroupNoticeDetail is the payload of group.join and group.leave.
type GroupNoticeDetail struct {
	Time      int64  `json:"time"`
	ChatID    string `json:"chatId" validate:"required"`
	ChatType  string `json:"chatType" validate:"oneof=group"`
	UserID    string `json:"userId" validate:"required"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
}

// BotNoticeDetail is the payload of bot.followed and bot.unfollowed. ChatID
// is the bot's own ID.
type BotNoticeDetail struct {
	Time      int64  `json:"time"`
	ChatID    string `json:"chatId" validate:"required"`
	ChatType  string `json:"chatType" validate:"oneof=bot"`
	UserID    string `json:"userId" validate:"required"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
}

// BotInfo is the bot profile returned by the bot-info endpoint.
type BotInfo struct {
	ID           int64  `json:"id"`
	BotID        string `json:"botId"`
	Nickname     string `json:"nickname"`
	NicknameID   int64  `json:"nicknameId"`
	AvatarID     int64  `json:"avatarId"`
	AvatarURL    string `json:"avatarUrl"`
	Introduction string `json:"introduction"`
	CreateBy     string `json:"createBy"`
	CreateTime   int64  `json:"createTime"`
	Headcount    int64  `json:"headcount"`
	Private      int    `json:"private"`
	URI          string `json:"uri"`
}

// MessageInfo identifies a message the bot has sent.
type MessageInfo struct {
	MsgID    string `json:"msgId"`
	RecvID   string `json:"recvId"`
	RecvType string `json:"recvType"`
}

// RecvType maps a chat type to the receiver type the send API expects.
// Private chats are addressed as "user".
func RecvType(chatType string) string {
	if chatType == "bot" {
		return "user"
	}
	return chatType
}

func validateDetail(name string, v any) error {
	if err := validate.Struct(v); err != nil {
		return &ParseError{Variant: name, Err: fmt.Errorf("validate: %w", err)}
	}
	return nil
}
