package yunhu

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a decoded webhook delivery.
type Event interface {
	EventHeader() Header
	// Type is the coarse category: "message", "notice" or "event".
	Type() string
	// Name is the most specific event name, e.g. "message.group".
	Name() string
}

// BaseEvent keeps the header and the undecoded payload. It is the fallback
// for event types no registered variant accepts.
type BaseEvent struct {
	Version string          `json:"version"`
	Header  Header          `json:"header"`
	Payload json.RawMessage `json:"event"`
}

func (e *BaseEvent) EventHeader() Header { return e.Header }
func (e *BaseEvent) Type() string        { return "event" }
func (e *BaseEvent) Name() string        { return e.Header.EventType }

// Time returns the event time from the header.
func (e *BaseEvent) Time() time.Time { return time.UnixMilli(e.Header.EventTime) }

// MessageKind distinguishes the message event variants.
type MessageKind int

const (
	// MessageNormal is a message whose chat type did not select a narrower variant.
	MessageNormal MessageKind = iota
	MessageGroup
	MessagePrivate
	MessageInstruction
)

func (k MessageKind) String() string {
	switch k {
	case MessageGroup:
		return "group"
	case MessagePrivate:
		return "private"
	case MessageInstruction:
		return "instruction"
	default:
		return "normal"
	}
}

// MessageEvent is an inbound chat message.
type MessageEvent struct {
	Version string             `json:"version"`
	Header  Header             `json:"header"`
	Detail  MessageEventDetail `json:"event"`
	Kind    MessageKind        `json:"-"`

	// ToMe is set by enrichment when the message addresses the bot.
	ToMe bool `json:"-"`
	// Reply is the parent message when it was sent by the bot.
	Reply *Reply `json:"-"`
	// Message is the composed message; enrichment edits it in place.
	Message Message `json:"-"`
	// OriginalMessage is the composed message before enrichment.
	OriginalMessage Message `json:"-"`
}

func (e *MessageEvent) EventHeader() Header { return e.Header }
func (e *MessageEvent) Type() string        { return "message" }
func (e *MessageEvent) Name() string        { return "message." + e.Detail.Message.ChatType }

// MessageID returns the platform message ID.
func (e *MessageEvent) MessageID() string { return e.Detail.Message.MsgID }

// UserID returns the sender ID.
func (e *MessageEvent) UserID() string { return e.Detail.Sender.SenderID }

// SessionID identifies the sender within the chat: chatType_chatId_userId.
func (e *MessageEvent) SessionID() string {
	return fmt.Sprintf("%s_%s_%s", e.Detail.Message.ChatType, e.Detail.Message.ChatID, e.UserID())
}

// PlainText returns the text of the composed message.
func (e *MessageEvent) PlainText() string { return e.Message.PlainText() }

// Description is a one-line summary used in logs.
func (e *MessageEvent) Description() string {
	return fmt.Sprintf("%s from %s@[%s:%s] %s",
		e.MessageID(), e.UserID(), e.Detail.Message.ChatType, e.Detail.Message.ChatID, e.Message.String())
}

// Time returns the event time from the header.
func (e *MessageEvent) Time() time.Time { return time.UnixMilli(e.Header.EventTime) }

// ReplyTarget returns where a reply to this event is delivered.
func (e *MessageEvent) ReplyTarget() (recvID, recvType string, err error) {
	msg := e.Detail.Message
	switch e.Kind {
	case MessageGroup:
		return msg.ChatID, "group", nil
	case MessagePrivate:
		return e.UserID(), "user", nil
	}
	switch msg.ChatType {
	case "bot":
		return e.UserID(), "user", nil
	case "group":
		return msg.ChatID, "group", nil
	}
	return "", "", ErrNoReplyTarget
}

// GroupNoticeEvent is a group.join or group.leave notice.
type GroupNoticeEvent struct {
	Version string            `json:"version"`
	Header  Header            `json:"header"`
	Detail  GroupNoticeDetail `json:"event"`
}

func (e *GroupNoticeEvent) EventHeader() Header { return e.Header }
func (e *GroupNoticeEvent) Type() string        { return "notice" }
func (e *GroupNoticeEvent) Name() string        { return e.Header.EventType }

// Joined reports whether the notice is a join rather than a leave.
func (e *GroupNoticeEvent) Joined() bool { return e.Header.EventType == "group.join" }

// BotNoticeEvent is a bot.followed or bot.unfollowed notice.
type BotNoticeEvent struct {
	Version string          `json:"version"`
	Header  Header          `json:"header"`
	Detail  BotNoticeDetail `json:"event"`
}

func (e *BotNoticeEvent) EventHeader() Header { return e.Header }
func (e *BotNoticeEvent) Type() string        { return "notice" }
func (e *BotNoticeEvent) Name() string        { return e.Header.EventType }

// Followed reports whether the notice is a follow rather than an unfollow.
func (e *BotNoticeEvent) Followed() bool { return e.Header.EventType == "bot.followed" }

func parseMessageEvent(kind MessageKind) func(raw []byte) (Event, error) {
	return func(raw []byte) (Event, error) {
		var ev MessageEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, err
		}
		if err := validateDetail("message event", ev.Detail); err != nil {
			return nil, err
		}
		ev.Kind = kind
		msg := ev.Detail.Message
		ev.Message = Deserialize(msg.Content, msg.CommandName)
		ev.OriginalMessage = ev.Message.Copy()
		return &ev, nil
	}
}

func parseGroupNotice(raw []byte) (Event, error) {
	var ev GroupNoticeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	if err := validateDetail("group notice", ev.Detail); err != nil {
		return nil, err
	}
	return &ev, nil
}

func parseBotNotice(raw []byte) (Event, error) {
	var ev BotNoticeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	if err := validateDetail("bot notice", ev.Detail); err != nil {
		return nil, err
	}
	return &ev, nil
}

func parseBaseEvent(raw []byte) (Event, error) {
	var ev BaseEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, &ParseError{Variant: "event", Err: err}
	}
	if err := validateDetail("event", ev.Header); err != nil {
		return nil, err
	}
	return &ev, nil
}
