// Package channel provides the platform-neutral message model that chat
// platform adapters translate into and out of.
package channel

import (
	"strings"
	"time"
)

// ChannelType names a messaging platform, e.g. "yunhu".
type ChannelType string

func (c ChannelType) String() string {
	return string(c)
}

// Identity is who sent an inbound message.
type Identity struct {
	SubjectID   string
	DisplayName string
	// Attributes carries platform details such as a member level.
	Attributes map[string]string
}

// Conversation is the chat an inbound message arrived in.
type Conversation struct {
	ID   string
	Type string
	Name string
}

// Shared reports whether several users talk to the bot in this
// conversation. Direct chats are not shared.
func (c Conversation) Shared() bool {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "", "bot", "user", "private", "p2p":
		return false
	}
	return true
}

// InboundMessage is a platform message translated into the generic model.
type InboundMessage struct {
	Channel      ChannelType
	BotID        string
	Message      Message
	Sender       Identity
	Conversation Conversation
	// ReplyTarget is the target string that OutboundMessage.Target takes
	// to answer in the same conversation.
	ReplyTarget string
	ReceivedAt  time.Time
	Metadata    map[string]any
}

// RoutingKey identifies the dialogue a message belongs to, as
// channel:bot:conversation. Shared conversations append the sender so each
// member gets a separate dialogue.
func (m InboundMessage) RoutingKey() string {
	key := strings.Join([]string{m.Channel.String(), m.BotID, m.Conversation.ID}, ":")
	if !m.Conversation.Shared() {
		return key
	}
	sender := strings.TrimSpace(m.Sender.SubjectID)
	if sender == "" {
		sender = strings.TrimSpace(m.Sender.DisplayName)
	}
	if sender == "" {
		return key
	}
	return key + ":" + sender
}

// OutboundMessage is a message addressed to a platform target such as
// "group:<id>" or "user:<id>".
type OutboundMessage struct {
	Target  string  `json:"target"`
	Message Message `json:"message"`
}

// ChannelConfig is one bot's integration with a channel. Credentials hold the
// adapter-specific settings, normalized through the adapter when possible.
type ChannelConfig struct {
	ID               string         `json:"id"`
	BotID            string         `json:"bot_id"`
	ChannelType      ChannelType    `json:"channel_type"`
	Credentials      map[string]any `json:"credentials"`
	ExternalIdentity string         `json:"external_identity,omitempty"`
	SelfIdentity     map[string]any `json:"self_identity,omitempty"`
	Disabled         bool           `json:"disabled"`
}
