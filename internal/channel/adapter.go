package channel

import "context"

// InboundHandler consumes messages translated from a channel.
type InboundHandler func(ctx context.Context, cfg ChannelConfig, msg InboundMessage) error

// Adapter is the minimum a channel implementation registers with. The other
// interfaces in this file are optional and discovered at registration.
type Adapter interface {
	Type() ChannelType
	Descriptor() Descriptor
}

// ChannelCapabilities lists what a channel can render or do. Registry.Send
// rejects messages that need a capability the channel lacks.
type ChannelCapabilities struct {
	Text        bool `json:"text"`
	Markdown    bool `json:"markdown"`
	RichText    bool `json:"rich_text"`
	Attachments bool `json:"attachments"`
	Media       bool `json:"media"`
	Mentions    bool `json:"mentions"`
	Reply       bool `json:"reply"`
	Edit        bool `json:"edit"`
	Unsend      bool `json:"unsend"`
}

type Descriptor struct {
	Type         ChannelType         `json:"type"`
	DisplayName  string              `json:"display_name"`
	Capabilities ChannelCapabilities `json:"capabilities"`
}

type ConfigNormalizer interface {
	NormalizeConfig(raw map[string]any) (map[string]any, error)
}

type Sender interface {
	Send(ctx context.Context, cfg ChannelConfig, msg OutboundMessage) error
}

// MessageEditor changes or withdraws a message already sent to target.
type MessageEditor interface {
	Update(ctx context.Context, cfg ChannelConfig, target string, messageID string, msg Message) error
	Unsend(ctx context.Context, cfg ChannelConfig, target string, messageID string) error
}

// OutboundPolicyProvider is implemented by adapters that want long text split.
type OutboundPolicyProvider interface {
	OutboundPolicy() OutboundPolicy
}
