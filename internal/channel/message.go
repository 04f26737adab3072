package channel

import "strings"

// MessageFormat is how Message.Text is rendered.
type MessageFormat string

const (
	MessageFormatPlain    MessageFormat = "plain"
	MessageFormatMarkdown MessageFormat = "markdown"
	// MessageFormatRich is HTML.
	MessageFormatRich MessageFormat = "rich"
)

type MessagePartType string

const (
	MessagePartText    MessagePartType = "text"
	MessagePartLink    MessagePartType = "link"
	MessagePartMention MessagePartType = "mention"
)

// MessagePart is one inline element of a message. A mention names the user
// in Text and carries the platform user ID in ChannelIdentityID.
type MessagePart struct {
	Type              MessagePartType `json:"type"`
	Text              string          `json:"text,omitempty"`
	URL               string          `json:"url,omitempty"`
	ChannelIdentityID string          `json:"channel_identity_id,omitempty"`
}

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentFile  AttachmentType = "file"
)

// Attachment is media carried by a message. PlatformKey is only meaningful
// on SourcePlatform; Data is raw content to upload before sending.
type Attachment struct {
	Type           AttachmentType `json:"type"`
	URL            string         `json:"url,omitempty"`
	PlatformKey    string         `json:"platform_key,omitempty"`
	SourcePlatform string         `json:"source_platform,omitempty"`
	Data           []byte         `json:"-"`
	Name           string         `json:"name,omitempty"`
	Size           int64          `json:"size,omitempty"`
	DurationMs     int64          `json:"duration_ms,omitempty"`
	Width          int            `json:"width,omitempty"`
	Height         int            `json:"height,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ReplyRef is the message being quoted. Target is where it was posted.
type ReplyRef struct {
	Target    string `json:"target,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	SenderID  string `json:"sender_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Message is the platform-neutral message body. Text and Parts are
// alternatives: when Parts is set it is the authoritative content.
type Message struct {
	ID          string         `json:"id,omitempty"`
	Format      MessageFormat  `json:"format,omitempty"`
	Text        string         `json:"text,omitempty"`
	Parts       []MessagePart  `json:"parts,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Reply       *ReplyRef      `json:"reply,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (m Message) IsEmpty() bool {
	return len(m.Parts) == 0 && len(m.Attachments) == 0 && strings.TrimSpace(m.Text) == ""
}

// PlainText flattens the message for logs and previews. Parts are joined one
// per line, links without a label fall back to their URL.
func (m Message) PlainText() string {
	if text := strings.TrimSpace(m.Text); text != "" || len(m.Parts) == 0 {
		return text
	}
	var b strings.Builder
	for _, part := range m.Parts {
		value := strings.TrimSpace(part.Text)
		if value == "" && part.Type == MessagePartLink {
			value = strings.TrimSpace(part.URL)
		}
		if value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(value)
	}
	return b.String()
}
