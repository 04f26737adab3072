package yunhu

import (
	"fmt"
	"maps"
	"strings"
)

// Segment types. Anything else is a generic segment that carries the raw
// content type name.
const (
	SegmentText     = "text"
	SegmentAt       = "at"
	SegmentImage    = "image"
	SegmentVideo    = "video"
	SegmentFile     = "file"
	SegmentMarkdown = "markdown"
	SegmentHTML     = "html"
)

// resourceKeys maps each media segment type to the data key holding its
// platform resource key.
var resourceKeys = map[string]string{
	SegmentImage: "imageKey",
	SegmentVideo: "videoKey",
	SegmentFile:  "fileKey",
}

// Segment is one unit of message content. Raw holds bytes waiting to be
// uploaded and is never serialized.
type Segment struct {
	Type string
	Data map[string]any
	Raw  []byte
}

func Text(text string) Segment {
	return Segment{Type: SegmentText, Data: map[string]any{"text": text}}
}

// At mentions userID. name is the display name and may be empty.
func At(userID, name string) Segment {
	return Segment{Type: SegmentAt, Data: map[string]any{"user_id": userID, "name": name}}
}

func Image(imageKey string) Segment {
	return Segment{Type: SegmentImage, Data: map[string]any{"imageKey": imageKey}}
}

func Video(videoKey string) Segment {
	return Segment{Type: SegmentVideo, Data: map[string]any{"videoKey": videoKey}}
}

func File(fileKey string) Segment {
	return Segment{Type: SegmentFile, Data: map[string]any{"fileKey": fileKey}}
}

// ImageData, VideoData and FileData build media segments that the upload
// pipeline will exchange for a resource key before sending.
func ImageData(raw []byte) Segment {
	return Segment{Type: SegmentImage, Data: map[string]any{}, Raw: raw}
}

func VideoData(raw []byte) Segment {
	return Segment{Type: SegmentVideo, Data: map[string]any{}, Raw: raw}
}

func FileData(raw []byte) Segment {
	return Segment{Type: SegmentFile, Data: map[string]any{}, Raw: raw}
}

func Markdown(text string) Segment {
	return Segment{Type: SegmentMarkdown, Data: map[string]any{"text": text}}
}

func HTML(text string) Segment {
	return Segment{Type: SegmentHTML, Data: map[string]any{"text": text}}
}

// IsText reports whether the segment renders as text.
func (s Segment) IsText() bool {
	return s.Type == SegmentText || s.Type == SegmentMarkdown || s.Type == SegmentHTML
}

// IsMedia reports whether the segment references an uploadable resource.
func (s Segment) IsMedia() bool {
	_, ok := resourceKeys[s.Type]
	return ok
}

// ResourceKey returns the platform resource key of a media segment.
func (s Segment) ResourceKey() string {
	key, ok := resourceKeys[s.Type]
	if !ok {
		return ""
	}
	return dataString(s.Data, key)
}

// UserID returns the mentioned user of an at segment.
func (s Segment) UserID() string {
	return dataString(s.Data, "user_id")
}

// TextValue returns the text of a text-like segment.
func (s Segment) TextValue() string {
	return dataString(s.Data, "text")
}

func (s Segment) String() string {
	switch {
	case s.IsText():
		return s.TextValue()
	case s.Type == SegmentAt:
		return fmt.Sprintf("[at:user_id=%s,name=%s]", s.UserID(), dataString(s.Data, "name"))
	case s.IsMedia():
		return fmt.Sprintf("[%s:%s]", s.Type, s.ResourceKey())
	default:
		return fmt.Sprintf("[%s:%v]", s.Type, s.Data)
	}
}

// Copy returns a segment whose data map can be mutated independently.
func (s Segment) Copy() Segment {
	out := Segment{Type: s.Type, Data: maps.Clone(s.Data)}
	if s.Raw != nil {
		out.Raw = append([]byte(nil), s.Raw...)
	}
	return out
}

// Message is an ordered list of segments.
type Message []Segment

// NewMessage builds a message from segments.
func NewMessage(segments ...Segment) Message {
	return Message(segments)
}

// PlainText concatenates the text-like segments.
func (m Message) PlainText() string {
	var b strings.Builder
	for _, seg := range m {
		if seg.IsText() {
			b.WriteString(seg.TextValue())
		}
	}
	return b.String()
}

func (m Message) String() string {
	var b strings.Builder
	for _, seg := range m {
		b.WriteString(seg.String())
	}
	return b.String()
}

// Copy deep-copies the message.
func (m Message) Copy() Message {
	if m == nil {
		return nil
	}
	out := make(Message, len(m))
	for i, seg := range m {
		out[i] = seg.Copy()
	}
	return out
}

func dataString(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	value, ok := data[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
