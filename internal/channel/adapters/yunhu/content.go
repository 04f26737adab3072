package yunhu

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ContentType is the discriminator of the message content union.
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentImage      ContentType = "image"
	ContentVideo      ContentType = "video"
	ContentFile       ContentType = "file"
	ContentMarkdown   ContentType = "markdown"
	ContentHTML       ContentType = "html"
	ContentExpression ContentType = "expression"
	ContentForm       ContentType = "form"
)

// Content is one variant of the message content union.
type Content interface {
	ContentType() ContentType
	// Mentions returns the user IDs listed in the content's "at" field.
	Mentions() []string
	// WireDict returns the minimal projection the send API accepts.
	WireDict() map[string]any
}

// CommonContent carries the fields shared by every variant.
type CommonContent struct {
	At []string `json:"at,omitempty"`
}

func (c CommonContent) Mentions() []string { return c.At }

type TextContent struct {
	CommonContent
	Text string `json:"text"`
}

func (TextContent) ContentType() ContentType { return ContentText }

func (c TextContent) WireDict() map[string]any { return map[string]any{"text": c.Text} }

type MarkdownContent struct {
	CommonContent
	Text string `json:"text"`
}

func (MarkdownContent) ContentType() ContentType { return ContentMarkdown }

func (c MarkdownContent) WireDict() map[string]any { return map[string]any{"text": c.Text} }

type HTMLContent struct {
	CommonContent
	Text string `json:"text"`
}

func (HTMLContent) ContentType() ContentType { return ContentHTML }

func (c HTMLContent) WireDict() map[string]any { return map[string]any{"text": c.Text} }

// ImageContent is an inbound image. ImageURL needs a Referer of
// https://www.yhchat.com/ to be fetched directly.
type ImageContent struct {
	CommonContent
	ImageURL    string `json:"imageUrl"`
	ImageName   string `json:"imageName"`
	Etag        string `json:"etag"`
	ImageWidth  int    `json:"imageWidth" validate:"gte=0"`
	ImageHeight int    `json:"imageHeight" validate:"gte=0"`
}

func (ImageContent) ContentType() ContentType { return ContentImage }

// WireDict derives imageKey from the file name stem. The mapping is a
// best-effort guess at the key the platform assigned, not a stable identifier.
func (c ImageContent) WireDict() map[string]any {
	return map[string]any{"imageKey": fileStem(c.ImageName)}
}

type VideoContent struct {
	CommonContent
	VideoURL      string `json:"videoUrl"`
	Etag          string `json:"etag"`
	VideoDuration int    `json:"videoDuration" validate:"gte=0"`
}

func (VideoContent) ContentType() ContentType { return ContentVideo }

// WireDict derives videoKey from the last path element of the URL, minus the
// extension. Lossy in the same way as ImageContent.WireDict.
func (c VideoContent) WireDict() map[string]any {
	return map[string]any{"videoKey": fileStem(path.Base(c.VideoURL))}
}

type FileContent struct {
	CommonContent
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
	FileSize int64  `json:"fileSize" validate:"gte=0"`
	Etag     string `json:"etag"`
}

func (FileContent) ContentType() ContentType { return ContentFile }

// WireDict derives fileKey from the file name stem. Lossy, see ImageContent.WireDict.
func (c FileContent) WireDict() map[string]any {
	return map[string]any{"fileKey": fileStem(c.FileName)}
}

// ExpressionContent is a sticker.
type ExpressionContent struct {
	CommonContent
	ImageName     string `json:"imageName"`
	ExpressionID  int64  `json:"expressionId"`
	StickerID     int64  `json:"stickerId"`
	StickerPackID int64  `json:"stickerPackId"`
	ImageWidth    int    `json:"imageWidth" validate:"gte=0"`
	ImageHeight   int    `json:"imageHeight" validate:"gte=0"`
}

func (ExpressionContent) ContentType() ContentType { return ContentExpression }

func (c ExpressionContent) WireDict() map[string]any {
	return map[string]any{
		"imageName":     c.ImageName,
		"expressionId":  c.ExpressionID,
		"stickerId":     c.StickerID,
		"stickerPackId": c.StickerPackID,
		"imageWidth":    c.ImageWidth,
		"imageHeight":   c.ImageHeight,
	}
}

// FormDetail is one submitted form control.
type FormDetail struct {
	ID           string   `json:"id" validate:"required"`
	Type         string   `json:"type" validate:"oneof=input textarea radio checkbox switch select"`
	Label        string   `json:"label"`
	Value        *string  `json:"value,omitempty"`
	SelectIndex  *int     `json:"selectIndex,omitempty"`
	SelectValue  *string  `json:"selectValue,omitempty"`
	SelectStatus []bool   `json:"selectStatus,omitempty"`
	SelectValues []string `json:"selectValues,omitempty"`
}

type FormContent struct {
	CommonContent
	FormJSON map[string]FormDetail `json:"formJson" validate:"dive"`
}

func (FormContent) ContentType() ContentType { return ContentForm }

func (c FormContent) WireDict() map[string]any {
	form := make(map[string]any, len(c.FormJSON))
	for id, detail := range c.FormJSON {
		form[id] = detail
	}
	return map[string]any{"formJson": form}
}

func fileStem(name string) string {
	if idx := strings.Index(name, "."); idx >= 0 {
		return name[:idx]
	}
	return name
}

type contentVariant struct {
	required []string
	decode   func(raw []byte) (Content, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func decodeVariant[T Content](raw []byte) (Content, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if err := validate.Struct(v); err != nil {
		return nil, err
	}
	return v, nil
}

var contentVariants = map[ContentType]contentVariant{
	ContentText:     {required: fields("text"), decode: decodeVariant[TextContent]},
	ContentMarkdown: {required: fields("text"), decode: decodeVariant[MarkdownContent]},
	ContentHTML:     {required: fields("text"), decode: decodeVariant[HTMLContent]},
	ContentImage: {
		required: fields("imageUrl", "imageName", "etag", "imageWidth", "imageHeight"),
		decode:   decodeVariant[ImageContent],
	},
	ContentVideo: {
		required: fields("videoUrl", "etag", "videoDuration"),
		decode:   decodeVariant[VideoContent],
	},
	ContentFile: {
		required: fields("fileName", "fileUrl", "fileSize", "etag"),
		decode:   decodeVariant[FileContent],
	},
	ContentExpression: {
		required: fields("imageName", "expressionId", "stickerId", "stickerPackId", "imageWidth", "imageHeight"),
		decode:   decodeVariant[ExpressionContent],
	},
	ContentForm: {required: fields("formJson"), decode: decodeVariant[FormContent]},
}

func fields(names ...string) []string { return names }

// inferenceRules is checked in order when neither discriminator is present.
var inferenceRules = []struct {
	keys []string
	tag  ContentType
}{
	{keys: []string{"text"}, tag: ContentText},
	{keys: []string{"markdown"}, tag: ContentMarkdown},
	{keys: []string{"imageUrl", "imageName"}, tag: ContentImage},
	{keys: []string{"fileUrl", "fileName"}, tag: ContentFile},
	{keys: []string{"videoUrl"}, tag: ContentVideo},
	{keys: []string{"formJson"}, tag: ContentForm},
	{keys: []string{"expressionId", "stickerId"}, tag: ContentExpression},
}

// KnownContentType reports whether t names a registered content variant.
func KnownContentType(t ContentType) bool {
	_, ok := contentVariants[t]
	return ok
}

// InferContentType picks the discriminator for raw. The inner contentType
// field wins, then a known outer type, then field-presence inference.
func InferContentType(raw map[string]any, outer ContentType) (ContentType, bool) {
	if inner, ok := raw["contentType"].(string); ok && strings.TrimSpace(inner) != "" {
		return ContentType(strings.TrimSpace(inner)), true
	}
	if KnownContentType(outer) {
		return outer, true
	}
	for _, rule := range inferenceRules {
		for _, key := range rule.keys {
			if _, ok := raw[key]; ok {
				return rule.tag, true
			}
		}
	}
	return "", false
}

// ParseContent decodes raw into the variant selected by tag.
func ParseContent(tag ContentType, raw map[string]any) (Content, error) {
	variant, ok := contentVariants[tag]
	if !ok {
		return nil, &ParseError{Variant: string(tag), Err: ErrUnknownContentType}
	}
	for _, field := range variant.required {
		if _, ok := raw[field]; !ok {
			return nil, &ParseError{Variant: string(tag), Err: fmt.Errorf("missing required field %q", field)}
		}
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, &ParseError{Variant: string(tag), Err: err}
	}
	content, err := variant.decode(payload)
	if err != nil {
		return nil, &ParseError{Variant: string(tag), Err: err}
	}
	return content, nil
}

// ResolveContent runs inference and parsing in one step and returns the
// resolved discriminator, which callers use to back-fill an empty outer type.
func ResolveContent(raw map[string]any, outer ContentType) (Content, ContentType, error) {
	if raw == nil {
		return nil, "", &ParseError{Variant: "content", Err: fmt.Errorf("content is not an object")}
	}
	tag, ok := InferContentType(raw, outer)
	if !ok {
		return nil, "", &ParseError{Variant: "content", Err: fmt.Errorf("cannot infer content type from fields")}
	}
	content, err := ParseContent(tag, raw)
	if err != nil {
		return nil, tag, err
	}
	return content, tag, nil
}
