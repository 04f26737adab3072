package channel

import (
	"fmt"
	"strings"
)

// OutboundPolicy controls how Registry.Send splits a message before handing
// it to the adapter.
type OutboundPolicy struct {
	// TextChunkLimit is the maximum rune count of one text message. Zero
	// disables chunking.
	TextChunkLimit int `json:"text_chunk_limit,omitempty"`
}

// Chunker splits text into pieces that respect a character limit.
type Chunker func(text string, limit int) []string

// ChunkText splits text at newline boundaries, respecting the rune limit.
func ChunkText(text string, limit int) []string {
	return chunkOn(text, limit, "\n", splitLongLine)
}

// ChunkMarkdownText splits text at paragraph boundaries, respecting the rune
// limit. Paragraphs that are still too long fall back to ChunkText.
func ChunkMarkdownText(text string, limit int) []string {
	return chunkOn(text, limit, "\n\n", ChunkText)
}

func chunkOn(text string, limit int, sep string, oversize Chunker) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if limit <= 0 || runeLen(trimmed) <= limit {
		return []string{trimmed}
	}
	pieces := strings.Split(trimmed, sep)
	chunks := make([]string, 0)
	buf := make([]string, 0, len(pieces))
	bufLen := 0
	for _, piece := range pieces {
		pieceLen := runeLen(piece)
		sepLen := 0
		if len(buf) > 0 {
			sepLen = len(sep)
		}
		if bufLen+sepLen+pieceLen <= limit {
			buf = append(buf, piece)
			bufLen += sepLen + pieceLen
			continue
		}
		if len(buf) > 0 {
			chunks = append(chunks, strings.Join(buf, sep))
			buf = buf[:0]
			bufLen = 0
		}
		if pieceLen <= limit {
			buf = append(buf, piece)
			bufLen = pieceLen
			continue
		}
		chunks = append(chunks, oversize(piece, limit)...)
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, sep))
	}
	return chunks
}

func runeLen(value string) int {
	return len([]rune(value))
}

func splitLongLine(line string, limit int) []string {
	if limit <= 0 {
		return []string{line}
	}
	runes := []rune(line)
	chunks := make([]string, 0)
	for start := 0; start < len(runes); start += limit {
		end := min(start+limit, len(runes))
		segment := strings.TrimSpace(string(runes[start:end]))
		if segment == "" {
			continue
		}
		chunks = append(chunks, segment)
	}
	return chunks
}

// BuildOutboundMessages splits msg by policy. Attachments travel in the first
// message, followed by the text chunks. Messages with parts are never split.
// The reply reference stays on the first message only.
func BuildOutboundMessages(msg OutboundMessage, policy OutboundPolicy) ([]OutboundMessage, error) {
	if msg.Message.IsEmpty() {
		return nil, fmt.Errorf("message is empty")
	}
	base := msg.Message
	if policy.TextChunkLimit <= 0 || len(base.Parts) > 0 || runeLen(strings.TrimSpace(base.Text)) <= policy.TextChunkLimit {
		return []OutboundMessage{msg}, nil
	}
	chunker := ChunkText
	if base.Format == MessageFormatMarkdown {
		chunker = ChunkMarkdownText
	}
	out := make([]OutboundMessage, 0)
	if len(base.Attachments) > 0 {
		media := Message{Attachments: base.Attachments, Reply: base.Reply, Metadata: base.Metadata}
		out = append(out, OutboundMessage{Target: msg.Target, Message: media})
	}
	for _, chunk := range chunker(base.Text, policy.TextChunkLimit) {
		item := Message{Format: base.Format, Text: chunk, Metadata: base.Metadata}
		if len(out) == 0 {
			item.Reply = base.Reply
		}
		out = append(out, OutboundMessage{Target: msg.Target, Message: item})
	}
	return out, nil
}

// ValidateCapabilities rejects messages using features the channel lacks.
func ValidateCapabilities(caps ChannelCapabilities, msg Message) error {
	switch msg.Format {
	case MessageFormatPlain:
		if !caps.Text {
			return fmt.Errorf("channel does not support plain text")
		}
	case MessageFormatMarkdown:
		if !caps.Markdown && !caps.RichText {
			return fmt.Errorf("channel does not support markdown")
		}
	case MessageFormatRich:
		if !caps.RichText {
			return fmt.Errorf("channel does not support rich text")
		}
	}
	for _, part := range msg.Parts {
		if part.Type == MessagePartMention && !caps.Mentions {
			return fmt.Errorf("channel does not support mentions")
		}
	}
	if len(msg.Attachments) > 0 && !caps.Attachments {
		return fmt.Errorf("channel does not support attachments")
	}
	if requiresMedia(msg.Attachments) && !caps.Media {
		return fmt.Errorf("channel does not support media")
	}
	if msg.Reply != nil && !caps.Reply {
		return fmt.Errorf("channel does not support reply")
	}
	return nil
}

func requiresMedia(attachments []Attachment) bool {
	for _, att := range attachments {
		switch att.Type {
		case AttachmentImage, AttachmentVideo:
			return true
		}
	}
	return false
}
