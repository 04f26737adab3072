package yunhu

import (
	"context"
	"log/slog"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/molanp/yunhu-adapter/internal/channel"
)

// ToInbound converts an enriched message event into the generic inbound model.
func ToInbound(bot *Bot, ev *MessageEvent) channel.InboundMessage {
	if ev == nil {
		return channel.InboundMessage{Channel: Type}
	}
	detail := ev.Detail
	message := detail.Message
	msg := channel.Message{
		ID:   message.MsgID,
		Text: strings.TrimSpace(ev.PlainText()),
	}

	switch message.ContentType {
	case ContentMarkdown:
		msg.Format = channel.MessageFormatMarkdown
	case ContentHTML:
		msg.Format = channel.MessageFormatMarkdown
		if converted, err := htmltomarkdown.ConvertString(ev.PlainText()); err == nil {
			msg.Text = strings.TrimSpace(converted)
		} else {
			slog.Warn("yunhu inbound: convert html failed", slog.String("message_id", message.MsgID), slog.Any("error", err))
		}
	default:
		msg.Format = channel.MessageFormatPlain
	}
	msg.Parts = mentionParts(ev.Message)
	msg.Attachments = contentAttachments(bot, message.Content)

	if message.ParentID != "" {
		ref := &channel.ReplyRef{
			Target:    formatTarget(message.ChatID, message.ChatType),
			MessageID: message.ParentID,
		}
		if ev.Reply != nil {
			ref.SenderID = ev.Reply.SenderID
			if ev.Reply.Content != nil {
				ref.Text = replyText(ev.Reply.Content)
			}
		}
		msg.Reply = ref
	}

	metadata := map[string]any{
		"is_mentioned": ev.ToMe,
		"content_type": string(message.ContentType),
		"message_kind": ev.Kind.String(),
		"event_id":     ev.Header.EventID,
	}
	if message.CommandName != "" {
		metadata["command_name"] = message.CommandName
	}
	if message.CommandID != nil {
		metadata["command_id"] = *message.CommandID
	}
	if form, ok := message.Content.(FormContent); ok {
		metadata["form"] = form.FormJSON
	}

	botID := ""
	if bot != nil {
		botID = bot.SelfID()
	}
	recvID, recvType, err := ev.ReplyTarget()
	replyTarget := ""
	if err == nil {
		replyTarget = formatTarget(recvID, recvType)
	}

	receivedAt := time.Now().UTC()
	if ev.Header.EventTime > 0 {
		receivedAt = ev.Time().UTC()
	}

	return channel.InboundMessage{
		Channel:     Type,
		Message:     msg,
		BotID:       botID,
		ReplyTarget: replyTarget,
		Sender: channel.Identity{
			SubjectID:   detail.Sender.SenderID,
			DisplayName: detail.Sender.SenderNickname,
			Attributes: map[string]string{
				"user_id": detail.Sender.SenderID,
				"level":   detail.Sender.SenderUserLevel,
			},
		},
		Conversation: channel.Conversation{
			ID:   message.ChatID,
			Type: message.ChatType,
		},
		ReceivedAt: receivedAt,
		Metadata:   metadata,
	}
}

// mentionParts returns text and mention parts when msg still mentions
// someone after enrichment. A message without mentions needs no parts.
func mentionParts(msg Message) []channel.MessagePart {
	hasMention := false
	for _, seg := range msg {
		if seg.Type == SegmentAt {
			hasMention = true
			break
		}
	}
	if !hasMention {
		return nil
	}
	parts := make([]channel.MessagePart, 0, len(msg))
	for _, seg := range msg {
		switch {
		case seg.Type == SegmentAt:
			parts = append(parts, channel.MessagePart{
				Type:              channel.MessagePartMention,
				Text:              "@" + dataString(seg.Data, "name"),
				ChannelIdentityID: seg.UserID(),
			})
		case seg.IsText():
			if seg.TextValue() == "" {
				continue
			}
			parts = append(parts, channel.MessagePart{Type: channel.MessagePartText, Text: seg.TextValue()})
		}
	}
	return parts
}

func contentAttachments(bot *Bot, content Content) []channel.Attachment {
	source := Type.String()
	switch c := content.(type) {
	case ImageContent:
		return []channel.Attachment{{
			Type:           channel.AttachmentImage,
			URL:            c.ImageURL,
			PlatformKey:    fileStem(c.ImageName),
			SourcePlatform: source,
			Name:           c.ImageName,
			Width:          c.ImageWidth,
			Height:         c.ImageHeight,
			Metadata:       map[string]any{"etag": c.Etag, "referer": "https://www.yhchat.com/"},
		}}
	case VideoContent:
		return []channel.Attachment{{
			Type:           channel.AttachmentVideo,
			URL:            c.VideoURL,
			PlatformKey:    dataString(c.WireDict(), "videoKey"),
			SourcePlatform: source,
			DurationMs:     int64(c.VideoDuration) * 1000,
			Metadata:       map[string]any{"etag": c.Etag},
		}}
	case FileContent:
		url := c.FileURL
		if url == "" && bot != nil {
			url = bot.FileURL(c.FileName)
		}
		return []channel.Attachment{{
			Type:           channel.AttachmentFile,
			URL:            url,
			PlatformKey:    fileStem(c.FileName),
			SourcePlatform: source,
			Name:           c.FileName,
			Size:           c.FileSize,
			Metadata:       map[string]any{"etag": c.Etag},
		}}
	case ExpressionContent:
		return []channel.Attachment{{
			Type:           channel.AttachmentImage,
			SourcePlatform: source,
			Name:           c.ImageName,
			Width:          c.ImageWidth,
			Height:         c.ImageHeight,
			Metadata: map[string]any{
				"expression_id":   c.ExpressionID,
				"sticker_id":      c.StickerID,
				"sticker_pack_id": c.StickerPackID,
			},
		}}
	}
	return nil
}

func replyText(content Content) string {
	switch c := content.(type) {
	case TextContent:
		return c.Text
	case MarkdownContent:
		return c.Text
	case HTMLContent:
		return c.Text
	}
	return "[" + string(content.ContentType()) + "]"
}

// NewInboundBridge returns an EventHandler that forwards message events to
// handler as generic inbound messages. Notices are only logged.
func NewInboundBridge(log *slog.Logger, handler channel.InboundHandler) EventHandler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "yunhu_bridge"))
	return EventHandlerFunc(func(ctx context.Context, bot *Bot, ev Event) error {
		switch e := ev.(type) {
		case *MessageEvent:
			if handler == nil {
				return nil
			}
			return handler(ctx, bot.ChannelConfig(), ToInbound(bot, e))
		case *GroupNoticeEvent:
			log.Info("group notice",
				slog.String("event", e.Name()),
				slog.String("chat_id", e.Detail.ChatID),
				slog.String("user_id", e.Detail.UserID),
			)
		case *BotNoticeEvent:
			log.Info("bot notice",
				slog.String("event", e.Name()),
				slog.String("user_id", e.Detail.UserID),
			)
		default:
			log.Debug("unhandled event", slog.String("event", ev.Name()))
		}
		return nil
	})
}
