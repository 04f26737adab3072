package yunhu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/molanp/yunhu-adapter/internal/channel"
)

type botAPI interface {
	messageFetcher
	resourceUploader
	Send(ctx context.Context, req SendRequest) (MessageInfo, error)
	Edit(ctx context.Context, req EditRequest) error
	Recall(ctx context.Context, messageID, chatID, chatType string) error
	GetMessages(ctx context.Context, chatID, chatType string, params url.Values) ([]json.RawMessage, error)
	FileURL(key string) string
}

// Bot is one connected Yunhu bot: its identity, its API client and the
// enrichment passes run on its inbound events.
type Bot struct {
	logger   *slog.Logger
	config   Config
	info     BotInfo
	api      botAPI
	mentions *MentionResolver
	replies  *ReplyResolver
}

// NewBot creates a bot for cfg. info is the profile fetched at startup.
func NewBot(log *slog.Logger, cfg Config, info BotInfo, api botAPI) *Bot {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("bot_id", cfg.AppID))
	return &Bot{
		logger:   log,
		config:   cfg,
		info:     info,
		api:      api,
		mentions: NewMentionResolver(log, cfg.AppID, cfg.Nicknames),
		replies:  NewReplyResolver(log, api, cfg.AppID),
	}
}

// SelfID returns the bot ID, which is also its app ID.
func (b *Bot) SelfID() string { return b.config.AppID }

// Nickname returns the platform nickname from the bot profile.
func (b *Bot) Nickname() string { return b.info.Nickname }

// Info returns the bot profile fetched at startup.
func (b *Bot) Info() BotInfo { return b.info }

// ChannelConfig describes the bot in the generic channel model.
func (b *Bot) ChannelConfig() channel.ChannelConfig {
	creds := map[string]any{"appId": b.config.AppID, "token": b.config.Token}
	if len(b.config.Nicknames) > 0 {
		creds["nicknames"] = b.config.Nicknames
	}
	return channel.ChannelConfig{
		ID:               b.config.AppID,
		BotID:            b.config.AppID,
		ChannelType:      Type,
		Credentials:      creds,
		ExternalIdentity: b.config.AppID,
		SelfIdentity: map[string]any{
			"nickname":   b.info.Nickname,
			"avatar_url": b.info.AvatarURL,
		},
	}
}

// Enrich runs the at-me, nickname and reply passes on message events.
// Other events are left untouched.
func (b *Bot) Enrich(ctx context.Context, ev Event) {
	msgEvent, ok := ev.(*MessageEvent)
	if !ok {
		return
	}
	b.mentions.ResolveAtMe(msgEvent)
	b.mentions.ResolveNickname(msgEvent)
	b.replies.Resolve(ctx, msgEvent)
}

// SendOptions controls how Send replies to an event.
type SendOptions struct {
	// AtSender prepends a mention of the event's sender.
	AtSender bool
	// ReplyTo quotes the event's message.
	ReplyTo bool
}

// Send replies to the chat ev came from.
func (b *Bot) Send(ctx context.Context, ev Event, msg Message, opts SendOptions) (MessageInfo, error) {
	msgEvent, ok := ev.(*MessageEvent)
	if !ok {
		return MessageInfo{}, ErrNoReplyTarget
	}
	recvID, recvType, err := msgEvent.ReplyTarget()
	if err != nil {
		return MessageInfo{}, err
	}
	full := Message{}
	if opts.AtSender && msgEvent.UserID() != "" {
		full = append(full, At(msgEvent.UserID(), msgEvent.Detail.Sender.SenderNickname), Text(" "))
	}
	full = append(full, msg...)
	parentID := ""
	if opts.ReplyTo {
		parentID = msgEvent.MessageID()
	}
	return b.SendTo(ctx, recvID, recvType, full, parentID)
}

// SendTo uploads pending resources in msg, serializes it and sends it to
// recvID. parentID, when set, quotes that message.
func (b *Bot) SendTo(ctx context.Context, recvID, recvType string, msg Message, parentID string) (MessageInfo, error) {
	content, contentType, err := b.prepare(ctx, msg)
	if err != nil {
		return MessageInfo{}, err
	}
	info, err := b.api.Send(ctx, SendRequest{
		RecvID:      recvID,
		RecvType:    RecvType(recvType),
		ContentType: contentType,
		Content:     content,
		ParentID:    parentID,
	})
	if err != nil {
		return MessageInfo{}, err
	}
	b.logger.Debug("message sent",
		slog.String("recv_id", recvID),
		slog.String("recv_type", recvType),
		slog.String("msg_id", info.MsgID),
	)
	return info, nil
}

// Edit replaces a sent message. Only text, markdown and html can be edited.
func (b *Bot) Edit(ctx context.Context, messageID, recvID, recvType string, msg Message) error {
	content, contentType, err := b.prepare(ctx, msg)
	if err != nil {
		return err
	}
	switch contentType {
	case SegmentText, SegmentMarkdown, SegmentHTML:
	default:
		return fmt.Errorf("yunhu cannot edit a message into %s content", contentType)
	}
	return b.api.Edit(ctx, EditRequest{
		MsgID:       messageID,
		RecvID:      recvID,
		RecvType:    RecvType(recvType),
		ContentType: contentType,
		Content:     content,
	})
}

// Recall deletes a sent message.
func (b *Bot) Recall(ctx context.Context, messageID, chatID, chatType string) error {
	return b.api.Recall(ctx, messageID, chatID, chatType)
}

// GetMessage fetches and decodes a message of a chat.
func (b *Bot) GetMessage(ctx context.Context, messageID, chatID, chatType string) (*Reply, error) {
	raw, err := b.api.GetMessage(ctx, messageID, chatID, chatType)
	if err != nil {
		return nil, err
	}
	return ParseReply(raw)
}

// GetMessages lists messages of a chat. params carries the paging
// arguments of bot/messages, such as message-id, before and after.
func (b *Bot) GetMessages(ctx context.Context, chatID, chatType string, params url.Values) ([]*Reply, error) {
	items, err := b.api.GetMessages(ctx, chatID, chatType, params)
	if err != nil {
		return nil, err
	}
	out := make([]*Reply, 0, len(items))
	for _, raw := range items {
		reply, err := ParseReply(raw)
		if err != nil {
			b.logger.Debug("skip undecodable message", slog.Any("error", err))
			continue
		}
		out = append(out, reply)
	}
	return out, nil
}

// FileURL returns the download URL of a resource key.
func (b *Bot) FileURL(key string) string {
	return b.api.FileURL(key)
}

func (b *Bot) prepare(ctx context.Context, msg Message) (map[string]any, string, error) {
	if len(msg) == 0 {
		return nil, "", ErrEmptyMessage
	}
	uploaded, err := UploadResources(ctx, b.api, msg)
	if err != nil {
		return nil, "", err
	}
	return uploaded.Serialize()
}
