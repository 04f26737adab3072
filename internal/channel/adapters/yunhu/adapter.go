package yunhu

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/molanp/yunhu-adapter/internal/channel"
)

// Type is the registered channel type of Yunhu.
const Type channel.ChannelType = "yunhu"

const bootstrapConcurrency = 4

type botClient interface {
	botAPI
	GetBotInfo(ctx context.Context, botID string) (BotInfo, error)
}

// YunhuAdapter connects configured Yunhu bots and translates between the
// generic channel model and Yunhu messages.
type YunhuAdapter struct {
	logger     *slog.Logger
	dispatcher *Dispatcher
	nicknames  []string
	chunkLimit int
	newClient  func(token string) botClient
}

// AdapterOptions configures a YunhuAdapter.
type AdapterOptions struct {
	Client ClientOptions
	// Nicknames are shared by every bot in addition to its own.
	Nicknames []string
	// Handler receives events after enrichment. Nil only enriches.
	Handler EventHandler
	// TextChunkLimit splits long outbound text sent through a channel
	// registry. Zero sends text whole.
	TextChunkLimit int
	// Observer receives dispatch outcomes. Nil disables reporting.
	Observer Observer
}

// NewYunhuAdapter creates the adapter with an empty bot table.
func NewYunhuAdapter(log *slog.Logger, opts AdapterOptions) *YunhuAdapter {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("adapter", "yunhu"))
	clientOpts := opts.Client
	dispatcher := NewDispatcher(log, NewDefaultEventTypeRegistry(log), NewBotTable(), opts.Handler)
	dispatcher.SetObserver(opts.Observer)
	return &YunhuAdapter{
		logger:     log,
		dispatcher: dispatcher,
		nicknames:  opts.Nicknames,
		chunkLimit: opts.TextChunkLimit,
		newClient: func(token string) botClient {
			return NewClient(log, token, clientOpts)
		},
	}
}

// Type returns the Yunhu channel type.
func (a *YunhuAdapter) Type() channel.ChannelType {
	return Type
}

// Descriptor returns the Yunhu channel metadata.
func (a *YunhuAdapter) Descriptor() channel.Descriptor {
	return channel.Descriptor{
		Type:        Type,
		DisplayName: "Yunhu",
		Capabilities: channel.ChannelCapabilities{
			Text:        true,
			Markdown:    true,
			RichText:    true,
			Attachments: true,
			Media:       true,
			Mentions:    true,
			Reply:       true,
			Edit:        true,
			Unsend:      true,
		},
	}
}

// NormalizeConfig validates and normalizes Yunhu credentials.
func (a *YunhuAdapter) NormalizeConfig(raw map[string]any) (map[string]any, error) {
	return normalizeConfig(raw)
}

// OutboundPolicy reports how a channel registry should split long text.
func (a *YunhuAdapter) OutboundPolicy() channel.OutboundPolicy {
	return channel.OutboundPolicy{TextChunkLimit: a.chunkLimit}
}

// LookupConfig returns the channel config of a connected bot.
func (a *YunhuAdapter) LookupConfig(appID string) (channel.ChannelConfig, bool) {
	bot, ok := a.dispatcher.Bots().Get(strings.TrimSpace(appID))
	if !ok {
		return channel.ChannelConfig{}, false
	}
	return bot.ChannelConfig(), true
}

// Dispatcher returns the dispatcher serving this adapter's bots.
func (a *YunhuAdapter) Dispatcher() *Dispatcher {
	return a.dispatcher
}

// Start connects every enabled bot in configs. A bot whose credentials are
// incomplete or whose profile cannot be fetched is skipped; the others are
// still connected. Start returns the number of connected bots.
func (a *YunhuAdapter) Start(ctx context.Context, configs []channel.ChannelConfig) int {
	var (
		mu        sync.Mutex
		connected int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bootstrapConcurrency)
	for _, cfg := range configs {
		if cfg.Disabled {
			continue
		}
		botCfg, err := parseConfig(cfg.Credentials)
		if err != nil {
			a.logger.Warn("missing app_id or token, bot skipped",
				slog.String("config_id", cfg.ID),
				slog.Any("error", err),
			)
			continue
		}
		botCfg.Nicknames = mergeNicknames(a.nicknames, botCfg.Nicknames)
		g.Go(func() error {
			bot, err := a.connect(gctx, botCfg)
			if err != nil {
				a.logger.Error("failed to connect bot",
					slog.String("app_id", botCfg.AppID),
					slog.Any("error", err),
				)
				return nil
			}
			a.dispatcher.Bots().Add(bot)
			mu.Lock()
			connected++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return connected
}

func (a *YunhuAdapter) connect(ctx context.Context, cfg Config) (*Bot, error) {
	client := a.newClient(cfg.Token)
	info, err := client.GetBotInfo(ctx, cfg.AppID)
	if err != nil {
		return nil, err
	}
	a.logger.Info("bot connected",
		slog.String("nickname", info.Nickname),
		slog.String("app_id", cfg.AppID),
		slog.Int64("headcount", info.Headcount),
	)
	return NewBot(a.logger, cfg, info, client), nil
}

// Send delivers a generic outbound message. Attachments are sent one message
// each before the text. A reply reference quotes the first message sent.
func (a *YunhuAdapter) Send(ctx context.Context, cfg channel.ChannelConfig, msg channel.OutboundMessage) error {
	bot, err := a.botFor(cfg)
	if err != nil {
		return err
	}
	recvID, recvType, err := parseTarget(msg.Target)
	if err != nil {
		return err
	}
	parentID := ""
	if msg.Message.Reply != nil {
		parentID = strings.TrimSpace(msg.Message.Reply.MessageID)
	}
	batches, err := buildOutbound(msg.Message)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		if _, err := bot.SendTo(ctx, recvID, recvType, batch, parentID); err != nil {
			return err
		}
		parentID = ""
	}
	return nil
}

// Update edits a message previously sent to target.
func (a *YunhuAdapter) Update(ctx context.Context, cfg channel.ChannelConfig, target string, messageID string, msg channel.Message) error {
	bot, err := a.botFor(cfg)
	if err != nil {
		return err
	}
	recvID, recvType, err := parseTarget(target)
	if err != nil {
		return err
	}
	body, err := buildText(msg)
	if err != nil {
		return err
	}
	return bot.Edit(ctx, messageID, recvID, recvType, body)
}

// Unsend recalls a message previously sent to target.
func (a *YunhuAdapter) Unsend(ctx context.Context, cfg channel.ChannelConfig, target string, messageID string) error {
	bot, err := a.botFor(cfg)
	if err != nil {
		return err
	}
	recvID, recvType, err := parseTarget(target)
	if err != nil {
		return err
	}
	return bot.Recall(ctx, messageID, recvID, recvType)
}

// botFor returns the connected bot for cfg, or a bot built from cfg's
// credentials without a profile when it was never started.
func (a *YunhuAdapter) botFor(cfg channel.ChannelConfig) (*Bot, error) {
	botCfg, err := parseConfig(cfg.Credentials)
	if err != nil {
		a.logger.Error("decode config failed", slog.String("config_id", cfg.ID), slog.Any("error", err))
		return nil, err
	}
	if bot, ok := a.dispatcher.Bots().Get(botCfg.AppID); ok {
		return bot, nil
	}
	return NewBot(a.logger, botCfg, BotInfo{BotID: botCfg.AppID}, a.newClient(botCfg.Token)), nil
}

// buildOutbound splits a generic message into the Yunhu messages it is sent as.
func buildOutbound(msg channel.Message) ([]Message, error) {
	var batches []Message
	for _, att := range msg.Attachments {
		seg, err := attachmentSegment(att)
		if err != nil {
			return nil, err
		}
		batches = append(batches, Message{seg})
	}
	if strings.TrimSpace(msg.Text) != "" || len(msg.Parts) > 0 {
		body, err := buildText(msg)
		if err != nil {
			return nil, err
		}
		batches = append(batches, body)
	}
	if len(batches) == 0 {
		return nil, ErrEmptyMessage
	}
	return batches, nil
}

// buildText renders text parts into one text-like segment. Mentions become
// inline "@name" markers followed by a zero-width space, with the user IDs
// carried as at segments ahead of the text.
func buildText(msg channel.Message) (Message, error) {
	if len(msg.Parts) == 0 {
		if strings.TrimSpace(msg.Text) == "" {
			return nil, ErrEmptyMessage
		}
		return Message{formatSegment(msg.Format, msg.Text)}, nil
	}
	var (
		mentions Message
		text     strings.Builder
	)
	for _, part := range msg.Parts {
		switch part.Type {
		case channel.MessagePartMention:
			name := strings.TrimPrefix(strings.TrimSpace(part.Text), "@")
			id := strings.TrimSpace(part.ChannelIdentityID)
			if id == "" {
				text.WriteString("@" + name)
				continue
			}
			mentions = append(mentions, At(id, name))
			text.WriteString("@" + name + "\u200b")
		case channel.MessagePartLink:
			label := part.Text
			if label == "" {
				label = part.URL
			}
			if msg.Format == channel.MessageFormatMarkdown && part.URL != "" {
				text.WriteString(fmt.Sprintf("[%s](%s)", label, part.URL))
			} else {
				text.WriteString(label)
			}
		default:
			text.WriteString(part.Text)
		}
	}
	out := mentions
	if text.Len() > 0 {
		out = append(out, formatSegment(msg.Format, text.String()))
	}
	if len(out) == 0 {
		return nil, ErrEmptyMessage
	}
	return out, nil
}

func formatSegment(format channel.MessageFormat, text string) Segment {
	switch format {
	case channel.MessageFormatMarkdown:
		return Markdown(text)
	case channel.MessageFormatRich:
		return HTML(text)
	default:
		return Text(text)
	}
}

func attachmentSegment(att channel.Attachment) (Segment, error) {
	key := strings.TrimSpace(att.PlatformKey)
	if att.SourcePlatform != "" && att.SourcePlatform != Type.String() {
		key = ""
	}
	switch att.Type {
	case channel.AttachmentImage:
		if key != "" {
			return Image(key), nil
		}
		if len(att.Data) > 0 {
			return ImageData(att.Data), nil
		}
	case channel.AttachmentVideo:
		if key != "" {
			return Video(key), nil
		}
		if len(att.Data) > 0 {
			return VideoData(att.Data), nil
		}
	default:
		if key != "" {
			return File(key), nil
		}
		if len(att.Data) > 0 {
			return FileData(att.Data), nil
		}
	}
	return Segment{}, fmt.Errorf("yunhu %s attachment needs a platform key or data", att.Type)
}

func mergeNicknames(shared, own []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(shared)+len(own))
	for _, list := range [][]string{own, shared} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
