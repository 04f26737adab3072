package yunhu

import (
	"context"
	"encoding/json"
	"log/slog"
)

type messageFetcher interface {
	GetMessage(ctx context.Context, messageID, chatID, chatType string) (json.RawMessage, error)
}

// ReplyResolver attaches the parent message to events that reply to the bot.
type ReplyResolver struct {
	logger  *slog.Logger
	fetcher messageFetcher
	selfID  string
}

// NewReplyResolver builds a resolver that looks parents up through fetcher.
func NewReplyResolver(log *slog.Logger, fetcher messageFetcher, selfID string) *ReplyResolver {
	if log == nil {
		log = slog.Default()
	}
	return &ReplyResolver{
		logger:  log.With(slog.String("component", "yunhu_reply")),
		fetcher: fetcher,
		selfID:  selfID,
	}
}

// Resolve fetches the parent of ev when it has one. If the bot sent the
// parent, ev is marked ToMe and Reply is set. Failures are logged and leave
// ev unchanged.
func (r *ReplyResolver) Resolve(ctx context.Context, ev *MessageEvent) {
	if ev == nil || r.fetcher == nil {
		return
	}
	msg := ev.Detail.Message
	if msg.ParentID == "" || msg.ParentID == msg.MsgID {
		return
	}
	raw, err := r.fetcher.GetMessage(ctx, msg.ParentID, msg.ChatID, msg.ChatType)
	if err != nil {
		r.logger.Error("failed to get reply message",
			slog.String("parent_id", msg.ParentID),
			slog.String("chat_id", msg.ChatID),
			slog.Any("error", err),
		)
		return
	}
	reply, err := ParseReply(raw)
	if err != nil {
		r.logger.Error("failed to parse reply message",
			slog.String("parent_id", msg.ParentID),
			slog.Any("error", err),
		)
		return
	}
	if reply.SenderID != r.selfID {
		return
	}
	ev.ToMe = true
	ev.Reply = reply
}
