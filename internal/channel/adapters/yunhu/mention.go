package yunhu

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"
)

// MentionResolver marks message events that address the bot, either by an
// @-mention of the bot or by a leading nickname, and strips that prefix.
type MentionResolver struct {
	logger   *slog.Logger
	selfID   string
	nickname *regexp.Regexp
}

// NewMentionResolver builds a resolver for the bot selfID. Blank nicknames are ignored.
func NewMentionResolver(log *slog.Logger, selfID string, nicknames []string) *MentionResolver {
	if log == nil {
		log = slog.Default()
	}
	return &MentionResolver{
		logger:   log.With(slog.String("component", "yunhu_mention")),
		selfID:   selfID,
		nickname: nicknamePattern(nicknames),
	}
}

// nicknamePattern matches a nickname at the start of the text followed by
// whitespace or commas. Longer nicknames are tried first.
func nicknamePattern(nicknames []string) *regexp.Regexp {
	seen := map[string]struct{}{}
	names := make([]string, 0, len(nicknames))
	for _, name := range nicknames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, regexp.QuoteMeta(name))
	}
	if len(names) == 0 {
		return nil
	}
	slices.SortStableFunc(names, func(a, b string) int { return len(b) - len(a) })
	return regexp.MustCompile(`(?i)^(` + strings.Join(names, "|") + `)[\s,，]*`)
}

// Resolve runs the at-me pass and then the nickname pass.
func (r *MentionResolver) Resolve(ev *MessageEvent) {
	r.ResolveAtMe(ev)
	r.ResolveNickname(ev)
}

// ResolveAtMe sets ToMe when the bot is in the content's at list and removes
// the bot's at segments. The text segment before a removed mention loses one
// trailing space and the one after loses one leading space.
func (r *MentionResolver) ResolveAtMe(ev *MessageEvent) {
	if ev == nil || r.selfID == "" {
		return
	}
	content := ev.Detail.Message.Content
	if content == nil || !slices.Contains(content.Mentions(), r.selfID) {
		return
	}
	ev.ToMe = true

	msg := ev.Message
	for i := 0; i < len(msg); {
		seg := msg[i]
		if seg.Type != SegmentAt || seg.UserID() != r.selfID {
			i++
			continue
		}
		msg = slices.Delete(msg, i, i+1)
		if i > 0 && msg[i-1].Type == SegmentText {
			msg[i-1] = withText(msg[i-1], strings.TrimSuffix(msg[i-1].TextValue(), " "))
		}
		if i < len(msg) && msg[i].Type == SegmentText {
			msg[i] = withText(msg[i], strings.TrimPrefix(msg[i].TextValue(), " "))
		}
	}
	ev.Message = msg
}

// ResolveNickname sets ToMe when the first segment is text that starts with
// a configured nickname, and strips the nickname and its separators.
func (r *MentionResolver) ResolveNickname(ev *MessageEvent) {
	if ev == nil || r.nickname == nil || len(ev.Message) == 0 {
		return
	}
	first := ev.Message[0]
	if first.Type != SegmentText {
		return
	}
	text := first.TextValue()
	loc := r.nickname.FindStringSubmatchIndex(text)
	if loc == nil {
		return
	}
	r.logger.Debug("user is calling bot by nickname", slog.String("nickname", text[loc[2]:loc[3]]))
	ev.ToMe = true
	ev.Message[0] = withText(first, text[loc[1]:])
}

func withText(seg Segment, text string) Segment {
	out := seg.Copy()
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	out.Data["text"] = text
	return out
}
