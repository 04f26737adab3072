package yunhu

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// EventVariant is a named decoder for one event type.
type EventVariant struct {
	Name  string
	Parse func(raw []byte) (Event, error)
}

type trieNode struct {
	children map[string]*trieNode
	variants []EventVariant
}

// EventTypeRegistry maps dot-separated event types to variants and resolves
// a concrete type to every registered prefix, most specific first. It is
// built once at startup and read-only afterwards.
type EventTypeRegistry struct {
	logger *slog.Logger
	root   *trieNode
}

// NewEventTypeRegistry returns an empty registry.
func NewEventTypeRegistry(log *slog.Logger) *EventTypeRegistry {
	if log == nil {
		log = slog.Default()
	}
	return &EventTypeRegistry{
		logger: log.With(slog.String("component", "yunhu_event_registry")),
		root:   &trieNode{},
	}
}

// NewDefaultEventTypeRegistry returns a registry holding every known event type.
func NewDefaultEventTypeRegistry(log *slog.Logger) *EventTypeRegistry {
	r := NewEventTypeRegistry(log)
	for _, entry := range defaultEventTable {
		r.Register(entry.eventType, entry.variant)
	}
	return r
}

var defaultEventTable = []struct {
	eventType string
	variant   EventVariant
}{
	{"message", EventVariant{Name: "message", Parse: parseMessageEvent(MessageNormal)}},
	{"message.receive.normal", EventVariant{Name: "message", Parse: parseMessageEvent(MessageNormal)}},
	{"message.receive.normal.group", EventVariant{Name: "group_message", Parse: parseMessageEvent(MessageGroup)}},
	{"message.receive.normal.bot", EventVariant{Name: "private_message", Parse: parseMessageEvent(MessagePrivate)}},
	{"message.receive.instruction", EventVariant{Name: "instruction_message", Parse: parseMessageEvent(MessageInstruction)}},
	{"group.join", EventVariant{Name: "group_join_notice", Parse: parseGroupNotice}},
	{"group.leave", EventVariant{Name: "group_leave_notice", Parse: parseGroupNotice}},
	{"bot.followed", EventVariant{Name: "bot_followed_notice", Parse: parseBotNotice}},
	{"bot.unfollowed", EventVariant{Name: "bot_unfollowed_notice", Parse: parseBotNotice}},
}

func splitEventType(eventType string) []string {
	eventType = strings.Trim(strings.TrimSpace(eventType), ".")
	if eventType == "" {
		return nil
	}
	return strings.Split(eventType, ".")
}

// Register adds a variant under eventType. Several variants may share a type;
// they are tried in registration order.
func (r *EventTypeRegistry) Register(eventType string, variant EventVariant) {
	node := r.root
	for _, seg := range splitEventType(eventType) {
		if node.children == nil {
			node.children = map[string]*trieNode{}
		}
		child, ok := node.children[seg]
		if !ok {
			child = &trieNode{}
			node.children[seg] = child
		}
		node = child
	}
	node.variants = append(node.variants, variant)
}

// Resolve returns the variants registered under every segment-wise prefix of
// eventType, longest prefix first. The base event is not included.
func (r *EventTypeRegistry) Resolve(eventType string) []EventVariant {
	var levels [][]EventVariant
	node := r.root
	for _, seg := range splitEventType(eventType) {
		child, ok := node.children[seg]
		if !ok {
			break
		}
		node = child
		if len(node.variants) > 0 {
			levels = append(levels, node.variants)
		}
	}
	out := make([]EventVariant, 0, len(levels))
	for i := len(levels) - 1; i >= 0; i-- {
		out = append(out, levels[i]...)
	}
	return out
}

type eventEnvelope struct {
	Header Header `json:"header"`
	Event  struct {
		Message *struct {
			ChatType string `json:"chatType"`
		} `json:"message"`
	} `json:"event"`
}

// EventTypeOf returns the lookup key for a delivery: the header event type,
// suffixed with ".<chatType>" when the payload carries a message.
func EventTypeOf(raw []byte) (string, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	eventType := env.Header.EventType
	if env.Event.Message != nil && env.Event.Message.ChatType != "" {
		eventType += "." + env.Event.Message.ChatType
	}
	return eventType, nil
}

// ParseEvent decodes a webhook body. Candidates are tried most specific
// first; when all of them reject the payload it is decoded as a BaseEvent.
func (r *EventTypeRegistry) ParseEvent(raw []byte) (Event, error) {
	eventType, err := EventTypeOf(raw)
	if err != nil {
		return nil, &ParseError{Variant: "event", Err: err}
	}
	for _, variant := range r.Resolve(eventType) {
		ev, err := variant.Parse(raw)
		if err == nil {
			return ev, nil
		}
		r.logger.Debug("event variant rejected payload",
			slog.String("event_type", eventType),
			slog.String("variant", variant.Name),
			slog.Any("error", err),
		)
	}
	ev, err := parseBaseEvent(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %q as base event: %w", eventType, err)
	}
	return ev, nil
}
