package yunhu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"testing"
)

type uploadCall struct {
	kind MediaKind
	raw  []byte
}

type recallCall struct {
	messageID, chatID, chatType string
}

// fakeAPI records calls and answers from canned values.
type fakeAPI struct {
	mu sync.Mutex

	info       BotInfo
	infoErr    error
	messages   map[string]json.RawMessage
	messageErr error
	history    []json.RawMessage
	sendErr    error
	uploadErr  error

	sends     []SendRequest
	edits     []EditRequest
	recalls   []recallCall
	uploads   []uploadCall
	lookups   []string
	infoCalls []string
}

func (f *fakeAPI) GetBotInfo(ctx context.Context, botID string) (BotInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls = append(f.infoCalls, botID)
	if f.infoErr != nil {
		return BotInfo{}, f.infoErr
	}
	return f.info, nil
}

func (f *fakeAPI) GetMessage(ctx context.Context, messageID, chatID, chatType string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, messageID)
	if f.messageErr != nil {
		return nil, f.messageErr
	}
	raw, ok := f.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s not found", messageID)
	}
	return raw, nil
}

func (f *fakeAPI) GetMessages(ctx context.Context, chatID, chatType string, params url.Values) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeAPI) Upload(ctx context.Context, kind MediaKind, raw []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, uploadCall{kind: kind, raw: raw})
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return fmt.Sprintf("k%d", len(f.uploads)), nil
}

func (f *fakeAPI) Send(ctx context.Context, req SendRequest) (MessageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, req)
	if f.sendErr != nil {
		return MessageInfo{}, f.sendErr
	}
	return MessageInfo{MsgID: fmt.Sprintf("sent-%d", len(f.sends)), RecvID: req.RecvID, RecvType: req.RecvType}, nil
}

func (f *fakeAPI) Edit(ctx context.Context, req EditRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, req)
	return nil
}

func (f *fakeAPI) Recall(ctx context.Context, messageID, chatID, chatType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recalls = append(f.recalls, recallCall{messageID: messageID, chatID: chatID, chatType: chatType})
	return nil
}

func (f *fakeAPI) FileURL(key string) string {
	return "https://files.test/" + key
}

func (f *fakeAPI) sent() []SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SendRequest(nil), f.sends...)
}

func newTestBot(api *fakeAPI, nicknames ...string) *Bot {
	return NewBot(nil, Config{AppID: "bot1", Token: "tok", Nicknames: nicknames}, BotInfo{BotID: "bot1", Nickname: "Helper"}, api)
}

const groupTextEvent = `{
  "version": "1.0",
  "header": {"eventId": "e1", "eventTime": 1700000000000, "eventType": "message.receive.normal"},
  "event": {
    "sender": {"senderId": "u9", "senderType": "user", "senderUserLevel": "member", "senderNickname": "Bob"},
    "chat": {"chatId": "g1", "chatType": "group"},
    "message": {
      "msgId": "m1",
      "sendTime": 1700000000000,
      "chatId": "g1",
      "chatType": "group",
      "contentType": "text",
      "content": {"text": "@Alice\u200b hi", "at": ["u1"]}
    }
  }
}`

func messageEventJSON(eventType, chatType, contentType, content string) []byte {
	return []byte(fmt.Sprintf(`{
  "version": "1.0",
  "header": {"eventId": "e1", "eventTime": 1700000000000, "eventType": %q},
  "event": {
    "sender": {"senderId": "u9", "senderType": "user", "senderUserLevel": "member", "senderNickname": "Bob"},
    "chat": {"chatId": "c1", "chatType": %q},
    "message": {"msgId": "m1", "sendTime": 1, "chatId": "c1", "chatType": %q, "contentType": %q, "content": %s}
  }
}`, eventType, chatType, chatType, contentType, content))
}

func mustParseMessageEvent(t testing.TB, raw []byte) *MessageEvent {
	t.Helper()
	ev, err := NewDefaultEventTypeRegistry(nil).ParseEvent(raw)
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	msgEvent, ok := ev.(*MessageEvent)
	if !ok {
		t.Fatalf("expected *MessageEvent, got %T", ev)
	}
	return msgEvent
}
