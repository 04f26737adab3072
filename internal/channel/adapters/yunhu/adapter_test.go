package yunhu

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/molanp/yunhu-adapter/internal/channel"
)

type fakeClientFactory struct {
	mu      sync.Mutex
	clients map[string]*fakeAPI
}

func (f *fakeClientFactory) client(token string) botClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	api, ok := f.clients[token]
	if !ok {
		api = &fakeAPI{}
		f.clients[token] = api
	}
	return api
}

func newTestAdapter(clients map[string]*fakeAPI) *YunhuAdapter {
	a := NewYunhuAdapter(nil, AdapterOptions{Nicknames: []string{"shared"}})
	factory := &fakeClientFactory{clients: clients}
	a.newClient = factory.client
	return a
}

func yunhuConfig(id, appID, token string) channel.ChannelConfig {
	return channel.ChannelConfig{
		ID:          id,
		ChannelType: Type,
		Credentials: map[string]any{"app_id": appID, "token": token},
	}
}

func TestAdapterStartSkipsBrokenBots(t *testing.T) {
	t.Parallel()

	clients := map[string]*fakeAPI{
		"tok-a": {info: BotInfo{BotID: "a", Nickname: "Alpha", Headcount: 3}},
		"tok-b": {infoErr: &ActionFailedError{Code: 1002, Msg: "bad token"}},
	}
	a := newTestAdapter(clients)
	disabled := yunhuConfig("d", "d", "tok-d")
	disabled.Disabled = true

	connected := a.Start(context.Background(), []channel.ChannelConfig{
		yunhuConfig("1", "a", "tok-a"),
		yunhuConfig("2", "b", "tok-b"),
		yunhuConfig("3", "", "tok-c"),
		disabled,
	})
	if connected != 1 {
		t.Fatalf("connected = %d, want 1", connected)
	}
	bots := a.Dispatcher().Bots()
	bot, ok := bots.Get("a")
	if !ok {
		t.Fatalf("bot a should be registered")
	}
	if bot.Nickname() != "Alpha" {
		t.Fatalf("unexpected nickname %q", bot.Nickname())
	}
	if !reflect.DeepEqual(bot.config.Nicknames, []string{"shared"}) {
		t.Fatalf("shared nicknames not applied: %v", bot.config.Nicknames)
	}
	if cfg, ok := a.LookupConfig(" a "); !ok || cfg.BotID != "a" {
		t.Fatalf("unexpected lookup: %#v %v", cfg, ok)
	}
	if _, ok := a.LookupConfig("b"); ok {
		t.Fatalf("bot b must not be found")
	}
	if _, ok := bots.Get("b"); ok {
		t.Fatalf("bot b failed to fetch info and must be skipped")
	}
	if len(bots.List()) != 1 {
		t.Fatalf("unexpected bots: %d", len(bots.List()))
	}
}

func TestAdapterSendTextAndAttachments(t *testing.T) {
	t.Parallel()

	clients := map[string]*fakeAPI{"tok-a": {info: BotInfo{BotID: "a"}}}
	a := newTestAdapter(clients)
	cfg := yunhuConfig("1", "a", "tok-a")
	a.Start(context.Background(), []channel.ChannelConfig{cfg})

	err := a.Send(context.Background(), cfg, channel.OutboundMessage{
		Target: "group:g1",
		Message: channel.Message{
			Format: channel.MessageFormatMarkdown,
			Parts: []channel.MessagePart{
				{Type: channel.MessagePartMention, Text: "@Bob", ChannelIdentityID: "u9"},
				{Type: channel.MessagePartText, Text: " see "},
				{Type: channel.MessagePartLink, Text: "docs", URL: "https://docs.test"},
			},
			Attachments: []channel.Attachment{
				{Type: channel.AttachmentImage, PlatformKey: "img1", SourcePlatform: "yunhu"},
				{Type: channel.AttachmentFile, Data: []byte("%PDF-1.4")},
			},
			Reply: &channel.ReplyRef{MessageID: "m1"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	api := clients["tok-a"]
	sends := api.sent()
	if len(sends) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(sends))
	}
	if sends[0].ContentType != "image" || sends[0].Content["imageKey"] != "img1" || sends[0].ParentID != "m1" {
		t.Fatalf("unexpected first send: %#v", sends[0])
	}
	if sends[1].ContentType != "file" || sends[1].Content["fileKey"] != "k1" || sends[1].ParentID != "" {
		t.Fatalf("unexpected second send: %#v", sends[1])
	}
	last := sends[2]
	if last.ContentType != "markdown" || last.RecvID != "g1" || last.RecvType != "group" {
		t.Fatalf("unexpected text send: %#v", last)
	}
	if !reflect.DeepEqual(last.Content["at"], []string{"u9"}) {
		t.Fatalf("unexpected mentions: %#v", last.Content["at"])
	}
	if last.Content["text"] != "@Bob\u200b see [docs](https://docs.test)" {
		t.Fatalf("unexpected text: %#v", last.Content["text"])
	}
}

func TestAdapterSendErrors(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(map[string]*fakeAPI{})
	cfg := yunhuConfig("1", "a", "tok-a")

	err := a.Send(context.Background(), cfg, channel.OutboundMessage{Target: "", Message: channel.Message{Text: "x"}})
	if err == nil {
		t.Fatalf("expected target error")
	}
	err = a.Send(context.Background(), cfg, channel.OutboundMessage{Target: "user:u1"})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	err = a.Send(context.Background(), cfg, channel.OutboundMessage{
		Target:  "user:u1",
		Message: channel.Message{Attachments: []channel.Attachment{{Type: channel.AttachmentVideo, URL: "https://x.test/v.mp4"}}},
	})
	if err == nil {
		t.Fatalf("expected error for attachment without key or data")
	}
	err = a.Send(context.Background(), channel.ChannelConfig{Credentials: map[string]any{}}, channel.OutboundMessage{Target: "user:u1", Message: channel.Message{Text: "x"}})
	if err == nil {
		t.Fatalf("expected config error")
	}
}

func TestAdapterSendWithoutStartUsesCredentials(t *testing.T) {
	t.Parallel()

	clients := map[string]*fakeAPI{}
	a := newTestAdapter(clients)
	cfg := yunhuConfig("1", "a", "tok-a")
	if err := a.Send(context.Background(), cfg, channel.OutboundMessage{Target: "u1", Message: channel.Message{Text: "hello"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sends := clients["tok-a"].sent()
	if len(sends) != 1 || sends[0].RecvType != "user" || sends[0].Content["text"] != "hello" {
		t.Fatalf("unexpected sends: %#v", sends)
	}
}

func TestAdapterUpdateAndUnsend(t *testing.T) {
	t.Parallel()

	clients := map[string]*fakeAPI{}
	a := newTestAdapter(clients)
	cfg := yunhuConfig("1", "a", "tok-a")

	if err := a.Update(context.Background(), cfg, "group:g1", "m1", channel.Message{Text: "fixed"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Unsend(context.Background(), cfg, "bot:u1", "m2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	api := clients["tok-a"]
	if len(api.edits) != 1 || api.edits[0].Content["text"] != "fixed" || api.edits[0].RecvType != "group" {
		t.Fatalf("unexpected edits: %#v", api.edits)
	}
	if len(api.recalls) != 1 || api.recalls[0] != (recallCall{messageID: "m2", chatID: "u1", chatType: "user"}) {
		t.Fatalf("unexpected recalls: %#v", api.recalls)
	}
}

func TestAdapterRegistersWithChannelRegistry(t *testing.T) {
	t.Parallel()

	registry := channel.NewRegistry()
	a := newTestAdapter(map[string]*fakeAPI{})
	registry.MustRegister(a)

	desc, ok := registry.GetDescriptor("YUNHU")
	if !ok || desc.DisplayName != "Yunhu" || !desc.Capabilities.Edit {
		t.Fatalf("unexpected descriptor: %#v", desc)
	}
	if _, ok := registry.GetMessageEditor(Type); !ok {
		t.Fatalf("adapter should support editing")
	}
	if err := registry.Send(context.Background(), yunhuConfig("1", "a", "tok-a"), channel.OutboundMessage{
		Target:  "user:u1",
		Message: channel.Message{Format: channel.MessageFormatPlain, Text: "via registry"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	normalized, err := registry.NormalizeConfig(Type, map[string]any{"app_id": " a ", "token": "t", "nickname": "x, y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"appId": "a", "token": "t", "nicknames": []string{"x", "y"}}
	if !reflect.DeepEqual(normalized, want) {
		t.Fatalf("got %#v, want %#v", normalized, want)
	}
}

func TestAdapterRegistrySplitsLongText(t *testing.T) {
	t.Parallel()

	clients := map[string]*fakeAPI{}
	a := NewYunhuAdapter(nil, AdapterOptions{TextChunkLimit: 6})
	a.newClient = (&fakeClientFactory{clients: clients}).client
	registry := channel.NewRegistry()
	registry.MustRegister(a)

	err := registry.Send(context.Background(), yunhuConfig("1", "a", "tok-a"), channel.OutboundMessage{
		Target: "group:g1",
		Message: channel.Message{
			Format: channel.MessageFormatMarkdown,
			Text:   "part 1\n\npart 2",
			Reply:  &channel.ReplyRef{MessageID: "m1"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sends := clients["tok-a"].sent()
	if len(sends) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sends))
	}
	if sends[0].Content["text"] != "part 1" || sends[0].ParentID != "m1" {
		t.Fatalf("unexpected first chunk: %#v", sends[0])
	}
	if sends[1].Content["text"] != "part 2" || sends[1].ParentID != "" || sends[1].ContentType != "markdown" {
		t.Fatalf("unexpected second chunk: %#v", sends[1])
	}
}

func TestParseTarget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in       string
		id, kind string
		wantErr  bool
	}{
		{in: "group:g1", id: "g1", kind: "group"},
		{in: "user:u1", id: "u1", kind: "user"},
		{in: "bot:u1", id: "u1", kind: "user"},
		{in: " u2 ", id: "u2", kind: "user"},
		{in: "chat:x", wantErr: true},
		{in: "group:", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		id, kind, err := parseTarget(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil || id != tc.id || kind != tc.kind {
			t.Fatalf("%q: got %q %q %v", tc.in, id, kind, err)
		}
	}
	if got := formatTarget("u1", "bot"); got != "user:u1" {
		t.Fatalf("formatTarget = %q", got)
	}
}
