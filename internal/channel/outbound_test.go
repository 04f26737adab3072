package channel

import (
	"reflect"
	"strings"
	"testing"
)

func TestChunkText(t *testing.T) {
	t.Parallel()

	if got := ChunkText("  ", 10); got != nil {
		t.Fatalf("expected nil for blank text, got %v", got)
	}
	if got := ChunkText("short", 10); !reflect.DeepEqual(got, []string{"short"}) {
		t.Fatalf("unexpected chunks: %v", got)
	}
	got := ChunkText("one\ntwo\nthree", 7)
	if !reflect.DeepEqual(got, []string{"one\ntwo", "three"}) {
		t.Fatalf("unexpected chunks: %v", got)
	}
	got = ChunkText("你好世界你好", 4)
	if !reflect.DeepEqual(got, []string{"你好世界", "你好"}) {
		t.Fatalf("long lines must split by rune: %v", got)
	}
}

func TestChunkMarkdownText(t *testing.T) {
	t.Parallel()

	text := "# Title\n\nfirst paragraph\n\nsecond"
	got := ChunkMarkdownText(text, 25)
	if !reflect.DeepEqual(got, []string{"# Title\n\nfirst paragraph", "second"}) {
		t.Fatalf("unexpected chunks: %v", got)
	}
}

func TestBuildOutboundMessages(t *testing.T) {
	t.Parallel()

	reply := &ReplyRef{MessageID: "m1"}
	msg := OutboundMessage{Target: "group:g1", Message: Message{
		Format:      MessageFormatPlain,
		Text:        strings.Repeat("a", 4) + "\n" + strings.Repeat("b", 4),
		Attachments: []Attachment{{Type: AttachmentFile, PlatformKey: "f"}},
		Reply:       reply,
	}}
	out, err := BuildOutboundMessages(msg, OutboundPolicy{TextChunkLimit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected media plus two chunks, got %d", len(out))
	}
	if len(out[0].Message.Attachments) != 1 || out[0].Message.Reply != reply {
		t.Fatalf("first message should carry attachments and the reply: %+v", out[0])
	}
	if out[1].Message.Reply != nil || out[1].Message.Text != "aaaa" || out[2].Message.Text != "bbbb" {
		t.Fatalf("unexpected chunks: %+v", out[1:])
	}
	for _, item := range out {
		if item.Target != "group:g1" {
			t.Fatalf("target lost: %+v", item)
		}
	}

	unsplit, err := BuildOutboundMessages(msg, OutboundPolicy{})
	if err != nil || len(unsplit) != 1 {
		t.Fatalf("zero limit must not split: %v %v", unsplit, err)
	}
	if _, err := BuildOutboundMessages(OutboundMessage{}, OutboundPolicy{}); err == nil {
		t.Fatalf("expected empty message error")
	}
}

func TestValidateCapabilities(t *testing.T) {
	t.Parallel()

	textOnly := ChannelCapabilities{Text: true}
	cases := []struct {
		name string
		msg  Message
		ok   bool
	}{
		{name: "plain", msg: Message{Format: MessageFormatPlain, Text: "x"}, ok: true},
		{name: "markdown", msg: Message{Format: MessageFormatMarkdown, Text: "x"}},
		{name: "mention", msg: Message{Parts: []MessagePart{{Type: MessagePartMention, Text: "@a"}}}},
		{name: "file", msg: Message{Attachments: []Attachment{{Type: AttachmentFile}}}},
		{name: "reply", msg: Message{Text: "x", Reply: &ReplyRef{MessageID: "m"}}},
	}
	for _, tc := range cases {
		err := ValidateCapabilities(textOnly, tc.msg)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: unexpected result %v", tc.name, err)
		}
	}

	medialess := ChannelCapabilities{Text: true, Attachments: true}
	if err := ValidateCapabilities(medialess, Message{Attachments: []Attachment{{Type: AttachmentFile}}}); err != nil {
		t.Fatalf("files need no media capability: %v", err)
	}
	if err := ValidateCapabilities(medialess, Message{Attachments: []Attachment{{Type: AttachmentVideo}}}); err == nil {
		t.Fatalf("expected media error")
	}
}
