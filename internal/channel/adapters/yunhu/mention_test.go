package yunhu

import (
	"reflect"
	"testing"
)

func atMeEvent(text string, at ...string) *MessageEvent {
	content := TextContent{CommonContent: CommonContent{At: at}, Text: text}
	msg := Deserialize(content, "")
	ev := &MessageEvent{Message: msg, OriginalMessage: msg.Copy()}
	ev.Detail.Message.Content = content
	ev.Detail.Message.ContentType = ContentText
	return ev
}

func TestResolveAtMeRemovesBotMention(t *testing.T) {
	t.Parallel()

	r := NewMentionResolver(nil, "bot1", nil)
	ev := atMeEvent("hey @Helper\u200b  do it", "bot1")
	r.ResolveAtMe(ev)
	if !ev.ToMe {
		t.Fatalf("expected ToMe")
	}
	want := Message{Text("hey"), Text(" do it")}
	if !reflect.DeepEqual(ev.Message, want) {
		t.Fatalf("got %#v, want %#v", ev.Message, want)
	}
	if len(ev.OriginalMessage) != 3 {
		t.Fatalf("original message should be untouched: %#v", ev.OriginalMessage)
	}
}

func TestResolveAtMeKeepsOtherMentions(t *testing.T) {
	t.Parallel()

	r := NewMentionResolver(nil, "bot1", nil)
	ev := atMeEvent("@Helper\u200b ask @Alice\u200b", "bot1", "u1")
	r.ResolveAtMe(ev)
	want := Message{Text("ask "), At("u1", "Alice")}
	if !reflect.DeepEqual(ev.Message, want) {
		t.Fatalf("got %#v, want %#v", ev.Message, want)
	}
}

func TestResolveAtMeIgnoresOthers(t *testing.T) {
	t.Parallel()

	r := NewMentionResolver(nil, "bot1", nil)
	ev := atMeEvent("@Alice\u200b hi", "u1")
	r.ResolveAtMe(ev)
	if ev.ToMe {
		t.Fatalf("unexpected ToMe")
	}
	if len(ev.Message) != 2 {
		t.Fatalf("message changed: %#v", ev.Message)
	}
}

func TestResolveNickname(t *testing.T) {
	t.Parallel()

	r := NewMentionResolver(nil, "bot1", []string{"bot", "helper.v2"})
	cases := []struct {
		text   string
		toMe   bool
		remain string
	}{
		{"Bot, what time is it", true, "what time is it"},
		{"helper.v2，hi", true, "hi"},
		{"helperXv2 hi", false, "helperXv2 hi"},
		{"hello bot", false, "hello bot"},
	}
	for _, tc := range cases {
		ev := atMeEvent(tc.text)
		r.ResolveNickname(ev)
		if ev.ToMe != tc.toMe {
			t.Fatalf("%q: ToMe = %v, want %v", tc.text, ev.ToMe, tc.toMe)
		}
		if got := ev.Message[0].TextValue(); got != tc.remain {
			t.Fatalf("%q: remaining text %q, want %q", tc.text, got, tc.remain)
		}
	}
}

func TestResolveNicknamePrefersLongestName(t *testing.T) {
	t.Parallel()

	r := NewMentionResolver(nil, "bot1", []string{"bo", "bob"})
	ev := atMeEvent("bob hi")
	r.ResolveNickname(ev)
	if got := ev.Message[0].TextValue(); got != "hi" {
		t.Fatalf("remaining text %q", got)
	}
}

func TestResolveNicknameWithoutNames(t *testing.T) {
	t.Parallel()

	r := NewMentionResolver(nil, "bot1", nil)
	ev := atMeEvent("bot hi")
	r.Resolve(ev)
	if ev.ToMe {
		t.Fatalf("unexpected ToMe")
	}
}
