package tui

import (
	"strings"
	"testing"

	"friendchat/internal/service"
)

func TestRenderWelcome(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		selected string
		want     string
	}{
		{"no friends", 0, "", "/add <name>"},
		{"none selected", 2, "", "none selected"},
		{"selected", 2, "Alice", "chatting with Alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderWelcome("1.0.0", "https://example.com/v1/chat/completions", tt.count, tt.selected)
			if !strings.Contains(out, "friendchat") || !strings.Contains(out, tt.want) {
				t.Errorf("welcome missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestRenderFriendList(t *testing.T) {
	if out := renderFriendList(nil); !strings.Contains(out, "No friends yet") {
		t.Errorf("empty list = %q", out)
	}

	rows := service.FormatFriendRows([]service.Friend{
		{ID: 1, Name: "Alice", IsPinned: true, ModelName: "m1", APIID: "a1", Description: "pinned one"},
		{ID: 2, Name: "Bob", ModelName: "m2", APIID: "a2", Description: "A new friend"},
	}, 2)
	out := renderFriendList(rows)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "📌") || !strings.Contains(lines[0], "Alice") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "▸") || !strings.Contains(lines[1], "m2 · a2") {
		t.Errorf("selected line = %q", lines[1])
	}
}

func TestRenderReply(t *testing.T) {
	msg := service.ChatMessage{Content: "**Hi** there", ReasoningContent: "user said hi\n"}
	out := renderReply("Alice", msg, 80)
	for _, want := range []string{"Alice", "thinking", "user said hi", "Hi", "there"} {
		if !strings.Contains(out, want) {
			t.Errorf("reply missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "failed") {
		t.Errorf("successful reply shows failure:\n%s", out)
	}
}

func TestRenderReplyOnlyFailure(t *testing.T) {
	out := renderReply("Bob", service.ChatMessage{Content: service.FailureMarker}, 80)
	if !strings.Contains(out, "message failed to send") {
		t.Errorf("reply = %q", out)
	}
}

func TestRenderLive(t *testing.T) {
	thinking := renderLive("Alice", service.ChatMessage{ReasoningContent: "a\nb\nc\nd", IsStreaming: true}, 2)
	if !strings.Contains(thinking, "Alice is thinking") || strings.Contains(thinking, "a\n") || !strings.Contains(thinking, "d") {
		t.Errorf("thinking view = %q", thinking)
	}

	answer := renderLive("Alice", service.ChatMessage{ReasoningContent: "r", Content: "one\ntwo\nthree", IsStreaming: true}, 2)
	if strings.Contains(answer, "one") || !strings.Contains(answer, "three") {
		t.Errorf("answer view = %q", answer)
	}

	if out := renderLive("Alice", service.ChatMessage{IsStreaming: true}, 5); out != "" {
		t.Errorf("empty reply view = %q", out)
	}
}

func TestRenderTabs(t *testing.T) {
	out := renderTabs(&Navigation{ChatActive: true})
	if !strings.Contains(out, "Chat") || !strings.Contains(out, "API") {
		t.Errorf("tabs = %q", out)
	}
}

func TestRenderAPIPanel(t *testing.T) {
	out := renderAPIPanel("https://x", []string{"a", "b"}, "b")
	if !strings.Contains(out, "https://x") || !strings.Contains(out, "* b") || !strings.Contains(out, "  a") {
		t.Errorf("panel = %q", out)
	}
	if out := renderAPIPanel("https://x", nil, ""); !strings.Contains(out, "No API keys") {
		t.Errorf("empty panel = %q", out)
	}
}

func TestMenuItems(t *testing.T) {
	if got := menuItems(false)[0].label; got != "Pin" {
		t.Errorf("unpinned first item = %q", got)
	}
	if got := menuItems(true)[0].label; got != "Unpin" {
		t.Errorf("pinned first item = %q", got)
	}
}

func TestIndentText(t *testing.T) {
	if got := indentText("a\nb", "  "); got != "  a\n  b" {
		t.Errorf("indentText = %q", got)
	}
}
