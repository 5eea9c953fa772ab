package tui

import (
	"context"
	"strings"

	"friendchat/internal/service"

	tea "github.com/charmbracelet/bubbletea"
)

// ─── Messages sent from the send goroutine to Bubble Tea ────────────────────

// chatUpdatedMsg signals that the transcript changed and the live area should
// be redrawn.
type chatUpdatedMsg struct{}

type replyDoneMsg struct {
	friend service.Friend
	reply  service.ChatMessage
	err    error
}

// ─── Send command ───────────────────────────────────────────────────────────
//
// SendMessage blocks until the stream ends, so it runs as a tea.Cmd on its own
// goroutine. Fragments reach the view through the chat's change hook, which
// feeds a one-slot channel read by waitForUpdate.

func sendMessage(ctx context.Context, chat *service.Chat, friend service.Friend, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := chat.SendMessage(ctx, friend, text)
		return replyDoneMsg{friend: friend, reply: reply, err: err}
	}
}

// notifyUpdates coalesces change notifications: one pending signal is enough
// for the next redraw to see the latest transcript.
func notifyUpdates(ch chan<- tea.Msg) func() {
	return func() {
		select {
		case ch <- chatUpdatedMsg{}:
		default:
		}
	}
}

// waitForUpdate reads the next change signal.
func waitForUpdate(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// ─── Live area ──────────────────────────────────────────────────────────────

// streamingReply returns the reply currently being streamed, if any.
func streamingReply(msgs []service.ChatMessage) (service.ChatMessage, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsStreaming {
			return msgs[i], true
		}
	}
	return service.ChatMessage{}, false
}

// tailLines keeps the last n lines of s.
func tailLines(s string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
