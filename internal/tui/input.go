package tui

import "strings"

// MessageInput is the chat composer's submit guard.
type MessageInput struct {
	Text   string
	onSend func(string)
}

func NewMessageInput(onSend func(string)) *MessageInput {
	return &MessageInput{onSend: onSend}
}

// HandleKey submits on a bare Enter. The untrimmed text is sent and the
// input cleared; whitespace-only text changes nothing. It reports whether a
// message was sent.
func (mi *MessageInput) HandleKey(key string, shift bool) bool {
	if key != "enter" || shift {
		return false
	}
	if strings.TrimSpace(mi.Text) == "" {
		return false
	}
	text := mi.Text
	mi.Text = ""
	if mi.onSend != nil {
		mi.onSend(text)
	}
	return true
}
