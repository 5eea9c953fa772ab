package service

import (
	"regexp"
	"strings"
)

// FailureMarker is appended to an assistant message whose request failed.
const FailureMarker = "\n\n[message failed to send]"

const codeFence = "```"

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// ChatMessage is one entry of the in-memory transcript.
type ChatMessage struct {
	ID               int64  `json:"id"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoningContent"`
	IsUser           bool   `json:"isUser"`
	Timestamp        int64  `json:"timestamp"`
	IsStreaming      bool   `json:"isStreaming"`
}

// FoldAnswer appends an answer fragment to transcript.
//
// A fragment carrying a code fence is appended verbatim and terminated with a
// newline, and the result is not collapsed. Otherwise a leading newline is
// dropped when the transcript already ends in one, and any run of three or
// more newlines is collapsed to a blank line.
func FoldAnswer(transcript, fragment string) string {
	if strings.Contains(fragment, codeFence) {
		out := transcript + fragment
		if !strings.HasSuffix(fragment, "\n") {
			out += "\n"
		}
		return out
	}

	if strings.HasSuffix(transcript, "\n") && strings.HasPrefix(fragment, "\n") {
		fragment = fragment[1:]
	}
	return blankRunRe.ReplaceAllString(transcript+fragment, "\n\n")
}

// FoldReasoning appends a reasoning fragment unchanged.
func FoldReasoning(transcript, fragment string) string {
	return transcript + fragment
}

// Preview returns the first line of s, cut to max runes.
func Preview(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if max > 0 && len(r) > max {
		return string(r[:max]) + "…"
	}
	return s
}
