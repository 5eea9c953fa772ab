package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"friendchat/internal/logging"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "data: [DONE]"
)

// Sink receives one fragment per call. reasoning reports which channel the
// fragment belongs to.
type Sink func(text string, reasoning bool)

// StreamEvent is one decoded `data:` payload.
type StreamEvent struct {
	Choices []StreamChoice `json:"choices"`
}

type StreamChoice struct {
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

type Delta struct {
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// StreamResult summarises a consumed stream.
type StreamResult struct {
	Content   string
	Reasoning string
	Events    int // decoded data lines
	Skipped   int // data lines that failed to decode
}

// ReadStream consumes an SSE-style body to EOF and feeds every non-empty
// fragment to sink in arrival order, reasoning before answer within an event.
// Lines are reassembled across reads before decoding, so a JSON payload or a
// multi-byte rune split between reads arrives intact.
func ReadStream(ctx context.Context, r io.Reader, sink Sink, logger *slog.Logger) (*StreamResult, error) {
	logger = logging.OrDiscard(logger)
	br := bufio.NewReaderSize(r, 64*1024)
	res := &StreamResult{}
	var content, reasoning strings.Builder
	finish := func() {
		res.Content = content.String()
		res.Reasoning = reasoning.String()
	}

	for {
		if err := ctx.Err(); err != nil {
			finish()
			return res, err
		}

		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			finish()
			return res, fmt.Errorf("reading stream: %w", readErr)
		}

		if line != "" {
			ev, ok, err := parseLine(line)
			switch {
			case err != nil:
				res.Skipped++
				logger.Warn("skipping malformed stream event", "error", err, "line", truncate(line, 200))
			case ok:
				res.Events++
				if d, has := ev.delta(); has {
					if d.ReasoningContent != "" {
						reasoning.WriteString(d.ReasoningContent)
						sink(d.ReasoningContent, true)
					}
					if d.Content != "" {
						content.WriteString(d.Content)
						sink(d.Content, false)
					}
				}
				logger.Log(ctx, logging.LevelTrace, "stream event", "index", res.Events)
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	finish()
	return res, nil
}

// parseLine reports ok=false for lines that carry no event.
func parseLine(line string) (*StreamEvent, bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) || line == doneSentinel {
		return nil, false, nil
	}

	var ev StreamEvent
	if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &ev); err != nil {
		return nil, false, fmt.Errorf("decoding event: %w", err)
	}
	return &ev, true, nil
}

func (ev *StreamEvent) delta() (Delta, bool) {
	if len(ev.Choices) == 0 {
		return Delta{}, false
	}
	return ev.Choices[0].Delta, true
}

func truncate(s string, max int) string {
	s = strings.TrimRight(s, "\r\n")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
