package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"friendchat/internal/api"
	"friendchat/internal/logging"
)

var ErrEmptyMessage = errors.New("message is empty")

// CredentialFunc maps a friend's API id to the bearer credential.
type CredentialFunc func(apiID string) string

// ChatOptions configures a Chat session.
type ChatOptions struct {
	Credential CredentialFunc
	Logger     *slog.Logger
	Now        func() time.Time
}

// Chat is one in-memory conversation. Sends may overlap; each one streams
// into its own assistant message.
type Chat struct {
	client     api.ChatAPI
	credential CredentialFunc
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.Mutex
	messages  []*ChatMessage
	inFlight  int
	lastID    int64
	observers []func()
}

func NewChat(client api.ChatAPI, opts ChatOptions) *Chat {
	c := &Chat{
		client:     client,
		credential: opts.Credential,
		logger:     logging.OrDiscard(opts.Logger),
		now:        opts.Now,
	}
	if c.credential == nil {
		c.credential = func(apiID string) string { return apiID }
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// OnChange registers fn to run after every change to the transcript or the
// loading state. fn runs without the session lock held.
func (c *Chat) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Messages returns a copy of the transcript.
func (c *Chat) Messages() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatMessage, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return out
}

// IsLoading reports whether any send is still streaming.
func (c *Chat) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// Clear empties the transcript. Sends still in flight keep streaming into
// their own messages, which are no longer listed.
func (c *Chat) Clear() {
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()
	c.notify()
}

// SendMessage appends text as a user message, streams the friend's reply into
// a new assistant message and returns the finished reply. Transport failures
// are recorded on the reply itself and are not returned.
func (c *Chat) SendMessage(ctx context.Context, friend Friend, text string) (ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return ChatMessage{}, ErrEmptyMessage
	}

	c.mu.Lock()
	user := c.newMessageLocked(text, true)
	c.messages = append(c.messages, user)
	reply := c.newMessageLocked("", false)
	reply.IsStreaming = true
	c.messages = append(c.messages, reply)
	c.inFlight++
	c.mu.Unlock()
	c.notify()

	logger := c.logger.With("friend", friend.Name, "model", friend.ModelName)
	logger.Debug("sending message", "length", len(text))

	sink := func(fragment string, reasoning bool) {
		c.mu.Lock()
		if reasoning {
			reply.ReasoningContent = FoldReasoning(reply.ReasoningContent, fragment)
		} else {
			reply.Content = FoldAnswer(reply.Content, fragment)
		}
		c.mu.Unlock()
		c.notify()
	}

	start := c.now()
	_, err := c.client.StreamChat(ctx, api.ChatRequest{
		Message:    text,
		Model:      friend.ModelName,
		Credential: c.credential(friend.APIID),
	}, sink)

	c.mu.Lock()
	reply.IsStreaming = false
	if err != nil {
		reply.Content += FailureMarker
	}
	c.inFlight--
	final := *reply
	c.mu.Unlock()
	c.notify()

	if err != nil {
		logger.Error("message failed", "error", err)
	} else {
		logger.Info("message answered", "duration", c.now().Sub(start), "length", len(final.Content))
	}
	return final, nil
}

func (c *Chat) newMessageLocked(content string, isUser bool) *ChatMessage {
	ts := c.now().UnixMilli()
	id := ts
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return &ChatMessage{
		ID:        id,
		Content:   content,
		IsUser:    isUser,
		Timestamp: ts,
	}
}

func (c *Chat) notify() {
	c.mu.Lock()
	observers := append([]func(){}, c.observers...)
	c.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}
