package api

import "context"

// ChatAPI defines the interface for the chat-completions client.
// *Client satisfies this interface. The chat service and tests can use mock implementations.
type ChatAPI interface {
	StreamChat(ctx context.Context, req ChatRequest, sink Sink) (*StreamResult, error)
}

var _ ChatAPI = (*Client)(nil)
