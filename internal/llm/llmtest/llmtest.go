// Package llmtest provides recording fakes for llm.ChatModel and
// llm.ImageGenerator.
package llmtest

import (
	"context"
	"sync"

	"github.com/Aimaiyabot/ai-maiya/internal/llm"
)

// Chat answers every request with Reply, or fails with Err.
type Chat struct {
	Reply string
	Err   error
	// Respond, when set, overrides Reply/Err.
	Respond func(llm.CompletionRequest) (string, error)

	mu    sync.Mutex
	calls []llm.CompletionRequest
}

func (c *Chat) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	respond := c.Respond
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if respond != nil {
		return respond(req)
	}
	return c.Reply, c.Err
}

func (c *Chat) Calls() []llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.CompletionRequest(nil), c.calls...)
}

// Images answers every request with URL, or fails with Err.
type Images struct {
	URL string
	Err error

	mu    sync.Mutex
	calls []llm.ImageRequest
}

func (i *Images) GenerateImage(ctx context.Context, req llm.ImageRequest) (string, error) {
	i.mu.Lock()
	i.calls = append(i.calls, req)
	i.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return i.URL, i.Err
}

func (i *Images) Calls() []llm.ImageRequest {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]llm.ImageRequest(nil), i.calls...)
}
