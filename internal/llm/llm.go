// Package llm adapts the hosted chat-completion and image-generation APIs to
// two small interfaces the dispatcher depends on.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aimaiyabot/ai-maiya/internal/config"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
)

// ErrEmptyResponse is returned when an upstream answers 2xx with nothing usable.
var ErrEmptyResponse = errors.New("empty response")

const defaultMaxTokens = 1024

type CompletionRequest struct {
	System      string
	Messages    []store.Message
	Temperature float32
	MaxTokens   int
}

// ChatModel returns the first choice text for a completion request.
type ChatModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type ImageRequest struct {
	Prompt string
	Size   string
}

// ImageGenerator returns the URL of exactly one generated image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}

// New builds the chat model selected by LLM_PROVIDER. Images always go
// through OpenAI.
func New(cfg config.Config) (ChatModel, ImageGenerator, error) {
	images := NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, cfg.ImageModel)
	switch cfg.LLMProvider {
	case "", "openai":
		return images, images, nil
	case "anthropic":
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.AnthropicModel), images, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
