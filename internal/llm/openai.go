package llm

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Aimaiyabot/ai-maiya/internal/apperr"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
)

// OpenAI serves both chat completions and image generation.
type OpenAI struct {
	client     *openai.Client
	model      string
	imageModel string
}

func NewOpenAI(apiKey, baseURL, model, imageModel string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAI{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		imageModel: imageModel,
	}
}

func (o *OpenAI) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, convertMessages(req.Messages)...)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages:    msgs,
	})
	if err != nil {
		return "", apperr.Upstream("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.Upstream("chat completion", ErrEmptyResponse)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", apperr.Upstream("chat completion", ErrEmptyResponse)
	}
	return text, nil
}

func (o *OpenAI) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	size := req.Size
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          o.imageModel,
		N:              1,
		Size:           size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", apperr.Upstream("image generation", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", apperr.Upstream("image generation", ErrEmptyResponse)
	}
	return resp.Data[0].URL, nil
}

func convertMessages(msgs []store.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := openai.ChatMessageRoleAssistant
		if m.Role == store.RoleUser {
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
