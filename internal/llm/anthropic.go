package llm

import (
	"context"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/Aimaiyabot/ai-maiya/internal/apperr"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
)

// Anthropic is an alternate ChatModel. It has no image endpoint.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

func NewAnthropic(apiKey, baseURL, model string) *Anthropic {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	return &Anthropic{client: anthropic.NewClient(apiKey, opts...), model: model}
}

func (a *Anthropic) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := req.Temperature

	r := anthropic.MessagesRequest{
		Model:       anthropic.Model(a.model),
		Messages:    toAnthropicMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
	if req.System != "" {
		r.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: req.System}}
	}

	resp, err := a.client.CreateMessages(ctx, r)
	if err != nil {
		return "", apperr.Upstream("chat completion", err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			b.WriteString(*block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", apperr.Upstream("chat completion", ErrEmptyResponse)
	}
	return text, nil
}

// toAnthropicMessages folds consecutive same-role turns together and drops
// leading assistant turns; the Messages API needs strict alternation
// starting with the user.
func toAnthropicMessages(msgs []store.Message) []anthropic.Message {
	var out []anthropic.Message
	var roles []string
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := store.RoleAssistant
		if m.Role == store.RoleUser {
			role = store.RoleUser
		}
		if len(out) == 0 && role != store.RoleUser {
			continue
		}
		if n := len(out); n > 0 && roles[n-1] == role {
			out[n-1].Content = append(out[n-1].Content, anthropic.NewTextMessageContent(m.Content))
			continue
		}
		ar := anthropic.RoleAssistant
		if role == store.RoleUser {
			ar = anthropic.RoleUser
		}
		out = append(out, anthropic.Message{
			Role:    ar,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
		})
		roles = append(roles, role)
	}
	return out
}
