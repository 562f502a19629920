// Package dispatch turns a classified intent into exactly one outbound model
// or image call and normalizes the answer into a Result.
package dispatch

import (
	"context"
	"log"
	"strings"

	"github.com/Aimaiyabot/ai-maiya/internal/apperr"
	"github.com/Aimaiyabot/ai-maiya/internal/intent"
	"github.com/Aimaiyabot/ai-maiya/internal/llm"
	"github.com/Aimaiyabot/ai-maiya/internal/prompts"
	"github.com/Aimaiyabot/ai-maiya/internal/sanitize"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
)

// MinImagePromptLen is the shortest trimmed description sent for an image.
const MinImagePromptLen = 5

const mockupMaxTokens = 2048

type Dispatcher struct {
	chat    llm.ChatModel
	images  llm.ImageGenerator
	prompts *prompts.Store
}

func New(chat llm.ChatModel, images llm.ImageGenerator, p *prompts.Store) *Dispatcher {
	return &Dispatcher{chat: chat, images: images, prompts: p}
}

// Request is everything a single dispatch needs. History includes the
// current user message as its last element.
type Request struct {
	Intent  intent.Intent
	Text    string
	History []store.Message
	Profile *store.Profile
}

// Dispatch never returns an error: failures become an Apology.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	set := d.prompts.Current()

	switch req.Intent {
	case intent.RequestImageDetails:
		return Fallback{Text: set.Messages.ImageDetails}

	case intent.RequestImage:
		res, err := d.GenerateImage(ctx, req.Text)
		if err != nil {
			log.Printf("[dispatch] image generation failed: %v", err)
			return Apology{Text: set.Messages.Apology, Err: err}
		}
		return res

	case intent.RequestMockup:
		html, err := d.GenerateMockup(ctx, req.Text)
		if err != nil {
			log.Printf("[dispatch] mockup generation failed: %v", err)
			return Apology{Text: set.Messages.Apology, Err: err}
		}
		return MockupResult{HTML: html}

	case intent.RequestChatReply:
		var name, niche string
		if req.Profile != nil {
			name, niche = req.Profile.Name, req.Profile.Niche
		}
		text, err := d.Reply(ctx, req.History, name, niche)
		if err != nil {
			log.Printf("[dispatch] chat reply failed: %v", err)
			return Apology{Text: set.Messages.Apology, Err: err}
		}
		return ChatReply{Text: text}

	default:
		log.Printf("[dispatch] unknown intent %q", req.Intent)
		return Apology{Text: set.Messages.Apology}
	}
}

// Reply sends the history under the persona prompt and returns the first
// choice.
func (d *Dispatcher) Reply(ctx context.Context, history []store.Message, name, niche string) (string, error) {
	set := d.prompts.Current()
	system, err := set.PersonaPrompt(name, niche)
	if err != nil {
		return "", err
	}
	return d.chat.Complete(ctx, llm.CompletionRequest{
		System:      system,
		Messages:    history,
		Temperature: set.Persona.Temperature,
	})
}

// GenerateImage returns ImageResult, or Fallback when the description reads
// like layout content. Short descriptions are a ValidationError and never
// reach the image API.
func (d *Dispatcher) GenerateImage(ctx context.Context, description string) (Result, error) {
	set := d.prompts.Current()
	description = strings.TrimSpace(description)
	if len([]rune(description)) < MinImagePromptLen {
		return nil, apperr.Validation(set.Messages.PromptTooShort)
	}
	if intent.ContainsAny(description, set.Keywords.ImageFallback) {
		return Fallback{Text: set.Messages.ImageFallback}, nil
	}

	prompt, err := set.ImagePrompt(description)
	if err != nil {
		return nil, err
	}
	url, err := d.images.GenerateImage(ctx, llm.ImageRequest{Prompt: prompt, Size: set.Image.Size})
	if err != nil {
		return nil, err
	}
	return ImageResult{URL: url}, nil
}

// GenerateMockup asks the chat model for an HTML fragment and sanitizes it.
func (d *Dispatcher) GenerateMockup(ctx context.Context, description string) (string, error) {
	set := d.prompts.Current()
	prompt, err := set.MockupPrompt(strings.TrimSpace(description))
	if err != nil {
		return "", err
	}
	raw, err := d.chat.Complete(ctx, llm.CompletionRequest{
		Messages:    []store.Message{{Role: store.RoleUser, Content: prompt}},
		Temperature: set.Mockup.Temperature,
		MaxTokens:   mockupMaxTokens,
	})
	if err != nil {
		return "", err
	}
	html := sanitize.Mockup(raw)
	if html == "" {
		return "", apperr.Upstream("mockup generation", llm.ErrEmptyResponse)
	}
	return html, nil
}

// Summarize produces the rolling digest for a conversation.
func (d *Dispatcher) Summarize(ctx context.Context, msgs []store.Message) (string, error) {
	set := d.prompts.Current()
	prompt, err := set.SummaryPrompt(Transcript(msgs))
	if err != nil {
		return "", err
	}
	return d.chat.Complete(ctx, llm.CompletionRequest{
		System:      set.Summary.System,
		Messages:    []store.Message{{Role: store.RoleUser, Content: prompt}},
		Temperature: set.Summary.Temperature,
	})
}

// Transcript renders messages as "User: ..." / "Maiya: ..." lines.
func Transcript(msgs []store.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		if m.Role == store.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Maiya: ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}
