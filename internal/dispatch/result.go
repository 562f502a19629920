package dispatch

import (
	"fmt"
	"html"
	"regexp"

	"github.com/Aimaiyabot/ai-maiya/internal/store"
)

// Result is the outcome of one dispatch. The set of implementations is
// closed: ChatReply, ImageResult, MockupResult, Fallback, Apology.
type Result interface {
	result()
}

type ChatReply struct {
	Text string
}

type ImageResult struct {
	URL string
}

// MockupResult holds already sanitized HTML.
type MockupResult struct {
	HTML string
}

// Fallback is a canned reply produced without any remote call.
type Fallback struct {
	Text string
}

// Apology replaces any failed remote call. Err is for logs only.
type Apology struct {
	Text string
	Err  error
}

func (ChatReply) result()    {}
func (ImageResult) result()  {}
func (MockupResult) result() {}
func (Fallback) result()     {}
func (Apology) result()      {}

// ToMessage maps every Result to the assistant message appended to the
// conversation.
func ToMessage(r Result) store.Message {
	var content string
	switch v := r.(type) {
	case ChatReply:
		content = v.Text
	case ImageResult:
		content = ImageMarker(v.URL)
	case MockupResult:
		content = v.HTML
	case Fallback:
		content = v.Text
	case Apology:
		content = v.Text
	default:
		panic(fmt.Sprintf("dispatch: unhandled result %T", r))
	}
	return store.Message{Role: store.RoleAssistant, Content: content}
}

// Kind names a result for API responses and logs.
func Kind(r Result) string {
	switch r.(type) {
	case ChatReply:
		return "chat"
	case ImageResult:
		return "image"
	case MockupResult:
		return "mockup"
	case Fallback:
		return "fallback"
	case Apology:
		return "apology"
	default:
		return "unknown"
	}
}

var imageMarkerRe = regexp.MustCompile(`<img src="([^"]+)" alt="Generated Image"`)

// ImageMarker embeds an image URL in message content the way the chat
// client renders it.
func ImageMarker(url string) string {
	return fmt.Sprintf(`<img src="%s" alt="Generated Image" class="rounded-md mt-2 max-w-xs shadow-lg" />`, html.EscapeString(url))
}

// ImageURL extracts the URL from content produced by ImageMarker.
func ImageURL(content string) (string, bool) {
	m := imageMarkerRe.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return html.UnescapeString(m[1]), true
}
