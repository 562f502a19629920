// Package sanitize restricts model-generated mockup HTML to inert structural
// markup before it is stored or rendered.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
	strict     = bluemonday.StrictPolicy()

	// first ```html ... ``` block, wherever it starts
	fence = regexp.MustCompile("(?s)```[a-zA-Z]*[ \\t]*\\n?(.*?)\\n?```")
)

// Mockup returns a safe HTML fragment: structural and text tags with a
// limited set of inline styles; scripts, handlers, forms, iframes and
// external resources are removed.
func Mockup(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(mockupPolicy().Sanitize(s))
}

func mockupPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements(
			"div", "section", "article", "header", "footer", "main", "aside", "nav",
			"h1", "h2", "h3", "h4", "h5", "h6", "p", "span", "strong", "b", "em", "i", "u", "small",
			"ul", "ol", "li", "br", "hr", "blockquote",
			"table", "thead", "tbody", "tr", "th", "td",
		)
		p.AllowAttrs("class").Globally()
		p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
		p.AllowStyles(
			"color", "background-color", "font-size", "font-weight", "font-family", "font-style",
			"text-align", "text-decoration", "line-height", "letter-spacing",
			"margin", "margin-top", "margin-bottom", "margin-left", "margin-right",
			"padding", "padding-top", "padding-bottom", "padding-left", "padding-right",
			"border", "border-radius", "border-color", "border-width", "border-style",
			"display", "flex", "flex-direction", "flex-wrap", "justify-content", "align-items", "gap",
			"grid-template-columns", "width", "max-width", "min-width", "height", "box-shadow",
		).Globally()
		policy = p
	})
	return policy
}

// PlainText drops every tag and keeps the text, for indexing and transcripts.
func PlainText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(strict.Sanitize(s))), " ")
}
