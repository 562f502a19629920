package intent

import "strings"

type Intent string

const (
	RequestImageDetails Intent = "request_image_details"
	RequestMockup       Intent = "request_mockup"
	RequestImage        Intent = "request_image"
	RequestChatReply    Intent = "request_chat_reply"
)

// Trigger is the phrase that starts the two-turn image flow.
const Trigger = "generate image"

// Classify decides what to do with one user turn. awaiting is the caller's
// pending image-description flag; the returned bool is the flag for the next
// turn. Text must already be trimmed and non-empty.
func Classify(text string, awaiting bool, mockupKeywords []string) (Intent, bool) {
	m := strings.ToLower(text)
	if strings.Contains(m, Trigger) {
		return RequestImageDetails, true
	}
	if awaiting {
		if ContainsAny(m, mockupKeywords) {
			return RequestMockup, false
		}
		return RequestImage, false
	}
	return RequestChatReply, false
}

// ContainsAny reports whether s contains any of needles, ignoring case.
func ContainsAny(s string, needles []string) bool {
	m := strings.ToLower(s)
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(m, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
