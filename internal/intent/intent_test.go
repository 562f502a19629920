package intent

import "testing"

var mockupKeywords = []string{"infographic", "branding", "journal", "ebook", "layout", "dashboard", "steps", "guide", "template"}

func TestClassifyChatReply(t *testing.T) {
	for _, text := range []string{
		"hi Maiya",
		"how do I grow my candle shop?",
		"give me an ebook outline", // mockup words only matter while awaiting
		"image generation tips",
	} {
		got, next := Classify(text, false, mockupKeywords)
		if got != RequestChatReply || next {
			t.Errorf("Classify(%q, false) = %s, %v; want chat reply, false", text, got, next)
		}
	}
}

func TestClassifyGenerateImageAnyCase(t *testing.T) {
	for _, text := range []string{"generate image", "Please GENERATE IMAGE", "can you Generate Image of a cat", "generate image template"} {
		for _, awaiting := range []bool{false, true} {
			got, next := Classify(text, awaiting, mockupKeywords)
			if got != RequestImageDetails || !next {
				t.Errorf("Classify(%q, %v) = %s, %v; want image details, true", text, awaiting, got, next)
			}
		}
	}
}

func TestClassifyAwaitingDescription(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"a cute cat", RequestImage},
		{"pastel candle flat lay", RequestImage},
		{"a template for my weekly planner", RequestMockup},
		{"Branding board for a bakery", RequestMockup},
		{"5 STEPS to launch", RequestMockup},
	}
	for _, tt := range tests {
		got, next := Classify(tt.text, true, mockupKeywords)
		if got != tt.want {
			t.Errorf("Classify(%q, true) = %s; want %s", tt.text, got, tt.want)
		}
		if next {
			t.Errorf("Classify(%q, true) must reset the flag", tt.text)
		}
	}
}

func TestFlagAppliesToNextTurnOnly(t *testing.T) {
	awaiting := false
	turns := []struct {
		text string
		want Intent
	}{
		{"generate image", RequestImageDetails},
		{"a cute cat", RequestImage},
		{"a cute cat", RequestChatReply},
	}
	for i, turn := range turns {
		var got Intent
		got, awaiting = Classify(turn.text, awaiting, mockupKeywords)
		if got != turn.want {
			t.Fatalf("turn %d: got %s, want %s", i, got, turn.want)
		}
	}
}

func TestContainsAny(t *testing.T) {
	if !ContainsAny("My Marketing Poster", []string{"poster"}) {
		t.Error("expected case-insensitive match")
	}
	if !ContainsAny("x", []string{"", "X"}) {
		t.Error("expected uppercase needle to match")
	}
	if ContainsAny("anything", nil) || ContainsAny("anything", []string{""}) {
		t.Error("empty needles must not match")
	}
}
