package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Set is one loaded prompt configuration.
type Set struct {
	Persona struct {
		System      string  `yaml:"system"`
		Temperature float32 `yaml:"temperature"`
	} `yaml:"persona"`
	Image struct {
		Prompt string `yaml:"prompt"`
		Size   string `yaml:"size"`
	} `yaml:"image"`
	Mockup struct {
		Prompt      string  `yaml:"prompt"`
		Temperature float32 `yaml:"temperature"`
	} `yaml:"mockup"`
	Summary struct {
		System      string  `yaml:"system"`
		Prompt      string  `yaml:"prompt"`
		Temperature float32 `yaml:"temperature"`
	} `yaml:"summary"`
	Keywords Keywords `yaml:"keywords"`
	Messages Messages `yaml:"messages"`

	persona *template.Template
	image   *template.Template
	mockup  *template.Template
	summary *template.Template
}

// Keywords are the two independently configurable routing lists.
type Keywords struct {
	Mockup        []string `yaml:"mockup"`
	ImageFallback []string `yaml:"image_fallback"`
}

// Messages are the fixed in-character literals.
type Messages struct {
	ImageDetails   string `yaml:"image_details"`
	ImageFallback  string `yaml:"image_fallback"`
	Apology        string `yaml:"apology"`
	ChatApology    string `yaml:"chat_apology"`
	PromptTooShort string `yaml:"prompt_too_short"`
	ImageFailed    string `yaml:"image_failed"`
	MockupFailed   string `yaml:"mockup_failed"`
}

// Default returns the embedded prompt set.
func Default() *Set {
	s, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("prompts: embedded default is invalid: %v", err))
	}
	return s
}

// Parse decodes YAML on top of the embedded defaults, so an override file
// only needs the keys it changes.
func Parse(b []byte) (*Set, error) {
	var s Set
	if !bytes.Equal(b, defaultYAML) {
		if err := yaml.Unmarshal(defaultYAML, &s); err != nil {
			return nil, fmt.Errorf("decode default prompts: %w", err)
		}
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a prompt set from disk.
func LoadFile(path string) (*Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func (s *Set) compile() error {
	var err error
	if s.persona, err = template.New("persona").Parse(s.Persona.System); err != nil {
		return fmt.Errorf("persona template: %w", err)
	}
	if s.image, err = template.New("image").Parse(s.Image.Prompt); err != nil {
		return fmt.Errorf("image template: %w", err)
	}
	if s.mockup, err = template.New("mockup").Parse(s.Mockup.Prompt); err != nil {
		return fmt.Errorf("mockup template: %w", err)
	}
	if s.summary, err = template.New("summary").Parse(s.Summary.Prompt); err != nil {
		return fmt.Errorf("summary template: %w", err)
	}
	if len(s.Keywords.Mockup) == 0 || len(s.Keywords.ImageFallback) == 0 {
		return fmt.Errorf("keyword lists must not be empty")
	}
	return nil
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

// PersonaPrompt renders the system prompt for a user's name and niche.
func (s *Set) PersonaPrompt(name, niche string) (string, error) {
	return render(s.persona, struct{ Name, Niche string }{strings.TrimSpace(name), strings.TrimSpace(niche)})
}

// ImagePrompt wraps a raw description in the image style template.
func (s *Set) ImagePrompt(description string) (string, error) {
	return render(s.image, struct{ Prompt string }{description})
}

// MockupPrompt embeds a description in the HTML mockup instructions.
func (s *Set) MockupPrompt(description string) (string, error) {
	return render(s.mockup, struct{ Prompt string }{description})
}

// SummaryPrompt wraps a rendered transcript.
func (s *Set) SummaryPrompt(transcript string) (string, error) {
	return render(s.summary, struct{ Transcript string }{transcript})
}

// Store holds the active prompt set and swaps it atomically on reload.
type Store struct {
	path string
	cur  atomic.Pointer[Set]
}

// NewStore loads path, or the embedded defaults when path is empty.
func NewStore(path string) (*Store, error) {
	st := &Store{path: path}
	if path == "" {
		st.cur.Store(Default())
		return st, nil
	}
	s, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load prompts %s: %w", path, err)
	}
	st.cur.Store(s)
	return st, nil
}

// Static wraps a fixed set, mostly for tests.
func Static(s *Set) *Store {
	st := &Store{}
	st.cur.Store(s)
	return st
}

// Current returns the active set. Callers should not hold it across turns.
func (st *Store) Current() *Set {
	return st.cur.Load()
}

// Reload re-reads the file; the previous set stays active on error.
func (st *Store) Reload() error {
	if st.path == "" {
		return nil
	}
	s, err := LoadFile(st.path)
	if err != nil {
		return err
	}
	st.cur.Store(s)
	return nil
}
