// Package chat runs one user turn end to end: persist the user message,
// classify, dispatch, persist the reply, then refresh the summary in the
// background.
package chat

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Aimaiyabot/ai-maiya/internal/apperr"
	"github.com/Aimaiyabot/ai-maiya/internal/dispatch"
	"github.com/Aimaiyabot/ai-maiya/internal/intent"
	"github.com/Aimaiyabot/ai-maiya/internal/prompts"
	"github.com/Aimaiyabot/ai-maiya/internal/search"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
)

// ConversationStore is the persistence the turn flow needs.
type ConversationStore interface {
	LoadConversation(ctx context.Context, userID, dateKey string) ([]store.Message, error)
	SaveConversation(ctx context.Context, userID, dateKey string, msgs []store.Message) error
	ListDateKeys(ctx context.Context, userID string) ([]string, error)
	ClearConversation(ctx context.Context, userID, dateKey string) error
	SaveSummary(ctx context.Context, userID, dateKey, summary string) error
	LoadSummary(ctx context.Context, userID, dateKey string) (string, error)
}

// Index is the optional history search index.
type Index interface {
	Put(userID, dateKey string, msgs []store.Message) error
	Remove(userID, dateKey string) error
	Search(ctx context.Context, userID, query string, limit int) ([]search.Result, error)
}

type Service struct {
	conv       ConversationStore
	pending    *store.MemoryStore
	dispatcher *dispatch.Dispatcher
	prompts    *prompts.Store
	index      Index

	summaryTimeout time.Duration
	now            func() time.Time
	locks          *keyLock
	background     sync.WaitGroup
}

type Options struct {
	Index          Index
	SummaryTimeout time.Duration
}

func NewService(conv ConversationStore, pending *store.MemoryStore, d *dispatch.Dispatcher, p *prompts.Store, opts Options) *Service {
	timeout := opts.SummaryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		conv:           conv,
		pending:        pending,
		dispatcher:     d,
		prompts:        p,
		index:          opts.Index,
		summaryTimeout: timeout,
		now:            time.Now,
		locks:          newKeyLock(),
	}
}

type TurnInput struct {
	UserID string
	// SurfaceID identifies one open chat view (tab); the pending image
	// flag is scoped to it.
	SurfaceID string
	Text      string
	Profile   *store.Profile
}

type TurnResult struct {
	DateKey                  string          `json:"dateKey"`
	Reply                    store.Message   `json:"reply"`
	Messages                 []store.Message `json:"messages"`
	Intent                   intent.Intent   `json:"intent,omitempty"`
	Kind                     string          `json:"kind"`
	AwaitingImageDescription bool            `json:"awaitingImageDescription"`
	Saved                    bool            `json:"saved"`
}

// Turn handles one user message. The only error it returns is a
// ValidationError for empty text; every other failure becomes an apology
// reply.
func (s *Service) Turn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, apperr.Validation("message is required")
	}
	if in.UserID == "" {
		return nil, apperr.Validation("user is required")
	}
	set := s.prompts.Current()
	dateKey := store.DateKey(s.now())
	surface := store.SurfaceKey(in.UserID, in.SurfaceID)

	unlock := s.locks.Lock(in.UserID + "|" + dateKey)
	defer unlock()

	userMsg := store.Message{Role: store.RoleUser, Content: text}

	msgs, err := s.conv.LoadConversation(ctx, in.UserID, dateKey)
	if err != nil {
		// Never save over history that could not be read.
		log.Printf("[chat] load %s/%s failed: %v", in.UserID, dateKey, err)
		s.pending.SetAwaitingImage(surface, false)
		reply := dispatch.ToMessage(dispatch.Apology{Text: set.Messages.Apology, Err: err})
		return &TurnResult{
			DateKey:  dateKey,
			Reply:    reply,
			Messages: []store.Message{userMsg, reply},
			Kind:     "apology",
		}, nil
	}

	msgs = append(msgs, userMsg)
	firstSaveErr := s.conv.SaveConversation(ctx, in.UserID, dateKey, msgs)

	var (
		res  dispatch.Result
		kind intent.Intent
		next bool
	)
	if firstSaveErr != nil {
		log.Printf("[chat] save user message %s/%s failed: %v", in.UserID, dateKey, firstSaveErr)
		s.pending.SetAwaitingImage(surface, false)
		res = dispatch.Apology{Text: set.Messages.Apology, Err: firstSaveErr}
	} else {
		kind, next = intent.Classify(text, s.pending.AwaitingImage(surface), set.Keywords.Mockup)
		s.pending.SetAwaitingImage(surface, next)
		res = s.dispatcher.Dispatch(ctx, dispatch.Request{
			Intent:  kind,
			Text:    text,
			History: msgs,
			Profile: in.Profile,
		})
	}

	reply := dispatch.ToMessage(res)
	msgs = append(msgs, reply)

	// The reply is persisted even if the request was cancelled mid-call.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	saved := firstSaveErr == nil
	if err := s.conv.SaveConversation(saveCtx, in.UserID, dateKey, msgs); err != nil {
		log.Printf("[chat] save reply %s/%s failed: %v", in.UserID, dateKey, err)
		saved = false
	}

	if saved {
		s.reindex(in.UserID, dateKey, msgs)
		if _, apology := res.(dispatch.Apology); !apology && kind != intent.RequestImageDetails {
			s.refreshSummary(in.UserID, dateKey, msgs)
		}
	}

	return &TurnResult{
		DateKey:                  dateKey,
		Reply:                    reply,
		Messages:                 msgs,
		Intent:                   kind,
		Kind:                     dispatch.Kind(res),
		AwaitingImageDescription: next,
		Saved:                    saved,
	}, nil
}

func (s *Service) reindex(userID, dateKey string, msgs []store.Message) {
	if s.index == nil {
		return
	}
	if err := s.index.Put(userID, dateKey, msgs); err != nil {
		log.Printf("[search] index %s/%s failed: %v", userID, dateKey, err)
	}
}

// refreshSummary recomputes the digest without blocking the turn. Failures
// are logged and dropped.
func (s *Service) refreshSummary(userID, dateKey string, msgs []store.Message) {
	snapshot := append([]store.Message(nil), msgs...)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.summaryTimeout)
		defer cancel()
		if _, err := s.Summarize(ctx, userID, dateKey, snapshot); err != nil {
			log.Printf("[chat] summary %s/%s skipped: %v", userID, dateKey, err)
		}
	}()
}

// Summarize computes and stores the digest for msgs.
func (s *Service) Summarize(ctx context.Context, userID, dateKey string, msgs []store.Message) (string, error) {
	summary, err := s.dispatcher.Summarize(ctx, msgs)
	if err != nil {
		return "", err
	}
	if err := s.conv.SaveSummary(ctx, userID, dateKey, summary); err != nil {
		log.Printf("[chat] save summary %s/%s failed: %v", userID, dateKey, err)
	}
	return summary, nil
}

// Drain waits for background summaries to finish.
func (s *Service) Drain() {
	s.background.Wait()
}

// History returns one day's messages.
func (s *Service) History(ctx context.Context, userID, dateKey string) ([]store.Message, error) {
	return s.conv.LoadConversation(ctx, userID, dateKey)
}

// DateKeys lists days with history, newest first.
func (s *Service) DateKeys(ctx context.Context, userID string) ([]string, error) {
	return s.conv.ListDateKeys(ctx, userID)
}

// Clear deletes one day of history.
func (s *Service) Clear(ctx context.Context, userID, dateKey string) error {
	unlock := s.locks.Lock(userID + "|" + dateKey)
	defer unlock()
	if err := s.conv.ClearConversation(ctx, userID, dateKey); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Remove(userID, dateKey); err != nil {
			log.Printf("[search] remove %s/%s failed: %v", userID, dateKey, err)
		}
	}
	return nil
}

// Summary returns the stored digest, or "" if none has been written.
func (s *Service) Summary(ctx context.Context, userID, dateKey string) (string, error) {
	return s.conv.LoadSummary(ctx, userID, dateKey)
}

// Search finds days whose history matches query.
func (s *Service) Search(ctx context.Context, userID, query string, limit int) ([]search.Result, error) {
	if s.index == nil {
		return []search.Result{}, nil
	}
	return s.index.Search(ctx, userID, query, limit)
}

// Today is the date key new turns are written to.
func (s *Service) Today() string {
	return store.DateKey(s.now())
}
