// Package search keeps an in-memory full-text index of chat history so a
// user can find the day a topic came up.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aimaiyabot/ai-maiya/internal/dispatch"
	"github.com/Aimaiyabot/ai-maiya/internal/sanitize"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
)

const defaultLimit = 20

type Result struct {
	DateKey string  `json:"dateKey"`
	Score   float64 `json:"score"`
}

// Index holds one document per (user, date key).
type Index struct {
	index bleve.Index
}

func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create chat index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	chatMapping := bleve.NewDocumentMapping()

	userField := bleve.NewTextFieldMapping()
	userField.Analyzer = keyword.Name
	userField.Store = false
	chatMapping.AddFieldMappingsAt("user_id", userField)

	dateField := bleve.NewTextFieldMapping()
	dateField.Analyzer = keyword.Name
	dateField.Store = true
	chatMapping.AddFieldMappingsAt("date_key", dateField)

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	chatMapping.AddFieldMappingsAt("text", textField)

	indexMapping.DefaultMapping = chatMapping
	return indexMapping
}

func docID(userID, dateKey string) string {
	return userID + "|" + dateKey
}

// Put replaces the document for one conversation.
func (i *Index) Put(userID, dateKey string, msgs []store.Message) error {
	if len(msgs) == 0 {
		return i.Remove(userID, dateKey)
	}
	return i.index.Index(docID(userID, dateKey), document(userID, dateKey, msgs))
}

// Remove drops a conversation, e.g. after it was cleared.
func (i *Index) Remove(userID, dateKey string) error {
	return i.index.Delete(docID(userID, dateKey))
}

// Rebuild indexes every stored conversation.
func (i *Index) Rebuild(ctx context.Context, each func(context.Context, func(store.Conversation) error) error) (int, error) {
	batch := i.index.NewBatch()
	n := 0
	err := each(ctx, func(c store.Conversation) error {
		if len(c.Messages) == 0 {
			return nil
		}
		if err := batch.Index(docID(c.UserID, c.DateKey), document(c.UserID, c.DateKey, c.Messages)); err != nil {
			return fmt.Errorf("failed to add chat %s/%s to batch: %w", c.UserID, c.DateKey, err)
		}
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := i.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("chat index batch failed: %w", err)
	}
	return n, nil
}

// Search returns matching date keys for userID, best match first.
func (i *Index) Search(ctx context.Context, userID, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	textQuery := bleve.NewMatchQuery(query)
	textQuery.SetField("text")
	userQuery := bleve.NewTermQuery(userID)
	userQuery.SetField("user_id")

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(textQuery, userQuery))
	req.Size = limit
	req.Fields = []string{"date_key"}

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat search failed: %w", err)
	}
	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := Result{Score: hit.Score}
		if dk, ok := hit.Fields["date_key"].(string); ok {
			r.DateKey = dk
		}
		out = append(out, r)
	}
	return out, nil
}

func (i *Index) Close() error {
	return i.index.Close()
}

func document(userID, dateKey string, msgs []store.Message) map[string]interface{} {
	var b strings.Builder
	for _, m := range msgs {
		if _, ok := dispatch.ImageURL(m.Content); ok {
			continue
		}
		b.WriteString(sanitize.PlainText(m.Content))
		b.WriteString("\n")
	}
	return map[string]interface{}{
		"user_id":  userID,
		"date_key": dateKey,
		"text":     b.String(),
	}
}
