package keywordsearch

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
)

type entry struct {
	row      access.Row
	title    string
	keywords []string
	summary  string
}

// MemorySearcher is C9's in-process keyword-leg fallback, used when no
// Postgres DSN is configured.
type MemorySearcher struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]entry
}

// NewMemorySearcher constructs an empty in-memory keyword index.
func NewMemorySearcher() *MemorySearcher {
	return &MemorySearcher{entries: make(map[uuid.UUID]entry)}
}

var _ retrieval.KeywordSearcher = (*MemorySearcher)(nil)

// Index registers or replaces a document's searchable fields, called
// alongside the vector store upsert (spec §4.6's "write path").
func (s *MemorySearcher) Index(docID uuid.UUID, d document.Document, m document.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[docID] = entry{
		row:      access.RowOf(d),
		title:    d.Title,
		keywords: m.Keywords,
		summary:  m.Summary,
	}
}

func (s *MemorySearcher) Search(ctx context.Context, queryText string, pred access.Predicate, k int) ([]retrieval.KeywordHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(queryText)
	var out []retrieval.KeywordHit
	for docID, e := range s.entries {
		if !pred.MatchesRow(e.row) {
			continue
		}
		if !matches(needle, e.title, e.summary, e.keywords) {
			continue
		}
		out = append(out, retrieval.KeywordHit{DocumentID: docID, Title: e.title})
		if k > 0 && len(out) >= k {
			break
		}
	}
	return out, nil
}

func matches(needle, title, summary string, keywords []string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(title), needle) || strings.Contains(strings.ToLower(summary), needle) {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return false
}
