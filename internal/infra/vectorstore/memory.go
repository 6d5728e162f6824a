package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// MemoryStore is C8's in-process fallback, used when no Postgres DSN is
// configured (the teacher's memory-fallback provider convention). Vectors
// from C6 are unit-norm, so cosine distance reduces to 1 - dot product.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[uuid.UUID][]retrieval.Chunk
	dim    int
}

// NewMemoryStore constructs an empty in-memory vector store. dim mirrors
// PostgresStore's dimensional-mismatch refusal (spec §8); pass 0 to skip
// the check (e.g. in unit tests using short test vectors).
func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{chunks: make(map[uuid.UUID][]retrieval.Chunk), dim: dim}
}

var _ retrieval.VectorStore = (*MemoryStore)(nil)

func (s *MemoryStore) UpsertDocument(ctx context.Context, docID uuid.UUID, chunks []retrieval.Chunk) error {
	if s.dim > 0 {
		for _, c := range chunks {
			if len(c.Vector) != s.dim {
				return apperrors.Wrap(apperrors.CodeInvalidTransition,
					fmt.Sprintf("embedding dimension mismatch: got %d, configured %d", len(c.Vector), s.dim), nil)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]retrieval.Chunk, len(chunks))
	copy(cp, chunks)
	s.chunks[docID] = cp
	return nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, docID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, docID)
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, queryVector []float32, k int, pred access.Predicate) ([]retrieval.ScoredChunk, error) {
	return s.search(queryVector, k, pred, nil)
}

func (s *MemoryStore) SearchWithinDocument(ctx context.Context, docID uuid.UUID, queryVector []float32, k int, pred access.Predicate) ([]retrieval.ScoredChunk, error) {
	return s.search(queryVector, k, pred, &docID)
}

func (s *MemoryStore) search(queryVector []float32, k int, pred access.Predicate, withinDoc *uuid.UUID) ([]retrieval.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []retrieval.ScoredChunk
	for docID, chunks := range s.chunks {
		if withinDoc != nil && docID != *withinDoc {
			continue
		}
		for _, c := range chunks {
			if !pred.MatchesRow(c.Access) {
				continue
			}
			candidates = append(candidates, retrieval.ScoredChunk{
				DocumentID: c.DocumentID,
				ChunkIndex: c.Index,
				Text:       c.Text,
				Score:      dot(queryVector, c.Vector),
				Access:     c.Access,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].DocumentID != candidates[j].DocumentID {
			return candidates[i].DocumentID.String() < candidates[j].DocumentID.String()
		}
		return candidates[i].ChunkIndex < candidates[j].ChunkIndex
	})
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (s *MemoryStore) ResyncAccessColumns(ctx context.Context, docID uuid.UUID, fields retrieval.AccessFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks, ok := s.chunks[docID]
	if !ok {
		return nil
	}
	for i := range chunks {
		chunks[i].Access = fields
	}
	return nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return math.Max(-1, math.Min(1, sum))
}
