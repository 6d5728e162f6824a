package retrieval

import (
	"context"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/access"
)

// ObjectFetcher is C5: fetch raw document bytes from blob storage.
// Implementations must time out, retry at most twice with exponential
// backoff on a transient failure, and never retry a NotFound (spec §4.5).
type ObjectFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Chunker is C6's chunking half: splits text into overlapping,
// sentence-boundary-aware, token-budgeted pieces. Deterministic for a
// given input (spec §4.6).
type Chunker interface {
	Chunk(text string) []string
}

// Embedder is C6's embedding half: batches up to 32 texts per call and
// returns unit-norm D=1024 vectors (spec §4.6).
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is C8. Search filters by predicate before ranking, and
// returns ascending-cosine-distance order broken by (doc_id, chunk_index)
// ties (spec §4.8).
type VectorStore interface {
	UpsertDocument(ctx context.Context, docID uuid.UUID, chunks []Chunk) error
	DeleteDocument(ctx context.Context, docID uuid.UUID) error
	Search(ctx context.Context, queryVector []float32, k int, pred access.Predicate) ([]ScoredChunk, error)
	// SearchWithinDocument is Search with an additional doc_id == docID
	// conjunct, used by C10's search_specific tool (spec §4.10).
	SearchWithinDocument(ctx context.Context, docID uuid.UUID, queryVector []float32, k int, pred access.Predicate) ([]ScoredChunk, error)
	// ResyncAccessColumns overwrites the denormalized AccessFields on every
	// chunk of docID; called by C3 after a workflow transition (spec §4.3,
	// §4.8's staleness policy).
	ResyncAccessColumns(ctx context.Context, docID uuid.UUID, fields AccessFields) error
}

// KeywordSearcher is C9's keyword leg: a BM25-style or trigram match over
// DocumentMetadata fields, already filtered by pred (spec §4.9 step 2).
type KeywordSearcher interface {
	Search(ctx context.Context, queryText string, pred access.Predicate, k int) ([]KeywordHit, error)
}
