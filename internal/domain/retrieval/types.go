// Package retrieval implements C6 through C9: chunking/embedding, the lazy
// embedding coordinator, the vector store contract, and the hybrid
// retriever that fuses vector and keyword legs.
package retrieval

import (
	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/document"
)

// AccessFields are the denormalized authorization columns copied onto
// every chunk at write time (spec §3's EmbeddingChunk). The spec's
// narrative list names {visibility, institution_id, approval_status}, but
// C4's predicate (§4.4 item 2) ranges over
// {visibility, institution_id, approval_status, uploader_id,
// requires_upper_review} — so the store must carry all five or it cannot
// evaluate the predicate it is handed. It is therefore the same shape C4
// evaluates over: access.Row.
// Only ApprovalStatus is mutable post-write; the others are fixed for the
// life of the document (spec §5).
type AccessFields = access.Row

// Chunk is a single unit of chunked, embedded text ready for C8 storage.
type Chunk struct {
	DocumentID uuid.UUID
	Index      int
	Text       string
	Vector     []float32
	Access     AccessFields
}

// ScoredChunk is a C8 search result (spec §4.8: "return the top k with
// {doc_id, chunk_index, text, score, denormalized access fields}").
type ScoredChunk struct {
	DocumentID uuid.UUID
	ChunkIndex int
	Text       string
	Score      float64
	Access     AccessFields
}

// KeywordHit is a C9 keyword-leg result against DocumentMetadata.
type KeywordHit struct {
	DocumentID uuid.UUID
	Title      string
}

// Result is one fused, ranked item returned by HybridRetriever.Retrieve
// (spec §4.9: "Result shape").
type Result struct {
	DocumentID     uuid.UUID
	Title          string
	ChunkIndex     int
	Text           string
	FusedScore     float64
	ApprovalStatus document.ApprovalStatus
}

// RetrieveResponse wraps the ranked results plus the degraded flag (spec
// §4.9 "Failures": a single-leg failure degrades rather than aborts).
type RetrieveResponse struct {
	Results  []Result
	Degraded bool
}
