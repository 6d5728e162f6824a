package memrepo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
)

// embeddingState tracks CAS bookkeeping the relational schema would keep on
// document_metadata: the current status and when it was last set, so a
// stale "embedding" row can be reclaimed the same way postgres.EmbeddingStore
// does (spec §4.7 "Recovery").
type embeddingState struct {
	status document.EmbeddingStatus
	since  time.Time
}

// EmbeddingStore is C7's in-memory fallback CAS surface, layered on top of
// a DocumentRepository's own document map so AcquireBuild can read the
// same access fields the relational store joins against.
type EmbeddingStore struct {
	docs   *DocumentRepository
	states map[uuid.UUID]embeddingState
}

// NewEmbeddingStore constructs C7's in-memory fallback, bound to docs for
// document reads (spec §4.7 steps 1-5 read {embedding_status, access
// fields} together).
func NewEmbeddingStore(docs *DocumentRepository) *EmbeddingStore {
	return &EmbeddingStore{docs: docs, states: make(map[uuid.UUID]embeddingState)}
}

var _ retrieval.EmbeddingStore = (*EmbeddingStore)(nil)

func (s *EmbeddingStore) AcquireBuild(ctx context.Context, docID uuid.UUID, retry bool, recoveryHorizon time.Duration) (retrieval.AcquireOutcome, error) {
	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()

	doc, ok := s.docs.docs[docID]
	if !ok {
		return retrieval.AcquireOutcome{}, nil
	}
	st, ok := s.states[docID]
	if !ok {
		st = embeddingState{status: document.EmbeddingNotEmbedded, since: time.Now()}
	}

	eligible := false
	switch st.status {
	case document.EmbeddingNotEmbedded:
		eligible = true
	case document.EmbeddingFailed:
		eligible = retry
	case document.EmbeddingInProgress:
		eligible = time.Since(st.since) > recoveryHorizon
	case document.EmbeddingEmbedded:
		eligible = false
	}

	if !eligible {
		return retrieval.AcquireOutcome{Acquired: false, PreviousStatus: st.status, Doc: doc}, nil
	}

	s.states[docID] = embeddingState{status: document.EmbeddingInProgress, since: time.Now()}
	return retrieval.AcquireOutcome{Acquired: true, PreviousStatus: st.status, Doc: doc}, nil
}

func (s *EmbeddingStore) CommitBuild(ctx context.Context, docID uuid.UUID, chunks []retrieval.Chunk) error {
	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()
	s.states[docID] = embeddingState{status: document.EmbeddingEmbedded, since: time.Now()}
	if m, ok := s.docs.metadata[docID]; ok {
		m.EmbeddingStatus = document.EmbeddingEmbedded
		m.UpdatedAt = time.Now()
		s.docs.metadata[docID] = m
	}
	return nil
}

func (s *EmbeddingStore) FailBuild(ctx context.Context, docID uuid.UUID, reason string) error {
	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()
	s.states[docID] = embeddingState{status: document.EmbeddingFailed, since: time.Now()}
	if m, ok := s.docs.metadata[docID]; ok {
		m.EmbeddingStatus = document.EmbeddingFailed
		m.UpdatedAt = time.Now()
		s.docs.metadata[docID] = m
	}
	s.docs.audit = append(s.docs.audit, document.AuditEvent{
		ID: uuid.New(), DocumentID: docID, Kind: "embedding_failed", Detail: reason, CreatedAt: time.Now(),
	})
	return nil
}
