package vectorstore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/identity"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
	"github.com/moe-gov/beacon/internal/infra/vectorstore"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

func TestUpsertDocumentRejectsDimensionMismatch(t *testing.T) {
	store := vectorstore.NewMemoryStore(1024)
	docID := uuid.New()

	err := store.UpsertDocument(context.Background(), docID, []retrieval.Chunk{
		{DocumentID: docID, Index: 0, Text: "x", Vector: make([]float32, 768)},
	})
	if err == nil {
		t.Fatal("expected dimension mismatch to be rejected")
	}
	if !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition code, got %v", err)
	}

	developer := access.ForViewer(identity.Viewer{UserID: uuid.New(), Role: identity.RoleDeveloper})
	hits, searchErr := store.Search(context.Background(), make([]float32, 1024), 10, developer)
	if searchErr != nil {
		t.Fatalf("unexpected search error: %v", searchErr)
	}
	if len(hits) != 0 {
		t.Fatal("expected no rows to have been written before the rejection")
	}
}

func TestUpsertDocumentAcceptsMatchingDimension(t *testing.T) {
	store := vectorstore.NewMemoryStore(3)
	docID := uuid.New()

	err := store.UpsertDocument(context.Background(), docID, []retrieval.Chunk{
		{DocumentID: docID, Index: 0, Text: "x", Vector: []float32{1, 0, 0}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
