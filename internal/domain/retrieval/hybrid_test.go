package retrieval_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/identity"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
	"github.com/moe-gov/beacon/internal/infra/memrepo"
)

type fakeVectorStore struct {
	hits []retrieval.ScoredChunk
}

func (f *fakeVectorStore) UpsertDocument(context.Context, uuid.UUID, []retrieval.Chunk) error { return nil }
func (f *fakeVectorStore) DeleteDocument(context.Context, uuid.UUID) error                     { return nil }
func (f *fakeVectorStore) Search(context.Context, []float32, int, access.Predicate) ([]retrieval.ScoredChunk, error) {
	return f.hits, nil
}
func (f *fakeVectorStore) SearchWithinDocument(context.Context, uuid.UUID, []float32, int, access.Predicate) ([]retrieval.ScoredChunk, error) {
	return f.hits, nil
}
func (f *fakeVectorStore) ResyncAccessColumns(context.Context, uuid.UUID, retrieval.AccessFields) error {
	return nil
}

type fakeKeywordSearcher struct {
	hits []retrieval.KeywordHit
}

func (f *fakeKeywordSearcher) Search(context.Context, string, access.Predicate, int) ([]retrieval.KeywordHit, error) {
	return f.hits, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// countingEmbedder records whether it was ever invoked, so a k=0 retrieval
// can assert the embedder was never called (spec §8 boundary).
type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeDocLookup struct {
	docs map[uuid.UUID]document.Document
}

func (f *fakeDocLookup) Get(_ context.Context, id uuid.UUID) (document.Document, bool, error) {
	d, ok := f.docs[id]
	return d, ok, nil
}

func newTestCoordinator(t *testing.T) *retrieval.Coordinator {
	t.Helper()
	docs := memrepo.NewDocumentRepository()
	store := memrepo.NewEmbeddingStore(docs)
	return retrieval.NewCoordinator(store, &countingFetcher{}, wordChunker{}, fakeEmbedder{}, retrieval.Config{}, testLogger())
}

func TestHybridRetrieveFusesAndRanksByRRF(t *testing.T) {
	doc1, doc2, doc3 := uuid.New(), uuid.New(), uuid.New()
	uploader := uuid.New()
	viewer := identity.Viewer{UserID: uploader, Role: identity.RoleDeveloper}

	vectors := &fakeVectorStore{hits: []retrieval.ScoredChunk{
		{DocumentID: doc1, ChunkIndex: 0, Text: "a", Score: 0.9, Access: access.Row{ApprovalStatus: document.StatusApproved}},
		{DocumentID: doc2, ChunkIndex: 0, Text: "b", Score: 0.5, Access: access.Row{ApprovalStatus: document.StatusApproved}},
	}}
	keyword := &fakeKeywordSearcher{hits: []retrieval.KeywordHit{
		{DocumentID: doc1, Title: "Doc One"},
		{DocumentID: doc3, Title: "Doc Three"},
	}}
	lookup := &fakeDocLookup{docs: map[uuid.UUID]document.Document{
		doc3: {ID: doc3, ApprovalStatus: document.StatusApproved, UploaderID: uploader},
	}}

	retriever := retrieval.NewHybridRetriever(vectors, keyword, fakeEmbedder{}, newTestCoordinator(t), lookup, retrieval.HybridConfig{}, testLogger())
	resp, err := retriever.Retrieve(context.Background(), "query", viewer, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Degraded {
		t.Fatal("expected a non-degraded response when both legs succeed")
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 fused results (doc1, doc2, doc3), got %d: %+v", len(resp.Results), resp.Results)
	}

	// doc1 was hit by both legs so its fused RRF score must exceed doc2's
	// and doc3's single-leg scores.
	byDoc := make(map[uuid.UUID]retrieval.Result, len(resp.Results))
	for _, r := range resp.Results {
		byDoc[r.DocumentID] = r
	}
	doc1Result, ok := byDoc[doc1]
	if !ok {
		t.Fatal("expected doc1 in fused results")
	}
	for _, other := range []uuid.UUID{doc2, doc3} {
		if doc1Result.FusedScore <= byDoc[other].FusedScore {
			t.Fatalf("expected doc1 (fused from both legs) to outrank %s: doc1=%f other=%f", other, doc1Result.FusedScore, byDoc[other].FusedScore)
		}
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i-1].FusedScore < resp.Results[i].FusedScore {
			t.Fatalf("results not sorted by descending fused score at index %d", i)
		}
	}
}

func TestHybridRetrieveFiltersDraftsToUploaderOnly(t *testing.T) {
	draftDoc := uuid.New()
	owner := uuid.New()
	stranger := uuid.New()

	vectors := &fakeVectorStore{hits: []retrieval.ScoredChunk{
		{DocumentID: draftDoc, ChunkIndex: 0, Text: "draft text", Score: 0.8, Access: access.Row{ApprovalStatus: document.StatusDraft, UploaderID: owner}},
	}}
	keyword := &fakeKeywordSearcher{}
	lookup := &fakeDocLookup{docs: map[uuid.UUID]document.Document{
		draftDoc: {ID: draftDoc, ApprovalStatus: document.StatusDraft, UploaderID: owner},
	}}
	retriever := retrieval.NewHybridRetriever(vectors, keyword, fakeEmbedder{}, newTestCoordinator(t), lookup, retrieval.HybridConfig{}, testLogger())

	ownerViewer := identity.Viewer{UserID: owner, Role: identity.RoleStudent}
	resp, err := retriever.Retrieve(context.Background(), "query", ownerViewer, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected the uploader to see their own draft chunk, got %d results", len(resp.Results))
	}

	strangerViewer := identity.Viewer{UserID: stranger, Role: identity.RoleStudent}
	resp, err = retriever.Retrieve(context.Background(), "query", strangerViewer, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("expected a stranger to never see a draft chunk grounding an answer, got %d results", len(resp.Results))
	}
}

// TestHybridRetrieveEnsureEmbedsKeywordHitsBeforeVectorSearch is the spec
// §4.9 step 2 regression: a document the keyword leg names must be
// ensure-embedded before the vector leg's C8.search call in the same
// request, not queued for a later one. It uses a real Coordinator (not the
// fakeEmbedder-only stub) so the fetch count is observable.
func TestHybridRetrieveEnsureEmbedsKeywordHitsBeforeVectorSearch(t *testing.T) {
	docs := memrepo.NewDocumentRepository()
	doc, err := docs.Create(context.Background(), document.Document{
		UploaderID:     uuid.New(),
		InstitutionID:  uuid.New(),
		Visibility:     document.VisibilityPublic,
		ApprovalStatus: document.StatusApproved,
		ObjectURL:      "s3://bucket/key",
	})
	if err != nil {
		t.Fatalf("unexpected error creating document: %v", err)
	}
	store := memrepo.NewEmbeddingStore(docs)
	fetcher := &countingFetcher{}
	coordinator := retrieval.NewCoordinator(store, fetcher, wordChunker{}, fakeEmbedder{}, retrieval.Config{}, testLogger())

	vectors := &fakeVectorStore{}
	keyword := &fakeKeywordSearcher{hits: []retrieval.KeywordHit{{DocumentID: doc.ID, Title: "Doc One"}}}
	lookup := &fakeDocLookup{docs: map[uuid.UUID]document.Document{doc.ID: doc}}
	viewer := identity.Viewer{UserID: doc.UploaderID, Role: identity.RoleDeveloper}

	retriever := retrieval.NewHybridRetriever(vectors, keyword, fakeEmbedder{}, coordinator, lookup, retrieval.HybridConfig{}, testLogger())
	if _, err := retriever.Retrieve(context.Background(), "query", viewer, 10, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := atomic.LoadInt32(&fetcher.calls); got != 1 {
		t.Fatalf("expected the keyword leg's shortlist to be ensure-embedded synchronously before Retrieve returned, got %d fetch calls", got)
	}
}

func TestHybridRetrieveWithZeroKSkipsEmbedderEntirely(t *testing.T) {
	embedder := &countingEmbedder{}
	vectors := &fakeVectorStore{}
	keyword := &fakeKeywordSearcher{}
	lookup := &fakeDocLookup{docs: map[uuid.UUID]document.Document{}}
	viewer := identity.Viewer{UserID: uuid.New(), Role: identity.RoleStudent}

	retriever := retrieval.NewHybridRetriever(vectors, keyword, embedder, newTestCoordinator(t), lookup, retrieval.HybridConfig{}, testLogger())
	resp, err := retriever.Retrieve(context.Background(), "query", viewer, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("expected k=0 to return no results, got %d", len(resp.Results))
	}
	if embedder.calls != 0 {
		t.Fatalf("expected k=0 to never invoke the embedder, got %d calls", embedder.calls)
	}
}
