package retrieval_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
	"github.com/moe-gov/beacon/internal/infra/embedder"
	"github.com/moe-gov/beacon/internal/infra/memrepo"
)

type countingFetcher struct {
	calls int32
}

func (f *countingFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	return []byte("the quick brown fox jumps over the lazy dog. a second sentence follows it here."), nil
}

type wordChunker struct{}

func (wordChunker) Chunk(text string) []string {
	return []string{text}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestEnsureEmbeddedAtMostOneBuilder is C7's core invariant (spec §4.7):
// concurrent callers for the same document never run more than one build.
func TestEnsureEmbeddedAtMostOneBuilder(t *testing.T) {
	docs := memrepo.NewDocumentRepository()
	doc, err := docs.Create(context.Background(), document.Document{
		UploaderID:    uuid.New(),
		InstitutionID: uuid.New(),
		Visibility:    document.VisibilityPublic,
		ObjectURL:     "s3://bucket/key",
	})
	if err != nil {
		t.Fatalf("unexpected error creating document: %v", err)
	}

	store := memrepo.NewEmbeddingStore(docs)
	fetcher := &countingFetcher{}
	coordinator := retrieval.NewCoordinator(store, fetcher, wordChunker{}, embedder.NewDeterministicEmbedder(8), retrieval.Config{}, testLogger())

	const callers = 20
	results := make([]retrieval.EnsureResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coordinator.EnsureEmbedded(context.Background(), doc.ID, false)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d returned an unexpected error: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&fetcher.calls); got != 1 {
		t.Fatalf("expected exactly one fetch across %d concurrent callers, got %d", callers, got)
	}

	readyCount := 0
	for _, r := range results {
		switch r {
		case retrieval.EnsureReady, retrieval.EnsureNotReady:
			if r == retrieval.EnsureReady {
				readyCount++
			}
		default:
			t.Fatalf("unexpected result %s", r)
		}
	}
	if readyCount == 0 {
		t.Fatal("expected at least one caller to observe Ready")
	}
}

// TestEnsureEmbeddedIsIdempotentOnceReady asserts a second call after the
// build completed returns Ready without triggering another fetch.
func TestEnsureEmbeddedIsIdempotentOnceReady(t *testing.T) {
	docs := memrepo.NewDocumentRepository()
	doc, _ := docs.Create(context.Background(), document.Document{
		UploaderID:    uuid.New(),
		InstitutionID: uuid.New(),
		Visibility:    document.VisibilityPublic,
		ObjectURL:     "s3://bucket/key",
	})
	store := memrepo.NewEmbeddingStore(docs)
	fetcher := &countingFetcher{}
	coordinator := retrieval.NewCoordinator(store, fetcher, wordChunker{}, embedder.NewDeterministicEmbedder(8), retrieval.Config{}, testLogger())

	result, err := coordinator.EnsureEmbedded(context.Background(), doc.ID, false)
	if err != nil || result != retrieval.EnsureReady {
		t.Fatalf("expected Ready, got %s, err=%v", result, err)
	}

	result, err = coordinator.EnsureEmbedded(context.Background(), doc.ID, false)
	if err != nil || result != retrieval.EnsureReady {
		t.Fatalf("expected Ready on replay, got %s, err=%v", result, err)
	}
	if got := atomic.LoadInt32(&fetcher.calls); got != 1 {
		t.Fatalf("expected no additional fetch once embedded, got %d total calls", got)
	}
}
