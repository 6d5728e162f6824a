package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/document"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// EnsureResult matches the `EnsureEmbedded(doc_id) → Ready | NotReady |
// Failed` inbound operation (spec §6).
type EnsureResult string

const (
	EnsureReady    EnsureResult = "ready"
	EnsureNotReady EnsureResult = "not_ready"
	EnsureFailed   EnsureResult = "failed"
)

// AcquireOutcome is what the short, row-locked transaction in
// EmbeddingStore.AcquireBuild observed and (if it won) changed (spec §4.7
// steps 1-5).
type AcquireOutcome struct {
	// Acquired is true only when this caller transitioned the row from
	// not_embedded, or from failed with retry=true, into embedding — i.e.
	// this caller, and no other, now owns the build.
	Acquired       bool
	PreviousStatus document.EmbeddingStatus
	Doc            document.Document
}

// EmbeddingStore is C3's CAS surface as seen by C7 (spec §4.7's
// algorithm). The coordinator never touches SQL directly; it only drives
// this narrow transactional contract.
type EmbeddingStore interface {
	// AcquireBuild implements steps 1-5: begin a transaction, read
	// (embedding_status, access fields) with a row lock, and if eligible,
	// CAS to embedding before committing. recoveryHorizon lets the store
	// treat a stale "embedding" row (older than the horizon) as eligible
	// for reclaim, same as an explicit retry (spec §4.7 "Recovery").
	AcquireBuild(ctx context.Context, docID uuid.UUID, retry bool, recoveryHorizon time.Duration) (AcquireOutcome, error)

	// CommitBuild implements step 7: delete-then-insert the new chunks and
	// flip status to embedded, all in one transaction.
	CommitBuild(ctx context.Context, docID uuid.UUID, chunks []Chunk) error

	// FailBuild implements step 8: a fresh transaction setting status to
	// failed and appending an audit event.
	FailBuild(ctx context.Context, docID uuid.UUID, reason string) error
}

// Coordinator implements C7, the lazy embedding coordinator: at-most-one
// builder per document without a dedicated job queue (spec §4.7).
type Coordinator struct {
	store           EmbeddingStore
	fetcher         ObjectFetcher
	chunker         Chunker
	embedder        Embedder
	recoveryHorizon time.Duration
	sem             chan struct{}
	logger          *slog.Logger
}

// Config bounds the coordinator's behavior (spec §4.7 "Recovery", §5
// "Backpressure").
type Config struct {
	// RecoveryHorizon is how old an "embedding" row must be before it's
	// considered abandoned and reclaimable (spec default: 30 minutes).
	RecoveryHorizon time.Duration
	// MaxConcurrentBuilds bounds in-flight document builds per process
	// (spec §5 default: 4); callers beyond the bound get NotReady
	// immediately rather than blocking.
	MaxConcurrentBuilds int
}

// NewCoordinator constructs C7.
func NewCoordinator(store EmbeddingStore, fetcher ObjectFetcher, chunker Chunker, embedder Embedder, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.RecoveryHorizon <= 0 {
		cfg.RecoveryHorizon = 30 * time.Minute
	}
	if cfg.MaxConcurrentBuilds <= 0 {
		cfg.MaxConcurrentBuilds = 4
	}
	return &Coordinator{
		store:           store,
		fetcher:         fetcher,
		chunker:         chunker,
		embedder:        embedder,
		recoveryHorizon: cfg.RecoveryHorizon,
		sem:             make(chan struct{}, cfg.MaxConcurrentBuilds),
		logger:          logger.With("component", "retrieval.coordinator"),
	}
}

// EnsureEmbedded implements the full algorithm of spec §4.7.
func (c *Coordinator) EnsureEmbedded(ctx context.Context, docID uuid.UUID, retry bool) (EnsureResult, error) {
	// Backpressure: acquire the local build slot before ever touching the
	// row's CAS. A caller that can't get a slot must not call AcquireBuild
	// at all — otherwise it would win the CAS, abandon the row at
	// embedding_status=embedding with nobody building it, and every other
	// caller (slot or no slot) would see "embedding" and also bail out
	// until the recovery horizon passes (spec §5 "Backpressure").
	select {
	case c.sem <- struct{}{}:
	default:
		return EnsureNotReady, nil
	}
	defer func() { <-c.sem }()

	outcome, err := c.store.AcquireBuild(ctx, docID, retry, c.recoveryHorizon)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to acquire embedding build", err)
	}
	if !outcome.Acquired {
		switch outcome.PreviousStatus {
		case document.EmbeddingEmbedded:
			return EnsureReady, nil
		case document.EmbeddingInProgress:
			return EnsureNotReady, nil
		case document.EmbeddingFailed:
			return EnsureFailed, nil
		default:
			return EnsureNotReady, nil
		}
	}

	if err := c.build(ctx, outcome.Doc); err != nil {
		if failErr := c.store.FailBuild(context.WithoutCancel(ctx), docID, err.Error()); failErr != nil {
			c.logger.Error("failed to mark build failed", "document_id", docID, "error", failErr)
		}
		return EnsureFailed, nil
	}
	return EnsureReady, nil
}

// build runs step 6-7 outside any DB transaction: fetch, chunk, embed,
// then commit atomically.
func (c *Coordinator) build(ctx context.Context, doc document.Document) error {
	raw, err := c.fetcher.Fetch(ctx, doc.ObjectURL)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to fetch object", err)
	}
	texts := c.chunker.Chunk(string(raw))
	if len(texts) == 0 {
		return c.store.CommitBuild(ctx, doc.ID, nil)
	}

	access := AccessFields{
		Visibility:          doc.Visibility,
		InstitutionID:       doc.InstitutionID,
		ApprovalStatus:      doc.ApprovalStatus,
		UploaderID:          doc.UploaderID,
		RequiresUpperReview: doc.RequiresUpperReview,
	}

	const batchSize = 32
	chunks := make([]Chunk, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return apperrors.Wrap(apperrors.CodeEmbeddingError, "embedding batch failed", err)
		}
		for i, v := range vectors {
			chunks = append(chunks, Chunk{
				DocumentID: doc.ID,
				Index:      start + i,
				Text:       texts[start+i],
				Vector:     v,
				Access:     access,
			})
		}
	}
	if err := c.store.CommitBuild(ctx, doc.ID, chunks); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to commit embedded chunks", err)
	}
	return nil
}
