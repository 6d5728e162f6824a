package retrieval

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/identity"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// DocumentLookup resolves the document-level fields a keyword-only hit
// doesn't carry (approval_status, uploader_id) so every fused candidate
// ends up with the same result shape regardless of which leg found it.
type DocumentLookup interface {
	Get(ctx context.Context, id uuid.UUID) (document.Document, bool, error)
}

// HybridConfig tunes C9's fusion (spec §4.9: "c = 60" plus the
// supplemented per-leg top-k, configurable at deploy time).
type HybridConfig struct {
	VectorLegK  int
	KeywordLegK int
	RRFConstant float64
}

// HybridRetriever implements C9 (spec §4.9).
type HybridRetriever struct {
	vectors     VectorStore
	keyword     KeywordSearcher
	embedder    Embedder
	coordinator *Coordinator
	docs        DocumentLookup
	cfg         HybridConfig
	logger      *slog.Logger
}

// NewHybridRetriever constructs C9.
func NewHybridRetriever(vectors VectorStore, keyword KeywordSearcher, embedder Embedder, coordinator *Coordinator, docs DocumentLookup, cfg HybridConfig, logger *slog.Logger) *HybridRetriever {
	if cfg.VectorLegK <= 0 {
		cfg.VectorLegK = 20
	}
	if cfg.KeywordLegK <= 0 {
		cfg.KeywordLegK = 20
	}
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = 60
	}
	return &HybridRetriever{
		vectors:     vectors,
		keyword:     keyword,
		embedder:    embedder,
		coordinator: coordinator,
		docs:        docs,
		cfg:         cfg,
		logger:      logger.With("component", "retrieval.hybrid"),
	}
}

type candidateKey struct {
	DocID      uuid.UUID
	ChunkIndex int
}

// Retrieve implements `retrieve(query_text, viewer, k)` (spec §4.9).
// explicitTargets are documents the caller names directly (e.g. C10's
// search_specific); like every document named by the keyword leg's
// shortlist, they are ensured-embedded before the vector leg's C8.search
// call, in this same request (spec §4.9 step 2) — not queued for a future
// query.
func (r *HybridRetriever) Retrieve(ctx context.Context, queryText string, viewer identity.Viewer, k int, explicitTargets []uuid.UUID) (RetrieveResponse, error) {
	// spec §8 boundary: k=0 returns empty without invoking the embedder
	// (or either leg) at all; k<0 falls back to the configured default.
	if k == 0 {
		return RetrieveResponse{}, nil
	}
	if k < 0 {
		k = 5
	}
	pred := access.ForViewer(viewer)

	// Keyword leg runs first: the vector leg's ensure-embed step needs its
	// shortlist before it can call C8.search (spec §4.9 step 2), so the
	// two legs cannot be fully independent despite "in parallel" in the
	// spec's framing — the dependency one has on the other's output rules
	// that out.
	keywordHits, keywordErr := r.keyword.Search(ctx, queryText, pred, r.cfg.KeywordLegK)
	if keywordErr != nil {
		r.logger.Warn("keyword leg failed", "error", keywordErr)
	}

	candidates := make([]uuid.UUID, 0, len(explicitTargets)+len(keywordHits))
	candidates = append(candidates, explicitTargets...)
	for _, h := range keywordHits {
		candidates = append(candidates, h.DocumentID)
	}

	vectorHits, vectorErr := r.runVectorLeg(ctx, queryText, pred, candidates)

	degraded := false
	switch {
	case keywordErr != nil && vectorErr != nil:
		return RetrieveResponse{}, apperrors.Wrap(apperrors.CodeRetrieveError, "both retrieval legs failed", vectorErr)
	case vectorErr != nil:
		r.logger.Warn("vector leg failed, degrading to keyword-only", "error", vectorErr)
		vectorHits = nil
		degraded = true
	case keywordErr != nil:
		keywordHits = nil
		degraded = true
	}

	results := r.fuse(ctx, vectorHits, keywordHits, viewer, k)
	return RetrieveResponse{Results: results, Degraded: degraded}, nil
}

// runVectorLeg ensures every candidate (the caller's explicit targets plus
// the keyword leg's shortlist) is embedded before searching, so a
// lazily-embedded document the keyword leg just found can actually surface
// from the vector index on this same call (spec §4.9 step 2). The
// ensure-embed calls themselves fan out concurrently since each is an
// independent CAS against a different document.
func (r *HybridRetriever) runVectorLeg(ctx context.Context, queryText string, pred access.Predicate, candidates []uuid.UUID) ([]ScoredChunk, error) {
	vectors, err := r.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeEmbeddingError, "failed to embed query", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, docID := range dedupeIDs(candidates) {
		docID := docID
		g.Go(func() error {
			if _, err := r.coordinator.EnsureEmbedded(gctx, docID, false); err != nil {
				r.logger.Warn("ensure_embedded failed for retrieval candidate", "document_id", docID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return r.vectors.Search(ctx, vectors[0], r.cfg.VectorLegK, pred)
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// fuse implements RRF across the two legs and the approval/ownership
// post-filter (spec §4.9 steps 3-4 and "Approval filter on results").
func (r *HybridRetriever) fuse(ctx context.Context, vectorHits []ScoredChunk, keywordHits []KeywordHit, viewer identity.Viewer, k int) []Result {
	scores := make(map[candidateKey]float64)
	results := make(map[candidateKey]Result)

	for rank, hit := range vectorHits {
		key := candidateKey{DocID: hit.DocumentID, ChunkIndex: hit.ChunkIndex}
		scores[key] += 1.0 / (r.cfg.RRFConstant + float64(rank+1))
		results[key] = Result{
			DocumentID:     hit.DocumentID,
			ChunkIndex:     hit.ChunkIndex,
			Text:           hit.Text,
			ApprovalStatus: hit.Access.ApprovalStatus,
		}
	}
	for rank, hit := range keywordHits {
		// chunk-less keyword hits fuse against chunk_index=0 (spec §4.9
		// step 3).
		key := candidateKey{DocID: hit.DocumentID, ChunkIndex: 0}
		scores[key] += 1.0 / (r.cfg.RRFConstant + float64(rank+1))
		if existing, ok := results[key]; ok {
			existing.Title = hit.Title
			results[key] = existing
			continue
		}
		results[key] = Result{
			DocumentID:     hit.DocumentID,
			Title:          hit.Title,
			ChunkIndex:     0,
			ApprovalStatus: r.lookupApproval(ctx, hit.DocumentID),
		}
	}

	final := make([]Result, 0, len(results))
	for key, res := range results {
		res.FusedScore = scores[key]
		if !r.passesApprovalFilter(ctx, res, viewer) {
			continue
		}
		final = append(final, res)
	}

	sort.Slice(final, func(i, j int) bool {
		if final[i].FusedScore != final[j].FusedScore {
			return final[i].FusedScore > final[j].FusedScore
		}
		if final[i].DocumentID != final[j].DocumentID {
			return final[i].DocumentID.String() < final[j].DocumentID.String()
		}
		return final[i].ChunkIndex < final[j].ChunkIndex
	})
	if len(final) > k {
		final = final[:k]
	}
	return final
}

// passesApprovalFilter implements spec §4.9's "Approval filter on results":
// draft/rejected/etc. content never grounds an answer, except a document's
// own uploader may still see their own draft.
func (r *HybridRetriever) passesApprovalFilter(ctx context.Context, res Result, viewer identity.Viewer) bool {
	switch res.ApprovalStatus {
	case document.StatusApproved, document.StatusPending, document.StatusUnderReview:
		return true
	case document.StatusDraft:
		doc, found, err := r.docs.Get(ctx, res.DocumentID)
		return err == nil && found && doc.UploaderID == viewer.UserID
	default:
		return false
	}
}

// SearchWithin implements C10's search_specific tool (spec §4.10): the
// same machinery as Retrieve, narrowed to one document, with the same
// approval post-filter applied.
func (r *HybridRetriever) SearchWithin(ctx context.Context, docID uuid.UUID, queryText string, viewer identity.Viewer, k int) ([]Result, error) {
	if k == 0 {
		return nil, nil
	}
	if k < 0 {
		k = 5
	}
	pred := access.ForViewer(viewer)
	if _, err := r.coordinator.EnsureEmbedded(ctx, docID, false); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeEmbeddingError, "failed to ensure document embedded", err)
	}
	vectors, err := r.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeEmbeddingError, "failed to embed query", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	hits, err := r.vectors.SearchWithinDocument(ctx, docID, vectors[0], k, pred)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeRetrieveError, "search_specific failed", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		res := Result{
			DocumentID:     hit.DocumentID,
			ChunkIndex:     hit.ChunkIndex,
			Text:           hit.Text,
			FusedScore:     hit.Score,
			ApprovalStatus: hit.Access.ApprovalStatus,
		}
		if r.passesApprovalFilter(ctx, res, viewer) {
			results = append(results, res)
		}
	}
	return results, nil
}

func (r *HybridRetriever) lookupApproval(ctx context.Context, docID uuid.UUID) document.ApprovalStatus {
	doc, found, err := r.docs.Get(ctx, docID)
	if err != nil || !found {
		return document.StatusDraft
	}
	return doc.ApprovalStatus
}
