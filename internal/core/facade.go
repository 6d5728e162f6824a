// Package core exposes the retrieval platform's contractual surface (spec
// §6): the five inbound operations an external HTTP/voice/chat router
// calls, bundling the wired domain services behind one façade so callers
// never reach past it into C3/C4/C7/C9/C10 directly.
package core

import (
	"context"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/answerer"
	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/identity"
	"github.com/moe-gov/beacon/internal/domain/institution"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
)

// Core bundles BEACON's wired components behind spec §6's five inbound
// operations.
type Core struct {
	Identity     identity.Resolver
	Institutions *institution.Service
	Documents    *document.Service
	Coordinator  *retrieval.Coordinator
	Retriever    *retrieval.HybridRetriever
	Answerer     *answerer.Service
}

// New assembles the façade from its already-wired collaborators (built by
// cmd/app's Wire providers).
func New(
	idn identity.Resolver,
	institutions *institution.Service,
	documents *document.Service,
	coordinator *retrieval.Coordinator,
	retriever *retrieval.HybridRetriever,
	ans *answerer.Service,
) *Core {
	return &Core{
		Identity:     idn,
		Institutions: institutions,
		Documents:    documents,
		Coordinator:  coordinator,
		Retriever:    retriever,
		Answerer:     ans,
	}
}

// Query implements `Query(viewer, query_text, thread_id?)` (spec §6: C10 →
// C9 → C8/C3/C6).
func (c *Core) Query(ctx context.Context, viewer identity.Viewer, queryText, threadID string) (answerer.Answer, error) {
	return c.Answerer.Query(ctx, viewer, queryText, threadID)
}

// EnsureEmbedded implements `EnsureEmbedded(doc_id)` (spec §6: C7).
func (c *Core) EnsureEmbedded(ctx context.Context, docID uuid.UUID, retry bool) (retrieval.EnsureResult, error) {
	return c.Coordinator.EnsureEmbedded(ctx, docID, retry)
}

// TransitionDocument implements `TransitionDocument(doc_id, to_state,
// actor, reason?)` (spec §6: C11 → C3).
func (c *Core) TransitionDocument(ctx context.Context, docID uuid.UUID, to document.ApprovalStatus, actor identity.Viewer, reason string) (document.TransitionResult, error) {
	return c.Documents.Transition(ctx, docID, to, actor, reason)
}

// EvaluateAccess implements `EvaluateAccess(viewer, doc_id)` (spec §6: C4 →
// C3).
func (c *Core) EvaluateAccess(ctx context.Context, viewer identity.Viewer, docID uuid.UUID) (bool, error) {
	doc, found, err := c.Documents.Get(ctx, docID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return access.CanView(viewer, access.RowOf(doc)), nil
}

// ListVisibleDocuments implements `ListVisibleDocuments(viewer, filters,
// paging)` (spec §6: C3 using C4's predicate).
func (c *Core) ListVisibleDocuments(ctx context.Context, viewer identity.Viewer, filters document.ListFilters, page document.Page) ([]document.Summary, error) {
	pred := access.ForViewer(viewer)
	return c.Documents.ListVisible(ctx, pred, filters, page)
}

// CreateDocument is a supplemented convenience the router needs to drive
// the upload path that eventually feeds EnsureEmbedded; it is not part of
// spec §6's closed list but only forwards to C3 (no policy of its own).
func (c *Core) CreateDocument(ctx context.Context, uploader identity.Viewer, institutionID uuid.UUID, visibility document.Visibility, objectURL, title string) (document.Document, error) {
	return c.Documents.Create(ctx, uploader, institutionID, visibility, objectURL, title)
}
