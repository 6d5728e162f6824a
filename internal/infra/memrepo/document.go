package memrepo

import (
	"sort"
	"sync"
	"time"

	"context"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/document"
)

// DocumentRepository is C3's in-memory fallback store.
type DocumentRepository struct {
	mu       sync.RWMutex
	docs     map[uuid.UUID]document.Document
	metadata map[uuid.UUID]document.Metadata
	audit    []document.AuditEvent
}

// NewDocumentRepository constructs an empty in-memory document store.
func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		docs:     make(map[uuid.UUID]document.Document),
		metadata: make(map[uuid.UUID]document.Metadata),
	}
}

var _ document.Repository = (*DocumentRepository)(nil)

func (r *DocumentRepository) Create(_ context.Context, d document.Document) (document.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	r.docs[d.ID] = d
	r.metadata[d.ID] = document.Metadata{DocumentID: d.ID, EmbeddingStatus: document.EmbeddingNotEmbedded, UpdatedAt: d.CreatedAt}
	return d, nil
}

func (r *DocumentRepository) Get(_ context.Context, id uuid.UUID) (document.Document, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	return d, ok, nil
}

func (r *DocumentRepository) Transition(_ context.Context, id uuid.UUID, to document.ApprovalStatus, actorID uuid.UUID, reason string) (document.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return document.Document{}, nil
	}
	if to == document.StatusFlagged {
		return d, nil
	}
	d.ApprovalStatus = to
	if to == document.StatusApproved {
		now := time.Now()
		actor := actorID
		d.ApproverID = &actor
		d.ApprovedAt = &now
	}
	if reason != "" {
		d.RejectionReason = reason
	}
	r.docs[id] = d
	return d, nil
}

func (r *DocumentRepository) ResyncAccessColumns(_ context.Context, id uuid.UUID) error {
	// No denormalized chunk rows live in this fallback; the vector/keyword
	// in-memory stores re-read AccessFields from the caller on resync
	// instead (see internal/infra/vectorstore.MemoryStore.ResyncAccessColumns).
	return nil
}

func (r *DocumentRepository) GetMetadata(_ context.Context, id uuid.UUID) (document.Metadata, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metadata[id]
	return m, ok, nil
}

func (r *DocumentRepository) UpsertMetadata(_ context.Context, m document.Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[m.DocumentID] = m
	return nil
}

func (r *DocumentRepository) AppendAudit(_ context.Context, e document.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	r.audit = append(r.audit, e)
	return nil
}

// AuditLog returns the audit trail recorded for id, oldest first.
func (r *DocumentRepository) AuditLog(_ context.Context, id uuid.UUID) []document.AuditEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []document.AuditEvent
	for _, e := range r.audit {
		if e.DocumentID == id {
			out = append(out, e)
		}
	}
	return out
}

func (r *DocumentRepository) ListVisible(_ context.Context, pred document.AccessPredicate, filters document.ListFilters, page document.Page) ([]document.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []document.Document
	for _, d := range r.docs {
		if pred != nil && !pred.Matches(d) {
			continue
		}
		if filters.InstitutionID != nil && d.InstitutionID != *filters.InstitutionID {
			continue
		}
		if filters.ApprovalStatus != nil && d.ApprovalStatus != *filters.ApprovalStatus {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	start := page.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if page.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}

	out := make([]document.Summary, 0, end-start)
	for _, d := range matched[start:end] {
		out = append(out, document.Summary{
			ID: d.ID, Title: d.Title, InstitutionID: d.InstitutionID,
			Visibility: d.Visibility, ApprovalStatus: d.ApprovalStatus,
			UploaderID: d.UploaderID, CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}
