package document

import (
	"context"

	"github.com/google/uuid"
)

// ListFilters narrows ListVisibleDocuments beyond the access predicate.
type ListFilters struct {
	InstitutionID  *uuid.UUID
	ApprovalStatus *ApprovalStatus
}

// Page bounds a ListVisibleDocuments query (spec §6: "page<DocumentSummary>").
type Page struct {
	Limit  int
	Offset int
}

// AccessPredicate is C4's bulk predicate (spec §4.4 item 2), opaque to C3:
// the repository only needs to bind it into a query, never interpret it.
type AccessPredicate interface {
	// Matches reports whether the predicate allows d, used by in-memory
	// repositories; relational ones translate the same specification into
	// a WHERE clause instead of calling this.
	Matches(d Document) bool
}

// Repository persists Document, Metadata, and AuditEvent (spec §4.3).
type Repository interface {
	Create(ctx context.Context, d Document) (Document, error)
	Get(ctx context.Context, id uuid.UUID) (Document, bool, error)

	// Transition applies a single state write; the caller (document.Service)
	// has already validated the move against the C11 table and is
	// responsible for appending the resulting AuditEvent and, if
	// approval_status changed, triggering ResyncAccessColumns afterward
	// (spec §4.3, §4.11). This method only persists the row.
	Transition(ctx context.Context, id uuid.UUID, to ApprovalStatus, actorID uuid.UUID, reason string) (Document, error)

	ResyncAccessColumns(ctx context.Context, id uuid.UUID) error

	GetMetadata(ctx context.Context, id uuid.UUID) (Metadata, bool, error)
	UpsertMetadata(ctx context.Context, m Metadata) error

	AppendAudit(ctx context.Context, e AuditEvent) error

	// ListVisible applies pred (C4's predicate) plus filters/paging. pred is
	// nil-safe: a nil predicate matches everything (used by admin-only
	// listing paths that have already authorized the whole institution).
	ListVisible(ctx context.Context, pred AccessPredicate, filters ListFilters, page Page) ([]Summary, error)
}
