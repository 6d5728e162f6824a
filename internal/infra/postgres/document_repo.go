package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/document"
)

// DocumentRepository implements C3 (document.Repository) against the
// documents/document_metadata/audit_events tables, following the same
// scan-by-hand shape as the teacher's PostgresDocumentRepository.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository constructs C3's relational store.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

var _ document.Repository = (*DocumentRepository)(nil)

func (r *DocumentRepository) Create(ctx context.Context, d document.Document) (document.Document, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (
			id, uploader_id, institution_id, visibility, approval_status,
			object_url, title, requires_upper_review, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, d.ID, d.UploaderID, d.InstitutionID, d.Visibility, d.ApprovalStatus,
		d.ObjectURL, d.Title, d.RequiresUpperReview, d.CreatedAt)
	if err != nil {
		return document.Document{}, err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO document_metadata (document_id, embedding_status, updated_at)
		VALUES ($1, 'not_embedded', $2)
	`, d.ID, d.CreatedAt)
	if err != nil {
		return document.Document{}, err
	}
	return d, nil
}

func (r *DocumentRepository) Get(ctx context.Context, id uuid.UUID) (document.Document, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, uploader_id, institution_id, visibility, approval_status,
			object_url, title, requires_upper_review, escalated_at,
			approver_id, approved_at, rejection_reason, created_at
		FROM documents WHERE id = $1
	`, id)
	d, err := scanDocument(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return document.Document{}, false, nil
		}
		return document.Document{}, false, err
	}
	return d, true, nil
}

// Transition persists a single approval_status write plus its
// bookkeeping columns (approver/approved_at/rejection_reason). The
// caller (document.Service) has already validated the move against the
// C11 table and the actor's authority; this method only executes the
// write (spec §4.3).
func (r *DocumentRepository) Transition(ctx context.Context, id uuid.UUID, to document.ApprovalStatus, actorID uuid.UUID, reason string) (document.Document, error) {
	var (
		approverID *uuid.UUID
		approvedAt *time.Time
	)
	if to == document.StatusApproved {
		now := time.Now()
		approverID = &actorID
		approvedAt = &now
	}
	var rejectionReason *string
	if reason != "" {
		rejectionReason = &reason
	}

	// flagged is a marker-only transition (spec §4.11): it never rewrites
	// approval_status, only the caller's audit trail does that.
	if to == document.StatusFlagged {
		d, _, err := r.Get(ctx, id)
		return d, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE documents
		SET approval_status = $1,
			approver_id = COALESCE($2, approver_id),
			approved_at = COALESCE($3, approved_at),
			rejection_reason = COALESCE($4, rejection_reason)
		WHERE id = $5
		RETURNING id, uploader_id, institution_id, visibility, approval_status,
			object_url, title, requires_upper_review, escalated_at,
			approver_id, approved_at, rejection_reason, created_at
	`, to, approverID, approvedAt, rejectionReason, id)
	return scanDocument(row)
}

// ResyncAccessColumns overwrites the denormalized access columns of every
// chunk belonging to doc_id with the document's current row (spec §4.8's
// staleness policy, §5's bounded-delay requirement).
func (r *DocumentRepository) ResyncAccessColumns(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE embedding_chunks c
		SET visibility = d.visibility,
			institution_id = d.institution_id,
			approval_status = d.approval_status,
			uploader_id = d.uploader_id,
			requires_upper_review = d.requires_upper_review
		FROM documents d
		WHERE c.document_id = d.id AND d.id = $1
	`, id)
	return err
}

func (r *DocumentRepository) GetMetadata(ctx context.Context, id uuid.UUID) (document.Metadata, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT document_id, keywords, summary, embedding_status, updated_at
		FROM document_metadata WHERE document_id = $1
	`, id)
	var m document.Metadata
	if err := row.Scan(&m.DocumentID, &m.Keywords, &m.Summary, &m.EmbeddingStatus, &m.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return document.Metadata{}, false, nil
		}
		return document.Metadata{}, false, err
	}
	return m, true, nil
}

func (r *DocumentRepository) UpsertMetadata(ctx context.Context, m document.Metadata) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO document_metadata (document_id, keywords, summary, embedding_status, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (document_id) DO UPDATE SET
			keywords = EXCLUDED.keywords,
			summary = EXCLUDED.summary,
			embedding_status = EXCLUDED.embedding_status,
			updated_at = EXCLUDED.updated_at
	`, m.DocumentID, m.Keywords, m.Summary, m.EmbeddingStatus, m.UpdatedAt)
	return err
}

func (r *DocumentRepository) AppendAudit(ctx context.Context, e document.AuditEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_events (id, document_id, actor_id, kind, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, e.ID, e.DocumentID, e.ActorID, e.Kind, e.Detail, e.CreatedAt)
	return err
}

// ListVisible implements `ListVisibleDocuments(viewer, filters, paging)`
// (spec §6), pushing C4's predicate into the WHERE clause per §4.4 item
// 2 rather than filtering in application code.
func (r *DocumentRepository) ListVisible(ctx context.Context, pred document.AccessPredicate, filters document.ListFilters, page document.Page) ([]document.Summary, error) {
	query := `
		SELECT id, title, institution_id, visibility, approval_status, uploader_id, created_at
		FROM documents d
		WHERE TRUE
	`
	args := []any{}
	argPos := 1

	if ap, ok := pred.(access.Predicate); ok {
		clause, predArgs := BuildPredicate(ap, "d.", argPos)
		query += " AND " + clause
		args = append(args, predArgs...)
		argPos += len(predArgs)
	}
	if filters.InstitutionID != nil {
		query += " AND d.institution_id = $" + strconv.Itoa(argPos)
		args = append(args, *filters.InstitutionID)
		argPos++
	}
	if filters.ApprovalStatus != nil {
		query += " AND d.approval_status = $" + strconv.Itoa(argPos)
		args = append(args, *filters.ApprovalStatus)
		argPos++
	}
	query += " ORDER BY d.created_at DESC LIMIT $" + strconv.Itoa(argPos) + " OFFSET $" + strconv.Itoa(argPos+1)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []document.Summary
	for rows.Next() {
		var s document.Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.InstitutionID, &s.Visibility, &s.ApprovalStatus, &s.UploaderID, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type docScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row docScanner) (document.Document, error) {
	var d document.Document
	if err := row.Scan(
		&d.ID, &d.UploaderID, &d.InstitutionID, &d.Visibility, &d.ApprovalStatus,
		&d.ObjectURL, &d.Title, &d.RequiresUpperReview, &d.EscalatedAt,
		&d.ApproverID, &d.ApprovedAt, &d.RejectionReason, &d.CreatedAt,
	); err != nil {
		return document.Document{}, err
	}
	return d, nil
}
