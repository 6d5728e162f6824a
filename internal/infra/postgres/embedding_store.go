package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
)

// EmbeddingStore implements C7's narrow transactional contract
// (retrieval.EmbeddingStore) against the documents/document_metadata/
// embedding_chunks tables: the short row-locked CAS transaction of spec
// §4.7 steps 1-5, and the delete-then-insert commit of step 7, both as
// single pgx transactions so a crashed build is never partially visible
// (spec §4.7 step 8, §8 invariant 2).
type EmbeddingStore struct {
	pool *pgxpool.Pool
}

// NewEmbeddingStore constructs C7's CAS-guarded persistence surface.
func NewEmbeddingStore(pool *pgxpool.Pool) *EmbeddingStore {
	return &EmbeddingStore{pool: pool}
}

var _ retrieval.EmbeddingStore = (*EmbeddingStore)(nil)

// AcquireBuild implements spec §4.7 steps 1-5: a transaction with a
// row-level lock that reads (embedding_status, access fields) and, if
// eligible, CASes the row to `embedding` before committing. A status of
// `embedding` older than recoveryHorizon is treated as abandoned and
// reclaimable, same as an explicit retry (spec §4.7 "Recovery").
func (s *EmbeddingStore) AcquireBuild(ctx context.Context, docID uuid.UUID, retry bool, recoveryHorizon time.Duration) (retrieval.AcquireOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return retrieval.AcquireOutcome{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT d.id, d.uploader_id, d.institution_id, d.visibility, d.approval_status,
			d.object_url, d.title, d.requires_upper_review, d.escalated_at,
			d.approver_id, d.approved_at, d.rejection_reason, d.created_at,
			m.embedding_status, m.updated_at
		FROM documents d
		JOIN document_metadata m ON m.document_id = d.id
		WHERE d.id = $1
		FOR UPDATE OF m
	`, docID)

	var (
		doc         document.Document
		status      document.EmbeddingStatus
		statusSince time.Time
	)
	if err := row.Scan(
		&doc.ID, &doc.UploaderID, &doc.InstitutionID, &doc.Visibility, &doc.ApprovalStatus,
		&doc.ObjectURL, &doc.Title, &doc.RequiresUpperReview, &doc.EscalatedAt,
		&doc.ApproverID, &doc.ApprovedAt, &doc.RejectionReason, &doc.CreatedAt,
		&status, &statusSince,
	); err != nil {
		return retrieval.AcquireOutcome{}, err
	}

	eligible := false
	switch status {
	case document.EmbeddingNotEmbedded:
		eligible = true
	case document.EmbeddingFailed:
		eligible = retry
	case document.EmbeddingInProgress:
		// Recovery: an "embedding" row older than the horizon is treated
		// as abandoned and reclaimable (spec §4.7 "Recovery").
		eligible = time.Since(statusSince) > recoveryHorizon
	case document.EmbeddingEmbedded:
		eligible = false
	}

	if !eligible {
		if err := tx.Commit(ctx); err != nil {
			return retrieval.AcquireOutcome{}, err
		}
		return retrieval.AcquireOutcome{Acquired: false, PreviousStatus: status, Doc: doc}, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE document_metadata SET embedding_status = 'embedding', updated_at = NOW()
		WHERE document_id = $1
	`, docID); err != nil {
		return retrieval.AcquireOutcome{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return retrieval.AcquireOutcome{}, err
	}
	return retrieval.AcquireOutcome{Acquired: true, PreviousStatus: status, Doc: doc}, nil
}

// CommitBuild implements spec §4.7 step 7: delete any pre-existing chunks,
// bulk-insert the new ones, and flip status to embedded, all in one
// transaction so readers never observe a mix of old and new chunks (spec
// §8 invariant 2).
func (s *EmbeddingStore) CommitBuild(ctx context.Context, docID uuid.UUID, chunks []retrieval.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM embedding_chunks WHERE document_id = $1`, docID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO embedding_chunks (
				id, document_id, chunk_index, chunk_text, embedding,
				visibility, institution_id, approval_status, uploader_id, requires_upper_review, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, uuid.New(), docID, c.Index, c.Text, pgvector.NewVector(c.Vector),
			c.Access.Visibility, c.Access.InstitutionID, c.Access.ApprovalStatus,
			c.Access.UploaderID, c.Access.RequiresUpperReview, time.Now())
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE document_metadata SET embedding_status = 'embedded', updated_at = NOW()
		WHERE document_id = $1
	`, docID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FailBuild implements spec §4.7 step 8: a fresh transaction that marks
// the document's embedding status failed and appends an audit event,
// never touching any chunk row (partial builds never existed, since
// CommitBuild never ran).
func (s *EmbeddingStore) FailBuild(ctx context.Context, docID uuid.UUID, reason string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE document_metadata SET embedding_status = 'failed', updated_at = NOW()
		WHERE document_id = $1
	`, docID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO audit_events (id, document_id, actor_id, kind, detail, created_at)
		VALUES ($1, $2, $3, 'embedding_failed', $4, NOW())
	`, uuid.New(), docID, uuid.Nil, reason); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
