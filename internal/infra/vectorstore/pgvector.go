// Package vectorstore implements C8 (retrieval.VectorStore): a pgvector
// relational store grounded on the pack's Postgres vector examples, plus an
// in-memory fallback for local runs and tests.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
	"github.com/moe-gov/beacon/internal/infra/postgres"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// PostgresStore is C8 against the embedding_chunks table: cosine distance
// via pgvector's `<=>` operator, with the denormalized access columns
// filtered by C4's predicate pushed straight into the WHERE clause (spec
// §4.8, §4.4 item 2).
type PostgresStore struct {
	pool *pgxpool.Pool
	dim  int
}

// NewPostgresStore constructs C8's relational vector store. dim is the
// embedding.vector_dim the embedder is configured to produce (spec §6);
// UpsertDocument refuses any chunk whose vector doesn't match it before
// writing a single row (spec §8: "Dimensional mismatch refusal").
func NewPostgresStore(pool *pgxpool.Pool, dim int) *PostgresStore {
	return &PostgresStore{pool: pool, dim: dim}
}

var _ retrieval.VectorStore = (*PostgresStore)(nil)

func (s *PostgresStore) UpsertDocument(ctx context.Context, docID uuid.UUID, chunks []retrieval.Chunk) error {
	if s.dim > 0 {
		for _, c := range chunks {
			if len(c.Vector) != s.dim {
				return apperrors.Wrap(apperrors.CodeInvalidTransition,
					fmt.Sprintf("embedding dimension mismatch: got %d, configured %d", len(c.Vector), s.dim), nil)
			}
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM embedding_chunks WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("delete existing chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO embedding_chunks (
				id, document_id, chunk_index, chunk_text, embedding,
				visibility, institution_id, approval_status, uploader_id, requires_upper_review, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
		`, uuid.New(), docID, c.Index, c.Text, pgvector.NewVector(c.Vector),
			c.Access.Visibility, c.Access.InstitutionID, c.Access.ApprovalStatus,
			c.Access.UploaderID, c.Access.RequiresUpperReview)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, docID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM embedding_chunks WHERE document_id = $1`, docID)
	return err
}

func (s *PostgresStore) Search(ctx context.Context, queryVector []float32, k int, pred access.Predicate) ([]retrieval.ScoredChunk, error) {
	return s.search(ctx, queryVector, k, pred, nil)
}

func (s *PostgresStore) SearchWithinDocument(ctx context.Context, docID uuid.UUID, queryVector []float32, k int, pred access.Predicate) ([]retrieval.ScoredChunk, error) {
	return s.search(ctx, queryVector, k, pred, &docID)
}

// search implements spec §4.8's ranked read: predicate pushdown first,
// ascending cosine distance, ties broken by (document_id, chunk_index) so
// a repeated query over an unchanged index is reproducible (spec §8
// invariant 4).
func (s *PostgresStore) search(ctx context.Context, queryVector []float32, k int, pred access.Predicate, withinDoc *uuid.UUID) ([]retrieval.ScoredChunk, error) {
	clause, args := postgres.BuildPredicate(pred, "", 2)
	query := fmt.Sprintf(`
		SELECT document_id, chunk_index, chunk_text, 1 - (embedding <=> $1) AS score,
			visibility, institution_id, approval_status, uploader_id, requires_upper_review
		FROM embedding_chunks
		WHERE %s
	`, clause)
	queryArgs := append([]any{pgvector.NewVector(queryVector)}, args...)

	if withinDoc != nil {
		query += fmt.Sprintf(" AND document_id = $%d", len(queryArgs)+1)
		queryArgs = append(queryArgs, *withinDoc)
	}
	query += fmt.Sprintf(" ORDER BY embedding <=> $1, document_id ASC, chunk_index ASC LIMIT $%d", len(queryArgs)+1)
	queryArgs = append(queryArgs, k)

	rows, err := s.pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("search embedding_chunks: %w", err)
	}
	defer rows.Close()

	var out []retrieval.ScoredChunk
	for rows.Next() {
		var c retrieval.ScoredChunk
		if err := rows.Scan(
			&c.DocumentID, &c.ChunkIndex, &c.Text, &c.Score,
			&c.Access.Visibility, &c.Access.InstitutionID, &c.Access.ApprovalStatus,
			&c.Access.UploaderID, &c.Access.RequiresUpperReview,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResyncAccessColumns overwrites every chunk's denormalized access columns
// with fields (spec §4.8's staleness policy: a workflow transition must
// propagate within a bounded delay, spec §5).
func (s *PostgresStore) ResyncAccessColumns(ctx context.Context, docID uuid.UUID, fields retrieval.AccessFields) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE embedding_chunks SET
			visibility = $1, institution_id = $2, approval_status = $3,
			uploader_id = $4, requires_upper_review = $5
		WHERE document_id = $6
	`, fields.Visibility, fields.InstitutionID, fields.ApprovalStatus,
		fields.UploaderID, fields.RequiresUpperReview, docID)
	return err
}
