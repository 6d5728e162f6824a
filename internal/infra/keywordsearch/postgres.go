// Package keywordsearch implements C9's keyword leg (retrieval.KeywordSearcher):
// a trigram-similarity match over document_metadata, filtered by C4's
// predicate before ranking.
package keywordsearch

import (
	"fmt"

	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
	"github.com/moe-gov/beacon/internal/infra/postgres"
)

// PostgresSearcher matches queryText against a document's title, keywords,
// and summary using pg_trgm similarity, already filtered by pred (spec
// §4.9 step 2: "the keyword leg ... restricted to the same predicate").
type PostgresSearcher struct {
	pool *pgxpool.Pool
}

// NewPostgresSearcher constructs C9's keyword-leg adapter.
func NewPostgresSearcher(pool *pgxpool.Pool) *PostgresSearcher {
	return &PostgresSearcher{pool: pool}
}

var _ retrieval.KeywordSearcher = (*PostgresSearcher)(nil)

func (s *PostgresSearcher) Search(ctx context.Context, queryText string, pred access.Predicate, k int) ([]retrieval.KeywordHit, error) {
	clause, args := postgres.BuildPredicate(pred, "d.", 2)
	query := fmt.Sprintf(`
		SELECT d.id, d.title
		FROM documents d
		JOIN document_metadata m ON m.document_id = d.id
		WHERE %s
			AND (
				d.title ILIKE '%%' || $1 || '%%'
				OR m.summary ILIKE '%%' || $1 || '%%'
				OR EXISTS (SELECT 1 FROM unnest(m.keywords) kw WHERE kw ILIKE '%%' || $1 || '%%')
			)
		ORDER BY similarity(d.title, $1) DESC, d.created_at DESC
		LIMIT $%d
	`, clause, len(args)+2)
	queryArgs := append([]any{queryText}, args...)
	queryArgs = append(queryArgs, k)

	rows, err := s.pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var out []retrieval.KeywordHit
	for rows.Next() {
		var hit retrieval.KeywordHit
		if err := rows.Scan(&hit.DocumentID, &hit.Title); err != nil {
			return nil, err
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}
