// Package memorystore implements answerer.MemoryStore: conversation turn
// persistence for C10, grounded on the teacher's QA-session history tables,
// plus an in-memory fallback for local runs and tests.
package memorystore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moe-gov/beacon/internal/domain/answerer"
)

// PostgresStore persists conversation turns keyed by an opaque thread id
// (spec §4's supplemented "conversation memory" feature).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs C10's relational conversation store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ answerer.MemoryStore = (*PostgresStore)(nil)

func (s *PostgresStore) Append(ctx context.Context, threadID string, msg answerer.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversation_messages (thread_id, role, content, created_at)
		VALUES ($1, $2, $3, NOW())
	`, threadID, msg.Role, msg.Content)
	return err
}

func (s *PostgresStore) Recent(ctx context.Context, threadID string, maxMessages int) ([]answerer.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT role, content FROM (
			SELECT role, content, created_at FROM conversation_messages
			WHERE thread_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent ORDER BY created_at ASC
	`, threadID, maxMessages)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []answerer.Message
	for rows.Next() {
		var m answerer.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
