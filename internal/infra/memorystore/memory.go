package memorystore

import (
	"context"
	"sync"

	"github.com/moe-gov/beacon/internal/domain/answerer"
)

// MemoryStore is C10's in-process fallback, used when no Postgres DSN is
// configured.
type MemoryStore struct {
	mu      sync.Mutex
	threads map[string][]answerer.Message
}

// NewMemoryStore constructs an empty in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]answerer.Message)}
}

var _ answerer.MemoryStore = (*MemoryStore)(nil)

func (s *MemoryStore) Append(ctx context.Context, threadID string, msg answerer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = append(s.threads[threadID], msg)
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, threadID string, maxMessages int) ([]answerer.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.threads[threadID]
	if maxMessages <= 0 || len(msgs) <= maxMessages {
		out := make([]answerer.Message, len(msgs))
		copy(out, msgs)
		return out, nil
	}
	start := len(msgs) - maxMessages
	out := make([]answerer.Message, maxMessages)
	copy(out, msgs[start:])
	return out, nil
}
