package objectstore

import (
	"context"
	"sync"

	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// MemoryFetcher is C5's in-process fallback for local runs and tests, used
// when no storage endpoint is configured.
type MemoryFetcher struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryFetcher constructs an empty in-memory object store.
func NewMemoryFetcher() *MemoryFetcher {
	return &MemoryFetcher{objects: make(map[string][]byte)}
}

// Put seeds an object, used by tests and the local dev seed path.
func (f *MemoryFetcher) Put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *MemoryFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "object not found", nil)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
