// Package memrepo provides in-process fallback repositories for C1-C3,
// used when no Postgres DSN is configured, following the teacher's
// per-domain MemoryRepository convention.
package memrepo

import (
	"sync"

	"context"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/identity"
)

// IdentityRepository is C2's in-memory fallback account store.
type IdentityRepository struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]identity.User
	emailIndex map[string]uuid.UUID
}

// NewIdentityRepository constructs an empty in-memory account store.
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{
		users:      make(map[uuid.UUID]identity.User),
		emailIndex: make(map[string]uuid.UUID),
	}
}

var _ identity.Repository = (*IdentityRepository)(nil)

func (r *IdentityRepository) GetByID(_ context.Context, id uuid.UUID) (identity.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok, nil
}

func (r *IdentityRepository) GetByEmail(_ context.Context, email string) (identity.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.emailIndex[email]
	if !ok {
		return identity.User{}, false, nil
	}
	return r.users[id], true, nil
}

func (r *IdentityRepository) Create(_ context.Context, user identity.User) (identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.users[user.ID] = user
	r.emailIndex[user.Email] = user.ID
	return user, nil
}

func (r *IdentityRepository) SetApproved(_ context.Context, id uuid.UUID, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	u.Approved = approved
	r.users[id] = u
	return nil
}

func (r *IdentityRepository) SetRole(_ context.Context, id uuid.UUID, role identity.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	u.Role = role
	r.users[id] = u
	return nil
}
