package memrepo

import (
	"sync"
	"time"

	"context"

	"github.com/google/uuid"

	apperrors "github.com/moe-gov/beacon/pkg/errors"

	"github.com/moe-gov/beacon/internal/domain/institution"
)

// InstitutionRepository is C1's in-memory fallback tree store.
type InstitutionRepository struct {
	mu    sync.RWMutex
	nodes map[uuid.UUID]institution.Institution
}

// NewInstitutionRepository constructs an empty in-memory institution tree.
func NewInstitutionRepository() *InstitutionRepository {
	return &InstitutionRepository{nodes: make(map[uuid.UUID]institution.Institution)}
}

var _ institution.Repository = (*InstitutionRepository)(nil)

func (r *InstitutionRepository) CreateMinistry(_ context.Context, name string) (institution.Institution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst := institution.Institution{ID: uuid.New(), Name: name, Kind: institution.KindMinistry, CreatedAt: time.Now()}
	r.nodes[inst.ID] = inst
	return inst, nil
}

func (r *InstitutionRepository) CreateInstitution(_ context.Context, name string, parentMinistryID uuid.UUID) (institution.Institution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	parent := parentMinistryID
	inst := institution.Institution{
		ID: uuid.New(), Name: name, Kind: institution.KindInstitution,
		ParentMinistryID: &parent, CreatedAt: time.Now(),
	}
	r.nodes[inst.ID] = inst
	return inst, nil
}

func (r *InstitutionRepository) Get(_ context.Context, id uuid.UUID) (institution.Institution, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.nodes[id]
	return inst, ok, nil
}

func (r *InstitutionRepository) Descendants(ctx context.Context, ministryID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ministry, ok := r.nodes[ministryID]
	if !ok || ministry.IsDeleted() || ministry.Kind != institution.KindMinistry {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "ministry not found", nil)
	}
	ids := []uuid.UUID{ministryID}
	for id, inst := range r.nodes {
		if inst.IsDeleted() {
			continue
		}
		if inst.ParentMinistryID != nil && *inst.ParentMinistryID == ministryID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *InstitutionRepository) ListChildren(_ context.Context, ministryID uuid.UUID) ([]institution.Institution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []institution.Institution
	for _, inst := range r.nodes {
		if inst.IsDeleted() {
			continue
		}
		if inst.ParentMinistryID != nil && *inst.ParentMinistryID == ministryID {
			out = append(out, inst)
		}
	}
	return out, nil
}
