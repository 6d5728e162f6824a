package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moe-gov/beacon/internal/domain/institution"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// InstitutionRepository implements C1 against a single self-joined table:
// ministries and institutions both live in `institutions`, distinguished
// by `kind`, with `parent_ministry_id` populated only for institution
// rows (spec §4.1, §9's "reject cycles structurally").
type InstitutionRepository struct {
	pool *pgxpool.Pool
}

// NewInstitutionRepository constructs C1's relational store.
func NewInstitutionRepository(pool *pgxpool.Pool) *InstitutionRepository {
	return &InstitutionRepository{pool: pool}
}

func (r *InstitutionRepository) CreateMinistry(ctx context.Context, name string) (institution.Institution, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO institutions (id, name, kind, parent_ministry_id, created_at)
		VALUES ($1, $2, 'ministry', NULL, $3)
		RETURNING id, name, kind, parent_ministry_id, deleted_at, created_at
	`, uuid.New(), name, time.Now())
	return scanInstitution(row)
}

func (r *InstitutionRepository) CreateInstitution(ctx context.Context, name string, parentMinistryID uuid.UUID) (institution.Institution, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO institutions (id, name, kind, parent_ministry_id, created_at)
		VALUES ($1, $2, 'institution', $3, $4)
		RETURNING id, name, kind, parent_ministry_id, deleted_at, created_at
	`, uuid.New(), name, parentMinistryID, time.Now())
	return scanInstitution(row)
}

func (r *InstitutionRepository) Get(ctx context.Context, id uuid.UUID) (institution.Institution, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, kind, parent_ministry_id, deleted_at, created_at
		FROM institutions WHERE id = $1
	`, id)
	inst, err := scanInstitution(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return institution.Institution{}, false, nil
		}
		return institution.Institution{}, false, err
	}
	return inst, true, nil
}

// Descendants implements the self-join backing C4's institution-tree
// helper (spec §4.1): ministryID itself plus every non-deleted
// institution whose parent_ministry_id equals it.
func (r *InstitutionRepository) Descendants(ctx context.Context, ministryID uuid.UUID) ([]uuid.UUID, error) {
	ministry, found, err := r.Get(ctx, ministryID)
	if err != nil {
		return nil, err
	}
	if !found || ministry.IsDeleted() || ministry.Kind != institution.KindMinistry {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "ministry not found", nil)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM institutions
		WHERE id = $1 OR (parent_ministry_id = $1 AND deleted_at IS NULL)
	`, ministryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *InstitutionRepository) ListChildren(ctx context.Context, ministryID uuid.UUID) ([]institution.Institution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, kind, parent_ministry_id, deleted_at, created_at
		FROM institutions
		WHERE parent_ministry_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`, ministryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []institution.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

var _ institution.Repository = (*InstitutionRepository)(nil)

func scanInstitution(row docScanner) (institution.Institution, error) {
	var inst institution.Institution
	if err := row.Scan(&inst.ID, &inst.Name, &inst.Kind, &inst.ParentMinistryID, &inst.DeletedAt, &inst.CreatedAt); err != nil {
		return institution.Institution{}, err
	}
	return inst, nil
}
