package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moe-gov/beacon/internal/domain/identity"
)

// IdentityRepository persists BEACON accounts (spec §4.2), following the
// teacher's userrepo.PostgresRepository scan-by-hand shape.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository constructs C2's relational user store.
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

var _ identity.Repository = (*IdentityRepository)(nil)

func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (identity.User, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, role, institution_id, approved, verified, deleted_at, password_hash, created_at
		FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (identity.User, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, role, institution_id, approved, verified, deleted_at, password_hash, created_at
		FROM users WHERE email = $1
	`, email)
	return scanUser(row)
}

func (r *IdentityRepository) Create(ctx context.Context, user identity.User) (identity.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, role, institution_id, approved, verified, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, user.ID, user.Email, user.Role, user.InstitutionID, user.Approved, user.Verified, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return identity.User{}, err
	}
	return user, nil
}

func (r *IdentityRepository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET approved = $1 WHERE id = $2`, approved, id)
	return err
}

func (r *IdentityRepository) SetRole(ctx context.Context, id uuid.UUID, role identity.Role) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
	return err
}

func scanUser(row docScanner) (identity.User, bool, error) {
	var u identity.User
	if err := row.Scan(&u.ID, &u.Email, &u.Role, &u.InstitutionID, &u.Approved, &u.Verified, &u.DeletedAt, &u.PasswordHash, &u.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return identity.User{}, false, nil
		}
		return identity.User{}, false, err
	}
	return u, true, nil
}
