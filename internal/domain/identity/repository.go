package identity

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists BEACON accounts. Google/SSO linkage, password reset,
// and the rest of the registration surface are the auth collaborator's
// concern (spec §1 — HTTP transport and JWT parsing are out of scope); this
// repository only supports the role/institution/approval lookups C2 needs.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, bool, error)
	GetByEmail(ctx context.Context, email string) (User, bool, error)
	Create(ctx context.Context, user User) (User, error)
	SetApproved(ctx context.Context, id uuid.UUID, approved bool) error
	SetRole(ctx context.Context, id uuid.UUID, role Role) error
}
