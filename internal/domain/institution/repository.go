package institution

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists institutions and answers the tree queries C4 relies on.
type Repository interface {
	CreateMinistry(ctx context.Context, name string) (Institution, error)
	CreateInstitution(ctx context.Context, name string, parentMinistryID uuid.UUID) (Institution, error)
	Get(ctx context.Context, id uuid.UUID) (Institution, bool, error)
	// Descendants returns the non-deleted institution ids under ministryID,
	// including ministryID itself. Fails with NotFound if ministryID is
	// missing, deleted, or not a ministry.
	Descendants(ctx context.Context, ministryID uuid.UUID) ([]uuid.UUID, error)
	ListChildren(ctx context.Context, ministryID uuid.UUID) ([]Institution, error)
}
