package institution

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of institution tree node types.
type Kind string

const (
	KindMinistry    Kind = "ministry"
	KindInstitution Kind = "institution"
)

// Institution is a node in the two-level ministry/institution hierarchy.
type Institution struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Kind             Kind       `json:"kind"`
	ParentMinistryID *uuid.UUID `json:"parentMinistryId,omitempty"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// IsDeleted reports whether the row has been soft deleted.
func (i Institution) IsDeleted() bool {
	return i.DeletedAt != nil
}
