package identity

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of BEACON roles. The list is closed by convention;
// developer is a singleton role held by the platform's own engineers.
type Role string

const (
	RoleDeveloper        Role = "developer"
	RoleMinistryAdmin    Role = "ministry_admin"
	RoleInstitutionAdmin Role = "institution_admin"
	RoleDocumentOfficer  Role = "document_officer"
	RoleStudent          Role = "student"
	RolePublicViewer     Role = "public_viewer"
)

// ValidRole reports whether r belongs to the closed role set.
func ValidRole(r Role) bool {
	switch r {
	case RoleDeveloper, RoleMinistryAdmin, RoleInstitutionAdmin, RoleDocumentOfficer, RoleStudent, RolePublicViewer:
		return true
	default:
		return false
	}
}

// Viewer is the resolved identity of a caller: the shape every downstream
// component (C4, C9, C10, C11) reasons about.
type Viewer struct {
	UserID        uuid.UUID
	Role          Role
	InstitutionID *uuid.UUID
}

// User is a persisted BEACON account.
type User struct {
	ID            uuid.UUID
	Email         string
	Role          Role
	InstitutionID *uuid.UUID
	Approved      bool
	Verified      bool
	DeletedAt     *time.Time
	PasswordHash  string
	CreatedAt     time.Time
}

// Viewer projects the stored user into the Viewer shape C4/C9/C10 consume.
func (u User) Viewer() Viewer {
	return Viewer{UserID: u.ID, Role: u.Role, InstitutionID: u.InstitutionID}
}

// Usable reports whether the account may authenticate: not soft-deleted and
// approved (spec §4.2: "Must reject soft-deleted or unapproved users").
func (u User) Usable() bool {
	return u.DeletedAt == nil && u.Approved
}
