// Package access implements C4, the pure access-policy evaluator (spec
// §4.4). It has no I/O and no storage dependency: it only reasons over the
// in-memory shape of a viewer and a document's access-relevant columns.
package access

import (
	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/identity"
)

// Row is the subset of a document's columns C4 reasons over: {visibility,
// institution_id, approval_status, uploader_id, requires_upper_review} per
// spec §4.4 item 2. Both forms of the evaluator must derive from it so the
// row-level and bulk forms can never diverge.
type Row struct {
	UploaderID          uuid.UUID
	InstitutionID       uuid.UUID
	Visibility          document.Visibility
	ApprovalStatus      document.ApprovalStatus
	RequiresUpperReview bool
}

// RowOf projects a Document into the access-relevant Row.
func RowOf(d document.Document) Row {
	return Row{
		UploaderID:          d.UploaderID,
		InstitutionID:       d.InstitutionID,
		Visibility:          d.Visibility,
		ApprovalStatus:      d.ApprovalStatus,
		RequiresUpperReview: d.RequiresUpperReview,
	}
}

func visible(status document.ApprovalStatus) bool {
	return status == document.StatusApproved || status == document.StatusPending || status == document.StatusUnderReview
}

// CanView implements the row-level form. Rules are evaluated in the order
// given by spec §4.4; first match wins, final fallthrough denies.
func CanView(viewer identity.Viewer, row Row) bool {
	if viewer.Role == identity.RoleDeveloper {
		return true
	}
	if viewer.UserID == row.UploaderID {
		return true
	}
	sameInstitution := viewer.InstitutionID != nil && *viewer.InstitutionID == row.InstitutionID
	if !visible(row.ApprovalStatus) {
		return viewer.Role == identity.RoleInstitutionAdmin && sameInstitution
	}
	publicApproved := row.Visibility == document.VisibilityPublic && row.ApprovalStatus == document.StatusApproved
	switch viewer.Role {
	case identity.RoleMinistryAdmin:
		if publicApproved {
			return true
		}
		if row.RequiresUpperReview {
			return true
		}
		return sameInstitution
	case identity.RoleInstitutionAdmin:
		return sameInstitution || publicApproved
	case identity.RoleDocumentOfficer:
		if row.ApprovalStatus != document.StatusApproved {
			return false
		}
		if row.Visibility == document.VisibilityPublic {
			return true
		}
		return sameInstitution && (row.Visibility == document.VisibilityInstitutionOnly || row.Visibility == document.VisibilityRestricted)
	case identity.RoleStudent:
		if row.ApprovalStatus != document.StatusApproved {
			return false
		}
		if row.Visibility == document.VisibilityPublic {
			return true
		}
		return sameInstitution && row.Visibility == document.VisibilityInstitutionOnly
	case identity.RolePublicViewer:
		return publicApproved
	default:
		return false
	}
}

// Predicate is C4's bulk form: a reusable verdict function bound to one
// viewer, built once per retrieval and pushed down by C8/C3 (spec §4.9
// step 1: "Compute predicate = C4.predicate(viewer) once"). Matches is
// defined identically to CanView so the two forms can never disagree
// (spec §4.4: "Both forms must yield identical verdicts for every input").
type Predicate struct {
	viewer identity.Viewer
}

// Matches implements document.AccessPredicate.
func (p Predicate) Matches(d document.Document) bool {
	return CanView(p.viewer, RowOf(d))
}

// MatchesRow evaluates the predicate directly against a denormalized Row,
// the shape C8's chunk rows carry (spec §4.8's "predicate pushdown").
func (p Predicate) MatchesRow(row Row) bool {
	return CanView(p.viewer, row)
}

// Viewer exposes the bound viewer, e.g. so an infra adapter can translate
// the predicate into a parameterized SQL WHERE clause instead of calling
// MatchesRow in-process.
func (p Predicate) Viewer() identity.Viewer {
	return p.viewer
}

// ForViewer builds the bulk predicate for viewer (spec §4.4 item 2).
func ForViewer(viewer identity.Viewer) Predicate {
	return Predicate{viewer: viewer}
}

// Evaluator is the C3/C9/C10 facing surface of C4; concrete callers use
// the package-level functions directly, but components that only hold an
// interface reference (e.g. to stay decoupled for tests) can depend on
// this instead.
type Evaluator interface {
	CanView(viewer identity.Viewer, row Row) bool
	ForViewer(viewer identity.Viewer) Predicate
}

// DefaultEvaluator is the stateless, I/O-free implementation.
type DefaultEvaluator struct{}

func (DefaultEvaluator) CanView(viewer identity.Viewer, row Row) bool { return CanView(viewer, row) }
func (DefaultEvaluator) ForViewer(viewer identity.Viewer) Predicate   { return ForViewer(viewer) }

var _ Evaluator = DefaultEvaluator{}
var _ document.AccessPredicate = Predicate{}
