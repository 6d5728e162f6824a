package access

import (
	"testing"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/identity"
)

var allRoles = []identity.Role{
	identity.RoleDeveloper,
	identity.RoleMinistryAdmin,
	identity.RoleInstitutionAdmin,
	identity.RoleDocumentOfficer,
	identity.RoleStudent,
	identity.RolePublicViewer,
}

var allVisibilities = []document.Visibility{
	document.VisibilityPublic,
	document.VisibilityInstitutionOnly,
	document.VisibilityRestricted,
	document.VisibilityConfidential,
}

var allStatuses = []document.ApprovalStatus{
	document.StatusDraft,
	document.StatusPending,
	document.StatusUnderReview,
	document.StatusApproved,
	document.StatusRejected,
}

// sqlMirror re-derives the same boolean formula postgres.BuildPredicate
// renders as SQL, using Go operators instead of SQL text, so the two forms
// can be compared without a live database. Any change to CanView's
// short-circuit ordering that isn't mirrored in postgres.BuildPredicate
// should make this test (or BuildPredicate's own doc comment) go stale
// first, which is the point of keeping both read together.
func sqlMirror(v identity.Viewer, row Row) bool {
	if v.Role == identity.RoleDeveloper {
		return true
	}
	uploader := v.UserID == row.UploaderID
	visible := row.ApprovalStatus == document.StatusApproved || row.ApprovalStatus == document.StatusPending || row.ApprovalStatus == document.StatusUnderReview
	publicApproved := row.Visibility == document.VisibilityPublic && row.ApprovalStatus == document.StatusApproved
	sameInstitution := v.InstitutionID != nil && *v.InstitutionID == row.InstitutionID

	var roleClause bool
	switch v.Role {
	case identity.RoleMinistryAdmin:
		roleClause = publicApproved || row.RequiresUpperReview || sameInstitution
		roleClause = visible && roleClause
	case identity.RoleInstitutionAdmin:
		roleClause = sameInstitution || (visible && publicApproved)
	case identity.RoleDocumentOfficer:
		roleClause = visible && row.ApprovalStatus == document.StatusApproved &&
			(row.Visibility == document.VisibilityPublic ||
				((row.Visibility == document.VisibilityInstitutionOnly || row.Visibility == document.VisibilityRestricted) && sameInstitution))
	case identity.RoleStudent:
		roleClause = visible && row.ApprovalStatus == document.StatusApproved &&
			(row.Visibility == document.VisibilityPublic || (row.Visibility == document.VisibilityInstitutionOnly && sameInstitution))
	case identity.RolePublicViewer:
		roleClause = visible && publicApproved
	default:
		roleClause = false
	}

	if v.Role == identity.RoleInstitutionAdmin || v.Role == identity.RoleMinistryAdmin {
		return uploader || roleClause
	}
	return uploader || (visible && roleClause)
}

// TestCanViewMatchesSQLMirror is the spec §4.4 invariant test: the
// row-level and bulk-predicate forms must yield identical verdicts for
// every input, across the full Cartesian product of role × visibility ×
// status × requires_upper_review × same/different institution × uploader
// match.
func TestCanViewMatchesSQLMirror(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()
	instX := uuid.New()
	instY := uuid.New()

	for _, role := range allRoles {
		for _, vis := range allVisibilities {
			for _, status := range allStatuses {
				for _, requiresReview := range []bool{false, true} {
					for _, viewerInst := range []*uuid.UUID{&instX, &instY, nil} {
						for _, uploaderIsViewer := range []bool{false, true} {
							uploaderID := userB
							if uploaderIsViewer {
								uploaderID = userA
							}
							viewer := identity.Viewer{UserID: userA, Role: role, InstitutionID: viewerInst}
							row := Row{
								UploaderID:          uploaderID,
								InstitutionID:       instX,
								Visibility:          vis,
								ApprovalStatus:      status,
								RequiresUpperReview: requiresReview,
							}
							got := CanView(viewer, row)
							want := sqlMirror(viewer, row)
							if got != want {
								t.Fatalf("CanView/BuildPredicate mismatch: role=%s vis=%s status=%s requiresReview=%v viewerInst=%v uploaderIsViewer=%v: CanView=%v sqlMirror=%v",
									role, vis, status, requiresReview, viewerInst, uploaderIsViewer, got, want)
							}
						}
					}
				}
			}
		}
	}
}

func TestPredicateMatchesRowDelegatesToCanView(t *testing.T) {
	viewer := identity.Viewer{UserID: uuid.New(), Role: identity.RoleStudent}
	row := Row{Visibility: document.VisibilityPublic, ApprovalStatus: document.StatusApproved}
	pred := ForViewer(viewer)
	if pred.MatchesRow(row) != CanView(viewer, row) {
		t.Fatal("Predicate.MatchesRow diverged from CanView")
	}
}

func TestDeveloperSeesEverything(t *testing.T) {
	viewer := identity.Viewer{UserID: uuid.New(), Role: identity.RoleDeveloper}
	row := Row{Visibility: document.VisibilityRestricted, ApprovalStatus: document.StatusRejected}
	if !CanView(viewer, row) {
		t.Fatal("developer role must see every document regardless of status or visibility")
	}
}

func TestUploaderAlwaysSeesOwnDraft(t *testing.T) {
	uploader := uuid.New()
	viewer := identity.Viewer{UserID: uploader, Role: identity.RoleStudent}
	row := Row{UploaderID: uploader, Visibility: document.VisibilityRestricted, ApprovalStatus: document.StatusDraft}
	if !CanView(viewer, row) {
		t.Fatal("uploader must always see their own document regardless of status")
	}
}
