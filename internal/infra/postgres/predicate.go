// Package postgres implements the relational persistence for C1's
// institution tree, C2's user store, C3's document lifecycle store, and
// C7's embedding CAS transaction, all against the same pgx pool the
// teacher's uploadask/userrepo packages use.
package postgres

import (
	"fmt"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/identity"
)

// BuildPredicate renders C4's bulk predicate (spec §4.4 item 2) as a
// parameterized SQL boolean expression over columns {visibility,
// institution_id, approval_status, uploader_id, requires_upper_review},
// all qualified by prefix (e.g. "d." for the documents table, "c." for
// embedding_chunks). Because the predicate is bound to one viewer, the
// role-specific branch of access.CanView is resolved here in Go rather
// than re-derived in SQL; this file and access.CanView must be read
// together and kept in lockstep (spec §4.4: "Both forms must yield
// identical verdicts for every input" — enforced by the property test in
// internal/domain/access).
//
// startArg is the next free $N placeholder; args are appended in the
// order they appear in the returned SQL so callers can concatenate this
// fragment after their own positional parameters.
func BuildPredicate(pred access.Predicate, prefix string, startArg int) (string, []any) {
	v := pred.Viewer()
	n := startArg
	next := func() int { id := n; n++; return id }

	switch v.Role {
	case identity.RoleDeveloper:
		return "TRUE", nil
	}

	uploaderArg := next()
	args := []any{v.UserID}
	uploaderClause := fmt.Sprintf("%suploader_id = $%d", prefix, uploaderArg)

	visibleStatuses := fmt.Sprintf("%sapproval_status IN ('approved','pending','under_review')", prefix)
	publicApproved := fmt.Sprintf("(%svisibility = 'public' AND %sapproval_status = 'approved')", prefix, prefix)

	var roleClause string
	switch v.Role {
	case identity.RoleMinistryAdmin, identity.RoleInstitutionAdmin:
		instArg := next()
		args = append(args, safeInstitutionID(v))
		sameInstitution := fmt.Sprintf("%sinstitution_id = $%d", prefix, instArg)
		if v.Role == identity.RoleMinistryAdmin {
			roleClause = fmt.Sprintf(
				"(%s AND (%s OR %srequires_upper_review = TRUE OR %s))",
				visibleStatuses, publicApproved, prefix, sameInstitution,
			)
		} else {
			// institution_admin: same-institution access is not gated on
			// visible-status (spec §4.4 rule 3's carve-out covers the
			// institution_admin's own drafts/rejections too), matching
			// access.CanView's short-circuit ordering exactly.
			roleClause = fmt.Sprintf("(%s OR (%s AND %s))", sameInstitution, visibleStatuses, publicApproved)
		}

	case identity.RoleDocumentOfficer:
		instArg := next()
		args = append(args, safeInstitutionID(v))
		sameInstitution := fmt.Sprintf("%sinstitution_id = $%d", prefix, instArg)
		roleClause = fmt.Sprintf(
			"(%s AND %sapproval_status = 'approved' AND (%svisibility = 'public' OR (%svisibility IN ('institution_only','restricted') AND %s)))",
			visibleStatuses, prefix, prefix, prefix, sameInstitution,
		)

	case identity.RoleStudent:
		instArg := next()
		args = append(args, safeInstitutionID(v))
		sameInstitution := fmt.Sprintf("%sinstitution_id = $%d", prefix, instArg)
		roleClause = fmt.Sprintf(
			"(%s AND %sapproval_status = 'approved' AND (%svisibility = 'public' OR (%svisibility = 'institution_only' AND %s)))",
			visibleStatuses, prefix, prefix, prefix, sameInstitution,
		)

	case identity.RolePublicViewer:
		roleClause = fmt.Sprintf("(%s AND %s)", visibleStatuses, publicApproved)

	default:
		roleClause = "FALSE"
	}

	// access.CanView's ordering: uploader ownership allows regardless of
	// status; otherwise an invisible status only ever permits the
	// institution_admin carve-out (folded into roleClause above), and a
	// visible status falls to the role switch.
	sql := fmt.Sprintf("(%s OR (%s AND %s))", uploaderClause, visibleStatuses, roleClause)
	if v.Role == identity.RoleInstitutionAdmin || v.Role == identity.RoleMinistryAdmin {
		// these two roles' roleClause already folds in the
		// invisible-status carve-out, so it must be evaluated
		// unconditionally rather than gated on visibleStatuses.
		sql = fmt.Sprintf("(%s OR %s)", uploaderClause, roleClause)
	}
	return sql, args
}

func safeInstitutionID(v identity.Viewer) any {
	if v.InstitutionID == nil {
		return nil
	}
	return *v.InstitutionID
}
