package document

import (
	"context"

	"github.com/moe-gov/beacon/internal/domain/identity"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// HierarchyChecker answers the one institution-tree question C11 needs:
// is institutionID governed by the ministry ministryID administers. C3
// stays free of a direct import on the institution package by depending
// on this narrow interface instead (spec §4.2's descendants(i) helper,
// consumed here rather than duplicated).
type HierarchyChecker interface {
	IsUnderMinistry(ctx context.Context, ministryAdminInstitutionID, docInstitutionID string) (bool, error)
}

func isAdmin(role identity.Role) bool {
	return role == identity.RoleInstitutionAdmin || role == identity.RoleMinistryAdmin || role == identity.RoleDeveloper
}

func sameInstitution(actor identity.Viewer, institutionID string) bool {
	return actor.InstitutionID != nil && actor.InstitutionID.String() == institutionID
}

// upperAuthority reports whether actor may act as the "upper authority"
// over doc for pending/under_review transitions (spec §4.11): a
// ministry_admin whose institution is the document's parent ministry, or
// a developer.
func upperAuthority(ctx context.Context, hierarchy HierarchyChecker, actor identity.Viewer, docInstitutionID string) (bool, error) {
	if actor.Role == identity.RoleDeveloper {
		return true, nil
	}
	if actor.Role != identity.RoleMinistryAdmin || actor.InstitutionID == nil {
		return false, nil
	}
	return hierarchy.IsUnderMinistry(ctx, actor.InstitutionID.String(), docInstitutionID)
}

// tableEntry reports whether (from, to) is a structural edge of the C11
// table at all, independent of who the actor is. Used to distinguish an
// unknown/illegal move (invalid_transition) from a legal move the current
// actor isn't authorized to make (forbidden).
func tableEntry(from, to ApprovalStatus) bool {
	switch {
	case from == StatusDraft && to == StatusPending,
		from == StatusPending && to == StatusUnderReview,
		(from == StatusPending || from == StatusUnderReview) &&
			(to == StatusApproved || to == StatusRejected || to == StatusChangesRequested),
		(from == StatusRejected || from == StatusChangesRequested) && to == StatusPending,
		from == StatusApproved && to == StatusArchived:
		return true
	case to == StatusFlagged:
		return true
	default:
		return false
	}
}

// canTransition implements the C11 table's actor gate (spec §4.11); only
// call once tableEntry(from, to) is known true.
func canTransition(ctx context.Context, hierarchy HierarchyChecker, actor identity.Viewer, doc Document, to ApprovalStatus) (bool, error) {
	from := doc.ApprovalStatus
	docInstitutionID := doc.InstitutionID.String()
	isUploader := actor.UserID == doc.UploaderID
	switch {
	case from == StatusDraft && to == StatusPending:
		if actor.Role == identity.RoleDeveloper || isUploader {
			return true, nil
		}
		return sameInstitution(actor, docInstitutionID) && actor.Role == identity.RoleInstitutionAdmin, nil

	case (from == StatusPending) && to == StatusUnderReview:
		return upperAuthority(ctx, hierarchy, actor, docInstitutionID)

	case (from == StatusPending || from == StatusUnderReview) &&
		(to == StatusApproved || to == StatusRejected || to == StatusChangesRequested):
		return upperAuthority(ctx, hierarchy, actor, docInstitutionID)

	case (from == StatusRejected || from == StatusChangesRequested) && to == StatusPending:
		if actor.Role == identity.RoleDeveloper || isUploader {
			return true, nil
		}
		return sameInstitution(actor, docInstitutionID) && actor.Role == identity.RoleInstitutionAdmin, nil

	case from == StatusApproved && to == StatusArchived:
		if !isAdmin(actor.Role) {
			return false, nil
		}
		if actor.Role == identity.RoleDeveloper || sameInstitution(actor, docInstitutionID) {
			return true, nil
		}
		return upperAuthority(ctx, hierarchy, actor, docInstitutionID)

	case to == StatusFlagged:
		return isAdmin(actor.Role), nil

	default:
		return false, nil
	}
}

// requiresReason reports whether to requires a non-empty rejection_reason.
func requiresReason(to ApprovalStatus) bool {
	return to == StatusRejected || to == StatusChangesRequested
}

var errInvalidTransition = apperrors.Wrap(apperrors.CodeInvalidTransition, "transition not permitted", nil)
