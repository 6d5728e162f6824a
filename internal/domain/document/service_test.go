package document_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/identity"
	"github.com/moe-gov/beacon/internal/infra/memrepo"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// fakeHierarchy answers upper-authority checks without a real institution
// tree: adminInstitutionID is treated as the ministry governing every
// institution in governedInstitutionIDs.
type fakeHierarchy struct {
	adminInstitutionID string
	governed           map[string]bool
}

func (f fakeHierarchy) IsUnderMinistry(_ context.Context, ministryAdminInstitutionID, docInstitutionID string) (bool, error) {
	if ministryAdminInstitutionID != f.adminInstitutionID {
		return false, nil
	}
	return f.governed[docInstitutionID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateSelfAuthoritativeForMinistryAdmin(t *testing.T) {
	repo := memrepo.NewDocumentRepository()
	svc := document.NewService(repo, fakeHierarchy{}, testLogger())
	uploader := identity.Viewer{UserID: uuid.New(), Role: identity.RoleMinistryAdmin}

	doc, err := svc.Create(context.Background(), uploader, uuid.New(), document.VisibilityPublic, "s3://bucket/key", "Circular")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ApprovalStatus != document.StatusApproved {
		t.Fatalf("expected ministry_admin upload to start approved, got %s", doc.ApprovalStatus)
	}
}

func TestCreateDefaultsToDraftForStudent(t *testing.T) {
	repo := memrepo.NewDocumentRepository()
	svc := document.NewService(repo, fakeHierarchy{}, testLogger())
	uploader := identity.Viewer{UserID: uuid.New(), Role: identity.RoleStudent}

	doc, err := svc.Create(context.Background(), uploader, uuid.New(), document.VisibilityInstitutionOnly, "s3://bucket/key", "Notes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ApprovalStatus != document.StatusDraft {
		t.Fatalf("expected student upload to start draft, got %s", doc.ApprovalStatus)
	}
}

func TestTransitionUnknownEdgeIsInvalid(t *testing.T) {
	repo := memrepo.NewDocumentRepository()
	svc := document.NewService(repo, fakeHierarchy{}, testLogger())
	uploader := identity.Viewer{UserID: uuid.New(), Role: identity.RoleStudent}
	instID := uuid.New()
	doc, _ := svc.Create(context.Background(), uploader, instID, document.VisibilityPublic, "s3://bucket/key", "T")

	result, err := svc.Transition(context.Background(), doc.ID, document.StatusApproved, uploader, "")
	if !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected an invalid_transition error, got %v", err)
	}
	if result != document.TransitionInvalid {
		t.Fatalf("expected invalid_transition for draft->approved, got %s", result)
	}
}

func TestTransitionForbiddenForWrongActor(t *testing.T) {
	repo := memrepo.NewDocumentRepository()
	svc := document.NewService(repo, fakeHierarchy{}, testLogger())
	uploader := identity.Viewer{UserID: uuid.New(), Role: identity.RoleStudent}
	instID := uuid.New()
	doc, _ := svc.Create(context.Background(), uploader, instID, document.VisibilityPublic, "s3://bucket/key", "T")

	otherStudent := identity.Viewer{UserID: uuid.New(), Role: identity.RoleStudent}
	result, err := svc.Transition(context.Background(), doc.ID, document.StatusPending, otherStudent, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != document.TransitionForbidden {
		t.Fatalf("expected forbidden for a non-uploader/non-admin, got %s", result)
	}
}

func TestTransitionForbiddenStillRecordsAudit(t *testing.T) {
	repo := memrepo.NewDocumentRepository()
	svc := document.NewService(repo, fakeHierarchy{}, testLogger())
	uploader := identity.Viewer{UserID: uuid.New(), Role: identity.RoleStudent}
	instID := uuid.New()
	doc, _ := svc.Create(context.Background(), uploader, instID, document.VisibilityPublic, "s3://bucket/key", "T")

	otherStudent := identity.Viewer{UserID: uuid.New(), Role: identity.RoleStudent}
	result, err := svc.Transition(context.Background(), doc.ID, document.StatusPending, otherStudent, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != document.TransitionForbidden {
		t.Fatalf("expected forbidden, got %s", result)
	}

	events := repo.AuditLog(context.Background(), doc.ID)
	if len(events) == 0 {
		t.Fatal("expected a denied transition to still record an audit event")
	}
	last := events[len(events)-1]
	if last.Kind != "transition_denied:pending" {
		t.Fatalf("expected a transition_denied audit event, got %q", last.Kind)
	}
	if last.ActorID != otherStudent.UserID {
		t.Fatalf("expected the audit event to record the denied actor, got %s", last.ActorID)
	}
}

func TestTransitionRejectedRequiresReason(t *testing.T) {
	repo := memrepo.NewDocumentRepository()
	adminInstID := uuid.New()
	hierarchy := fakeHierarchy{adminInstitutionID: adminInstID.String(), governed: map[string]bool{}}
	svc := document.NewService(repo, hierarchy, testLogger())
	uploader := identity.Viewer{UserID: uuid.New(), Role: identity.RoleStudent}
	instID := uuid.New()
	hierarchy.governed[instID.String()] = true

	doc, _ := svc.Create(context.Background(), uploader, instID, document.VisibilityPublic, "s3://bucket/key", "T")
	result, err := svc.Transition(context.Background(), doc.ID, document.StatusPending, uploader, "")
	if err != nil || result != document.TransitionOK {
		t.Fatalf("expected draft->pending to succeed, got %s, err=%v", result, err)
	}

	ministryAdmin := identity.Viewer{UserID: uuid.New(), Role: identity.RoleMinistryAdmin, InstitutionID: &adminInstID}
	result, err = svc.Transition(context.Background(), doc.ID, document.StatusRejected, ministryAdmin, "")
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected an invalid_input error for a missing reason, got %v", err)
	}
	if result != document.TransitionInvalid {
		t.Fatalf("expected rejection without a reason to be invalid_transition, got %s", result)
	}

	result, err = svc.Transition(context.Background(), doc.ID, document.StatusRejected, ministryAdmin, "missing citations")
	if err != nil || result != document.TransitionOK {
		t.Fatalf("expected rejection with a reason to succeed, got %s, err=%v", result, err)
	}
}

func TestFullWorkflowToApproved(t *testing.T) {
	repo := memrepo.NewDocumentRepository()
	adminInstID := uuid.New()
	instID := uuid.New()
	hierarchy := fakeHierarchy{adminInstitutionID: adminInstID.String(), governed: map[string]bool{instID.String(): true}}
	svc := document.NewService(repo, hierarchy, testLogger())

	uploader := identity.Viewer{UserID: uuid.New(), Role: identity.RoleStudent}
	doc, _ := svc.Create(context.Background(), uploader, instID, document.VisibilityPublic, "s3://bucket/key", "T")

	if r, err := svc.Transition(context.Background(), doc.ID, document.StatusPending, uploader, ""); err != nil || r != document.TransitionOK {
		t.Fatalf("draft->pending: %s, %v", r, err)
	}

	ministryAdmin := identity.Viewer{UserID: uuid.New(), Role: identity.RoleMinistryAdmin, InstitutionID: &adminInstID}
	if r, err := svc.Transition(context.Background(), doc.ID, document.StatusUnderReview, ministryAdmin, ""); err != nil || r != document.TransitionOK {
		t.Fatalf("pending->under_review: %s, %v", r, err)
	}
	if r, err := svc.Transition(context.Background(), doc.ID, document.StatusApproved, ministryAdmin, ""); err != nil || r != document.TransitionOK {
		t.Fatalf("under_review->approved: %s, %v", r, err)
	}

	got, found, err := svc.Get(context.Background(), doc.ID)
	if err != nil || !found {
		t.Fatalf("expected document to be found: %v", err)
	}
	if got.ApprovalStatus != document.StatusApproved {
		t.Fatalf("expected approved, got %s", got.ApprovalStatus)
	}
}

func TestFlaggedNeverChangesApprovalStatus(t *testing.T) {
	repo := memrepo.NewDocumentRepository()
	svc := document.NewService(repo, fakeHierarchy{}, testLogger())
	uploader := identity.Viewer{UserID: uuid.New(), Role: identity.RoleMinistryAdmin}
	doc, _ := svc.Create(context.Background(), uploader, uuid.New(), document.VisibilityPublic, "s3://bucket/key", "T")

	admin := identity.Viewer{UserID: uuid.New(), Role: identity.RoleInstitutionAdmin, InstitutionID: &doc.InstitutionID}
	result, err := svc.Transition(context.Background(), doc.ID, document.StatusFlagged, admin, "")
	if err != nil || result != document.TransitionOK {
		t.Fatalf("expected flag to succeed, got %s, err=%v", result, err)
	}

	got, _, _ := svc.Get(context.Background(), doc.ID)
	if got.ApprovalStatus != document.StatusApproved {
		t.Fatalf("flagging must not change approval_status, got %s", got.ApprovalStatus)
	}
}
