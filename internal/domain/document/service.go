package document

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/identity"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// Service implements C3's operations plus the C11 gating that decides
// whether a requested transition may proceed (spec §4.3, §4.11).
type Service struct {
	repo      Repository
	hierarchy HierarchyChecker
	logger    *slog.Logger
}

// NewService constructs the document lifecycle store.
func NewService(repo Repository, hierarchy HierarchyChecker, logger *slog.Logger) *Service {
	return &Service{repo: repo, hierarchy: hierarchy, logger: logger.With("component", "document.service")}
}

// Create implements the create operation (spec §4.3): developer/ministry_admin
// uploads short-circuit to approved (self-authoritative), everything else
// starts as draft.
func (s *Service) Create(ctx context.Context, uploader identity.Viewer, institutionID uuid.UUID, visibility Visibility, objectURL, title string) (Document, error) {
	if !ValidVisibility(visibility) {
		return Document{}, apperrors.Wrap(apperrors.CodeInvalidInput, "unknown visibility: "+string(visibility), nil)
	}
	if strings.TrimSpace(objectURL) == "" {
		return Document{}, apperrors.Wrap(apperrors.CodeInvalidInput, "object_url required", nil)
	}
	status := StatusDraft
	if uploader.Role == identity.RoleDeveloper || uploader.Role == identity.RoleMinistryAdmin {
		status = StatusApproved
	}
	doc := Document{
		ID:             uuid.New(),
		UploaderID:     uploader.UserID,
		InstitutionID:  institutionID,
		Visibility:     visibility,
		ApprovalStatus: status,
		ObjectURL:      strings.TrimSpace(objectURL),
		Title:          strings.TrimSpace(title),
		CreatedAt:      time.Now(),
	}
	created, err := s.repo.Create(ctx, doc)
	if err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to create document", err)
	}
	if status == StatusApproved {
		if err := s.repo.ResyncAccessColumns(ctx, created.ID); err != nil {
			s.logger.Warn("resync after self-authoritative create failed", "document_id", created.ID, "error", err)
		}
	}
	return created, nil
}

// TransitionResult matches spec §6's `ok | forbidden | invalid_transition`
// outcome shape for TransitionDocument.
type TransitionResult string

const (
	TransitionOK        TransitionResult = "ok"
	TransitionForbidden TransitionResult = "forbidden"
	TransitionInvalid   TransitionResult = "invalid_transition"
)

// Transition implements C11's actor-gated state machine (spec §4.11).
func (s *Service) Transition(ctx context.Context, docID uuid.UUID, to ApprovalStatus, actor identity.Viewer, reason string) (TransitionResult, error) {
	if !ValidApprovalStatus(to) {
		return TransitionInvalid, apperrors.Wrap(apperrors.CodeInvalidInput, "unknown approval status: "+string(to), nil)
	}
	doc, found, err := s.repo.Get(ctx, docID)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to load document", err)
	}
	if !found {
		return "", apperrors.Wrap(apperrors.CodeNotFound, "document not found", nil)
	}
	if requiresReason(to) && strings.TrimSpace(reason) == "" {
		return TransitionInvalid, apperrors.Wrap(apperrors.CodeInvalidInput, "rejection_reason required", nil)
	}

	if !tableEntry(doc.ApprovalStatus, to) {
		return TransitionInvalid, errInvalidTransition
	}
	allowed, err := canTransition(ctx, s.hierarchy, actor, doc, to)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to evaluate institution hierarchy", err)
	}
	if !allowed {
		// spec §7 "User-visible behavior": an unauthorized transition
		// attempt is still recorded, even though it changes nothing.
		if err := s.repo.AppendAudit(ctx, AuditEvent{
			ID:         uuid.New(),
			DocumentID: docID,
			ActorID:    actor.UserID,
			Kind:       "transition_denied:" + string(to),
			Detail:     reason,
			CreatedAt:  time.Now(),
		}); err != nil {
			s.logger.Warn("append denied-transition audit failed", "document_id", docID, "error", err)
		}
		return TransitionForbidden, nil
	}

	updated, err := s.repo.Transition(ctx, docID, to, actor.UserID, reason)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to persist transition", err)
	}

	// flagged records a marker only; it never changes approval_status
	// (spec §4.11: "records an audit marker, no access change").
	if to != StatusFlagged && to != doc.ApprovalStatus {
		if err := s.repo.ResyncAccessColumns(ctx, docID); err != nil {
			s.logger.Warn("resync_access_columns failed", "document_id", docID, "error", err)
		}
	}
	if err := s.repo.AppendAudit(ctx, AuditEvent{
		ID:         uuid.New(),
		DocumentID: docID,
		ActorID:    actor.UserID,
		Kind:       "transition:" + string(to),
		Detail:     reason,
		CreatedAt:  time.Now(),
	}); err != nil {
		s.logger.Warn("append audit failed", "document_id", docID, "error", err)
	}
	return TransitionOK, nil
}

// Get fetches a document by id (used by C4's row-level check and C10's
// get_document_metadata tool).
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Document, bool, error) {
	return s.repo.Get(ctx, id)
}

// GetMetadata fetches a document's searchable/embedding metadata.
func (s *Service) GetMetadata(ctx context.Context, id uuid.UUID) (Metadata, bool, error) {
	return s.repo.GetMetadata(ctx, id)
}

// ListVisible implements `ListVisibleDocuments(viewer, filters, paging)`
// (spec §6) using C4's predicate bound to viewer.
func (s *Service) ListVisible(ctx context.Context, pred AccessPredicate, filters ListFilters, page Page) ([]Summary, error) {
	if page.Limit <= 0 {
		page.Limit = 20
	}
	return s.repo.ListVisible(ctx, pred, filters, page)
}
