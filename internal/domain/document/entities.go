package document

import (
	"time"

	"github.com/google/uuid"
)

// Visibility is immutable per document for its lifetime (spec §5, invariant
// I-5): a visibility change is modeled as a new document revision, never an
// in-place mutation.
type Visibility string

const (
	VisibilityPublic          Visibility = "public"
	VisibilityInstitutionOnly Visibility = "institution_only"
	VisibilityRestricted      Visibility = "restricted"
	VisibilityConfidential    Visibility = "confidential"
)

// ValidVisibility reports whether v belongs to the closed set.
func ValidVisibility(v Visibility) bool {
	switch v {
	case VisibilityPublic, VisibilityInstitutionOnly, VisibilityRestricted, VisibilityConfidential:
		return true
	default:
		return false
	}
}

// ApprovalStatus is the C11 workflow's state.
type ApprovalStatus string

const (
	StatusDraft            ApprovalStatus = "draft"
	StatusPending          ApprovalStatus = "pending"
	StatusUnderReview      ApprovalStatus = "under_review"
	StatusChangesRequested ApprovalStatus = "changes_requested"
	StatusRejected         ApprovalStatus = "rejected"
	StatusApproved         ApprovalStatus = "approved"
	StatusArchived         ApprovalStatus = "archived"
	StatusFlagged          ApprovalStatus = "flagged"
	StatusExpired          ApprovalStatus = "expired"
)

// ValidApprovalStatus reports whether s belongs to the closed set.
func ValidApprovalStatus(s ApprovalStatus) bool {
	switch s {
	case StatusDraft, StatusPending, StatusUnderReview, StatusChangesRequested,
		StatusRejected, StatusApproved, StatusArchived, StatusFlagged, StatusExpired:
		return true
	default:
		return false
	}
}

// EmbeddingStatus is C7's CAS-guarded state.
type EmbeddingStatus string

const (
	EmbeddingNotEmbedded EmbeddingStatus = "not_embedded"
	EmbeddingInProgress  EmbeddingStatus = "embedding"
	EmbeddingEmbedded    EmbeddingStatus = "embedded"
	EmbeddingFailed      EmbeddingStatus = "failed"
)

// Document is the C3 aggregate root (spec §3).
type Document struct {
	ID                  uuid.UUID
	UploaderID          uuid.UUID
	InstitutionID       uuid.UUID
	Visibility          Visibility
	ApprovalStatus      ApprovalStatus
	ObjectURL           string
	Title               string
	RequiresUpperReview bool
	EscalatedAt         *time.Time
	ApproverID          *uuid.UUID
	ApprovedAt          *time.Time
	RejectionReason     string
	CreatedAt           time.Time
}

// Metadata carries the searchable fields the keyword leg of C9 matches
// against, plus the embedding CAS state C7 owns.
type Metadata struct {
	DocumentID      uuid.UUID
	Keywords        []string
	Summary         string
	EmbeddingStatus EmbeddingStatus
	UpdatedAt       time.Time
}

// AuditEvent is an append-only lifecycle record (spec §3 row: "soft-only;
// rows preserved for audit").
type AuditEvent struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	ActorID    uuid.UUID
	Kind       string
	Detail     string
	CreatedAt  time.Time
}

// Summary is the page-listing projection returned by ListVisibleDocuments.
type Summary struct {
	ID             uuid.UUID
	Title          string
	InstitutionID  uuid.UUID
	Visibility     Visibility
	ApprovalStatus ApprovalStatus
	UploaderID     uuid.UUID
	CreatedAt      time.Time
}
