package institution

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// Service implements the Institution Tree component (C1).
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs the institution tree service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With("component", "institution.service")}
}

// AddMinistry creates a top-level ministry node.
func (s *Service) AddMinistry(ctx context.Context, name string) (Institution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Institution{}, apperrors.Wrap("invalid_input", "ministry name cannot be empty", nil)
	}
	inst, err := s.repo.CreateMinistry(ctx, name)
	if err != nil {
		return Institution{}, apperrors.Wrap("storage_error", "failed to create ministry", err)
	}
	return inst, nil
}

// AddInstitutionUnderMinistry creates a child institution below a ministry.
func (s *Service) AddInstitutionUnderMinistry(ctx context.Context, name string, ministryID uuid.UUID) (Institution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Institution{}, apperrors.Wrap("invalid_input", "institution name cannot be empty", nil)
	}
	ministry, found, err := s.repo.Get(ctx, ministryID)
	if err != nil {
		return Institution{}, apperrors.Wrap("storage_error", "failed to load ministry", err)
	}
	if !found || ministry.IsDeleted() || ministry.Kind != KindMinistry {
		return Institution{}, apperrors.Wrap("not_found", "ministry not found", nil)
	}
	inst, err := s.repo.CreateInstitution(ctx, name, ministryID)
	if err != nil {
		return Institution{}, apperrors.Wrap("storage_error", "failed to create institution", err)
	}
	return inst, nil
}

// IsUnderMinistry implements document.HierarchyChecker: reports whether
// docInstitutionID falls under the ministry identified by
// ministryAdminInstitutionID (a ministry_admin's own institution id is the
// ministry node itself). Used by C11 to authorize ministry_admin
// transitions on documents belonging to institutions under their ministry.
func (s *Service) IsUnderMinistry(ctx context.Context, ministryAdminInstitutionID, docInstitutionID string) (bool, error) {
	ministryID, err := uuid.Parse(ministryAdminInstitutionID)
	if err != nil {
		return false, apperrors.Wrap("invalid_input", "malformed ministry id", err)
	}
	docID, err := uuid.Parse(docInstitutionID)
	if err != nil {
		return false, apperrors.Wrap("invalid_input", "malformed institution id", err)
	}
	descendants, err := s.repo.Descendants(ctx, ministryID)
	if err != nil {
		return false, apperrors.Wrap("storage_error", "failed to resolve ministry descendants", err)
	}
	for _, id := range descendants {
		if id == docID {
			return true, nil
		}
	}
	return false, nil
}

// ListDescendants returns every non-deleted institution id under a ministry,
// including the ministry itself.
func (s *Service) ListDescendants(ctx context.Context, ministryID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.repo.Descendants(ctx, ministryID)
	if err != nil {
		return nil, apperrors.Wrap("not_found", "ministry not found", err)
	}
	return ids, nil
}
