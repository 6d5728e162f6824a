package answerer

import (
	"context"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/access"
	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/identity"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// DocumentReader is the narrow slice of document.Service the adapter
// needs.
type DocumentReader interface {
	Get(ctx context.Context, id uuid.UUID) (document.Document, bool, error)
	GetMetadata(ctx context.Context, id uuid.UUID) (document.Metadata, bool, error)
}

// documentAccessAdapter wires C3 and C4 together behind the DocumentAccess
// interface C10 depends on, so the planner never has direct access to
// either collaborator and can't bypass the policy check (spec §4.10).
type documentAccessAdapter struct {
	docs DocumentReader
}

// NewDocumentAccess constructs the C3+C4 adapter for C10's tools.
func NewDocumentAccess(docs DocumentReader) DocumentAccess {
	return &documentAccessAdapter{docs: docs}
}

func (a *documentAccessAdapter) CanView(ctx context.Context, viewer identity.Viewer, docID uuid.UUID) (bool, error) {
	doc, found, err := a.docs.Get(ctx, docID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeStorageError, "failed to load document", err)
	}
	if !found {
		return false, apperrors.Wrap(apperrors.CodeNotFound, "document not found", nil)
	}
	return access.CanView(viewer, access.RowOf(doc)), nil
}

func (a *documentAccessAdapter) Metadata(ctx context.Context, docID uuid.UUID) (document.Document, document.Metadata, bool, error) {
	doc, found, err := a.docs.Get(ctx, docID)
	if err != nil || !found {
		return document.Document{}, document.Metadata{}, false, err
	}
	meta, found, err := a.docs.GetMetadata(ctx, docID)
	if err != nil {
		return document.Document{}, document.Metadata{}, false, err
	}
	return doc, meta, found, nil
}
