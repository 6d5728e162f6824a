package institution_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/institution"
	"github.com/moe-gov/beacon/internal/infra/memrepo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAddInstitutionUnderMinistry(t *testing.T) {
	repo := memrepo.NewInstitutionRepository()
	svc := institution.NewService(repo, testLogger())
	ctx := context.Background()

	ministry, err := svc.AddMinistry(ctx, "Ministry of Education")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	school, err := svc.AddInstitutionUnderMinistry(ctx, "Central School", ministry.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	descendants, err := svc.ListDescendants(ctx, ministry.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsID(descendants, ministry.ID) || !containsID(descendants, school.ID) {
		t.Fatalf("expected descendants to include both ministry and school, got %v", descendants)
	}
}

func TestAddInstitutionUnderUnknownMinistryFails(t *testing.T) {
	repo := memrepo.NewInstitutionRepository()
	svc := institution.NewService(repo, testLogger())
	if _, err := svc.AddInstitutionUnderMinistry(context.Background(), "Orphan School", uuid.New()); err == nil {
		t.Fatal("expected an error creating an institution under an unknown ministry")
	}
}

func TestIsUnderMinistry(t *testing.T) {
	repo := memrepo.NewInstitutionRepository()
	svc := institution.NewService(repo, testLogger())
	ctx := context.Background()

	ministryA, _ := svc.AddMinistry(ctx, "Ministry A")
	ministryB, _ := svc.AddMinistry(ctx, "Ministry B")
	schoolUnderA, _ := svc.AddInstitutionUnderMinistry(ctx, "School Under A", ministryA.ID)

	underA, err := svc.IsUnderMinistry(ctx, ministryA.ID.String(), schoolUnderA.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !underA {
		t.Fatal("expected school to be under its own ministry")
	}

	underB, err := svc.IsUnderMinistry(ctx, ministryB.ID.String(), schoolUnderA.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if underB {
		t.Fatal("expected school to not be under an unrelated ministry")
	}
}

func containsID(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
