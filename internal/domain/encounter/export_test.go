package encounter

import (
	"context"
	"testing"

	"github.com/clinified/clinified/internal/platform/export"
)

func TestExportSource(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := svc.CreateEncounter(ctx, validEncounter()); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	src := ExportSource(svc.repo)
	if src.ResourceType() != "Encounter" {
		t.Errorf("resource type = %s", src.ResourceType())
	}

	first, err := src.ChangedSince(ctx, export.Cursor{}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first page = %d records, want 2", len(first))
	}
	if first[0].TenantID != testTenant {
		t.Errorf("tenant = %s", first[0].TenantID)
	}
	if _, err := first[0].Resource.ToFHIR(); err != nil {
		t.Errorf("record does not project: %v", err)
	}

	last := first[len(first)-1]
	rest, err := src.ChangedSince(ctx, export.Cursor{UpdatedAt: last.UpdatedAt, ID: last.ID}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("second page = %d records, want 1", len(rest))
	}
}
