package patient

import (
	"context"

	"github.com/clinified/clinified/internal/platform/export"
)

// ExportSource feeds changed patients of every tenant to the exporter.
func ExportSource(repo Repository) export.Source {
	return export.SourceFunc{
		Type: "Patient",
		List: func(ctx context.Context, after export.Cursor, limit int) ([]export.Record, error) {
			pts, err := repo.ListChangedSince(ctx, after.UpdatedAt, after.ID, limit)
			if err != nil {
				return nil, err
			}
			out := make([]export.Record, len(pts))
			for i, p := range pts {
				out[i] = export.Record{ID: p.ID, TenantID: p.TenantID, UpdatedAt: p.UpdatedAt, Resource: p}
			}
			return out, nil
		},
	}
}
