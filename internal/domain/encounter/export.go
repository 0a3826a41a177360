package encounter

import (
	"context"

	"github.com/clinified/clinified/internal/platform/export"
)

// ExportSource feeds changed encounters of every tenant to the exporter.
func ExportSource(repo Repository) export.Source {
	return export.SourceFunc{
		Type: "Encounter",
		List: func(ctx context.Context, after export.Cursor, limit int) ([]export.Record, error) {
			encs, err := repo.ListChangedSince(ctx, after.UpdatedAt, after.ID, limit)
			if err != nil {
				return nil, err
			}
			out := make([]export.Record, len(encs))
			for i, e := range encs {
				out[i] = export.Record{ID: e.ID, TenantID: e.TenantID, UpdatedAt: e.UpdatedAt, Resource: e}
			}
			return out, nil
		},
	}
}
