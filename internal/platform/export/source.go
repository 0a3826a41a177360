// Package export streams FHIR projections of changed records to a message
// broker. A run walks each source in (updated_at, id) order from the last
// checkpoint and moves the checkpoint only after a batch is published.
package export

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Projector is implemented by every canonical record that has a FHIR form.
type Projector interface {
	ToFHIR() (map[string]interface{}, error)
}

// Record is one changed row handed to the exporter.
type Record struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UpdatedAt time.Time
	Resource  Projector
}

// Cursor is the keyset position after the last exported record.
type Cursor struct {
	UpdatedAt time.Time `json:"updated_at"`
	ID        uuid.UUID `json:"id"`
}

func (c Cursor) IsZero() bool {
	return c.UpdatedAt.IsZero() && c.ID == uuid.Nil
}

// Source lists records of one FHIR resource type changed after a cursor.
type Source interface {
	ResourceType() string
	ChangedSince(ctx context.Context, after Cursor, limit int) ([]Record, error)
}

// SourceFunc adapts a repository listing function to Source.
type SourceFunc struct {
	Type string
	List func(ctx context.Context, after Cursor, limit int) ([]Record, error)
}

func (s SourceFunc) ResourceType() string { return s.Type }

func (s SourceFunc) ChangedSince(ctx context.Context, after Cursor, limit int) ([]Record, error) {
	return s.List(ctx, after, limit)
}
