package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no patient matches within the tenant.
var ErrNotFound = errors.New("patient not found")

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error)
	GetByPatientNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Deactivate(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, tenantID uuid.UUID, query string, limit, offset int) ([]*Patient, int, error)

	// ListChangedSince returns patients of every tenant ordered by
	// (updated_at, id) strictly after the given cursor.
	ListChangedSince(ctx context.Context, since time.Time, afterID uuid.UUID, limit int) ([]*Patient, error)
}
