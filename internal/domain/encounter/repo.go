package encounter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no encounter matches within the tenant.
var ErrNotFound = errors.New("encounter not found")

type Repository interface {
	Create(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Encounter, error)
	Update(ctx context.Context, enc *Encounter) error
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Encounter, int, error)
	ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error)

	// PatientInTenant and PractitionerInTenant report whether the linked
	// record exists within the tenant.
	PatientInTenant(ctx context.Context, tenantID, patientID uuid.UUID) (bool, error)
	PractitionerInTenant(ctx context.Context, tenantID, userID uuid.UUID) (bool, error)

	AddStatusChange(ctx context.Context, sc *StatusChange) error
	GetStatusHistory(ctx context.Context, encounterID uuid.UUID) ([]*StatusChange, error)

	// ListChangedSince returns encounters of every tenant ordered by
	// (updated_at, id) strictly after the given cursor.
	ListChangedSince(ctx context.Context, since time.Time, afterID uuid.UUID, limit int) ([]*Encounter, error)
}
