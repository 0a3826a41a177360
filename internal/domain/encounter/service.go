package encounter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinified/clinified/internal/platform/auth"
	"github.com/clinified/clinified/internal/platform/db"
	"github.com/clinified/clinified/pkg/fhirmodels"
)

// ErrValidation marks errors caused by bad input.
var ErrValidation = errors.New("validation failed")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

const defaultPaymentStatus = "pending"

type Service struct {
	repo Repository
	tx   db.TxRunner
	now  func() time.Time
}

func NewService(repo Repository, tx db.TxRunner) *Service {
	return &Service{repo: repo, tx: tx, now: time.Now}
}

func (s *Service) validate(e *Encounter) error {
	if e.TenantID == uuid.Nil {
		return invalid("tenant_id is required")
	}
	if e.PatientID == uuid.Nil {
		return invalid("patient_id is required")
	}
	if e.PractitionerID == uuid.Nil {
		return invalid("practitioner_id is required")
	}
	if e.StartDate.IsZero() {
		return invalid("start_date is required")
	}
	if e.EndDate != nil && e.EndDate.Before(e.StartDate) {
		return invalid("end_date precedes start_date")
	}
	if !fhirmodels.IsValidEncounterStatus(e.Status) {
		return invalid("invalid status: %s", e.Status)
	}
	if e.CopayAmount != nil && *e.CopayAmount < 0 {
		return invalid("copay_amount cannot be negative")
	}
	if e.TotalAmount != nil && *e.TotalAmount < 0 {
		return invalid("total_amount cannot be negative")
	}
	return nil
}

func applyDefaults(e *Encounter) {
	if e.Status == "" {
		e.Status = fhirmodels.EncounterStatusPlanned
	}
	if e.ClassCode == "" {
		e.ClassCode = fhirmodels.EncounterClassAmbulatory
	}
	if e.Priority == "" {
		e.Priority = fhirmodels.PriorityRoutine
	}
	if e.PaymentStatus == "" {
		e.PaymentStatus = defaultPaymentStatus
	}
}

// checkLinks rejects patient and practitioner ids that belong to another tenant.
func (s *Service) checkLinks(ctx context.Context, e *Encounter) error {
	ok, err := s.repo.PatientInTenant(ctx, e.TenantID, e.PatientID)
	if err != nil {
		return fmt.Errorf("check patient: %w", err)
	}
	if !ok {
		return invalid("patient %s not found", e.PatientID)
	}
	ok, err = s.repo.PractitionerInTenant(ctx, e.TenantID, e.PractitionerID)
	if err != nil {
		return fmt.Errorf("check practitioner: %w", err)
	}
	if !ok {
		return invalid("practitioner %s not found", e.PractitionerID)
	}
	return nil
}

// NewEncounterNumber derives the human facing encounter number from the record id.
func NewEncounterNumber(id uuid.UUID) string {
	return "ENC-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:10])
}

func (s *Service) CreateEncounter(ctx context.Context, e *Encounter) error {
	applyDefaults(e)
	if err := s.validate(e); err != nil {
		return err
	}
	if err := s.checkLinks(ctx, e); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.EncounterNumber == "" {
		e.EncounterNumber = NewEncounterNumber(e.ID)
	}
	s.warnUnmapped(ctx, e)

	if err := s.repo.Create(ctx, e); err != nil {
		return fmt.Errorf("create encounter: %w", err)
	}
	return nil
}

// warnUnmapped logs class and priority codes that will project with their
// raw code as display.
func (s *Service) warnUnmapped(ctx context.Context, e *Encounter) {
	if !fhirmodels.IsKnownClass(e.ClassCode) {
		zerolog.Ctx(ctx).Warn().Str("resource", "Encounter").Str("id", e.ID.String()).
			Str("class_code", e.ClassCode).Msg("unmapped encounter class")
	}
	if !fhirmodels.IsKnownPriority(e.Priority) {
		zerolog.Ctx(ctx).Warn().Str("resource", "Encounter").Str("id", e.ID.String()).
			Str("priority", e.Priority).Msg("unmapped encounter priority")
	}
}

func (s *Service) GetEncounter(ctx context.Context, tenantID, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// UpdateEncounter replaces the mutable fields. Status changes go through
// UpdateEncounterStatus so that they are recorded.
func (s *Service) UpdateEncounter(ctx context.Context, e *Encounter) error {
	existing, err := s.repo.GetByID(ctx, e.TenantID, e.ID)
	if err != nil {
		return err
	}
	e.EncounterNumber = existing.EncounterNumber
	e.PatientID = existing.PatientID
	e.Status = existing.Status
	e.CreatedAt = existing.CreatedAt
	applyDefaults(e)
	if err := s.validate(e); err != nil {
		return err
	}
	if err := s.checkLinks(ctx, e); err != nil {
		return err
	}
	s.warnUnmapped(ctx, e)

	if err := s.repo.Update(ctx, e); err != nil {
		return fmt.Errorf("update encounter: %w", err)
	}
	return nil
}

func isTerminal(status string) bool {
	return status == fhirmodels.EncounterStatusFinished || status == fhirmodels.EncounterStatusCancelled
}

// UpdateEncounterStatus moves the encounter to status and appends a history
// row in the same transaction. Finished and cancelled encounters cannot
// change status. Finishing an encounter without an end date stamps the
// current time.
func (s *Service) UpdateEncounterStatus(ctx context.Context, tenantID, id uuid.UUID, status string) (*Encounter, error) {
	if !fhirmodels.IsValidEncounterStatus(status) {
		return nil, invalid("invalid status: %s", status)
	}

	var (
		e    *Encounter
		from string
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.repo.GetByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		from = e.Status
		if from == status {
			return nil
		}
		if isTerminal(from) {
			return invalid("encounter is %s and cannot move to %s", from, status)
		}

		e.Status = status
		if status == fhirmodels.EncounterStatusFinished {
			if e.EndDate == nil {
				end := s.now().UTC()
				if end.Before(e.StartDate) {
					end = e.StartDate
				}
				e.EndDate = &end
			}
			d := e.Duration()
			e.DurationMinutes = &d
		}

		if err := s.repo.Update(ctx, e); err != nil {
			return fmt.Errorf("update encounter status: %w", err)
		}
		change := &StatusChange{
			EncounterID: e.ID,
			FromStatus:  from,
			ToStatus:    status,
			ChangedBy:   auth.UserIDFromContext(ctx),
		}
		if err := s.repo.AddStatusChange(ctx, change); err != nil {
			return fmt.Errorf("record status change: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != status {
		zerolog.Ctx(ctx).Info().Str("resource", "Encounter").Str("id", e.ID.String()).
			Str("from", from).Str("to", status).Msg("encounter status changed")
	}
	return e, nil
}

func (s *Service) GetStatusHistory(ctx context.Context, tenantID, id uuid.UUID) ([]*StatusChange, error) {
	if _, err := s.repo.GetByID(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.repo.GetStatusHistory(ctx, id)
}

// ListEncounters filters by patient when patientID is not Nil.
func (s *Service) ListEncounters(ctx context.Context, tenantID, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	if patientID != uuid.Nil {
		return s.repo.ListByPatient(ctx, tenantID, patientID, limit, offset)
	}
	return s.repo.List(ctx, tenantID, limit, offset)
}
