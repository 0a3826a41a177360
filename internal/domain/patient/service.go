package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrValidation marks errors caused by bad input.
var ErrValidation = errors.New("validation failed")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

const defaultCountry = "India"

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Now is the clock used for derived attributes and date validation.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) validate(p *Patient) error {
	if p.TenantID == uuid.Nil {
		return invalid("tenant_id is required")
	}
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return invalid("first_name and last_name are required")
	}
	if p.DateOfBirth.IsZero() {
		return invalid("date_of_birth is required")
	}
	if p.DateOfBirth.After(s.now()) {
		return invalid("date_of_birth cannot be in the future")
	}
	if p.Gender == "" {
		return invalid("gender is required")
	}
	if p.Height != nil && *p.Height <= 0 {
		return invalid("height must be positive")
	}
	if p.Weight != nil && *p.Weight <= 0 {
		return invalid("weight must be positive")
	}
	if p.DateOfDeath != nil && p.DateOfDeath.Before(p.DateOfBirth) {
		return invalid("date_of_death precedes date_of_birth")
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PatientNumber == "" {
		p.PatientNumber = NewPatientNumber(p.ID)
	}
	if p.Country == "" {
		p.Country = defaultCountry
	}
	p.IsActive = true
	s.warnDeceased(ctx, p)

	if err := s.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

// NewPatientNumber derives the human facing patient number from the record id.
func NewPatientNumber(id uuid.UUID) string {
	return "PAT-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:10])
}

func (s *Service) warnDeceased(ctx context.Context, p *Patient) {
	if p.IsDeceased && p.DateOfDeath == nil {
		zerolog.Ctx(ctx).Warn().
			Str("resource", "Patient").
			Str("id", p.ID.String()).
			Msg("patient marked deceased without date_of_death")
	}
}

func (s *Service) GetPatient(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) GetPatientByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Patient, error) {
	return s.repo.GetByPatientNumber(ctx, tenantID, number)
}

// UpdatePatient replaces the mutable fields of an existing patient. The
// patient number is immutable once assigned.
func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	existing, err := s.repo.GetByID(ctx, p.TenantID, p.ID)
	if err != nil {
		return err
	}
	if err := s.validate(p); err != nil {
		return err
	}
	p.PatientNumber = existing.PatientNumber
	p.CreatedAt = existing.CreatedAt
	if p.Country == "" {
		p.Country = existing.Country
	}
	s.warnDeceased(ctx, p)

	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

// DeactivatePatient is a soft delete; the row is kept.
func (s *Service) DeactivatePatient(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, tenantID, id)
}

func (s *Service) ListPatients(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, tenantID, limit, offset)
}

// SearchPatients matches q against names, patient number, phone and ABHA id.
// An empty query lists all patients.
func (s *Service) SearchPatients(ctx context.Context, tenantID uuid.UUID, q string, limit, offset int) ([]*Patient, int, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return s.repo.List(ctx, tenantID, limit, offset)
	}
	return s.repo.Search(ctx, tenantID, q, limit, offset)
}
