package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinified/clinified/internal/platform/auth"
)

// ErrValidation marks errors caused by bad input.
var ErrValidation = errors.New("validation failed")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

const (
	minPasswordLen = 8
	phonePrefix    = "+91"
	defaultCountry = "India"
)

type Service struct {
	repo Repository
	cost int
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

func (s *Service) validate(u *User) error {
	if u.TenantID == uuid.Nil {
		return invalid("tenant_id is required")
	}
	if !strings.Contains(u.Email, "@") {
		return invalid("a valid email is required")
	}
	if strings.TrimSpace(u.FirstName) == "" || strings.TrimSpace(u.LastName) == "" {
		return invalid("first_name and last_name are required")
	}
	if hasText(u.Phone) && !strings.HasPrefix(*u.Phone, phonePrefix) {
		return invalid("phone must start with %s", phonePrefix)
	}
	for _, r := range u.Roles {
		if !auth.IsValidRole(r) {
			return invalid("unknown role: %s", r)
		}
	}
	return nil
}

func normalize(u *User) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if len(u.Roles) == 0 {
		u.Roles = []string{auth.RoleStaff}
	}
	if u.Country == "" {
		u.Country = defaultCountry
	}
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", invalid("password must be at least %d characters", minPasswordLen)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// CreateUser registers a new active user with a bcrypt password hash.
// Users without roles get the staff role.
func (s *Service) CreateUser(ctx context.Context, u *User, password string) error {
	normalize(u)
	if err := s.validate(u); err != nil {
		return err
	}
	h, err := s.hash(password)
	if err != nil {
		return err
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.PasswordHash = h
	u.IsActive = true

	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("create user: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("resource", "User").Str("id", u.ID.String()).
		Strs("roles", u.Roles).Msg("user created")
	return nil
}

func (s *Service) GetUser(ctx context.Context, tenantID, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// UpdateUser replaces the profile. An empty password keeps the current hash.
func (s *Service) UpdateUser(ctx context.Context, u *User, password string) error {
	existing, err := s.repo.GetByID(ctx, u.TenantID, u.ID)
	if err != nil {
		return err
	}
	normalize(u)
	if err := s.validate(u); err != nil {
		return err
	}
	u.PasswordHash = existing.PasswordHash
	if password != "" {
		if u.PasswordHash, err = s.hash(password); err != nil {
			return err
		}
	}
	u.CreatedAt = existing.CreatedAt
	u.LastLogin = existing.LastLogin

	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *Service) DeactivateUser(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, tenantID, id)
}

func (s *Service) ListUsers(ctx context.Context, tenantID uuid.UUID, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !auth.IsValidRole(role) {
		return nil, 0, invalid("unknown role: %s", role)
	}
	return s.repo.List(ctx, tenantID, role, limit, offset)
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
