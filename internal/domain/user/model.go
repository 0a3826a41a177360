package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinified/clinified/internal/platform/auth"
	"github.com/clinified/clinified/internal/platform/fhir"
	"github.com/clinified/clinified/pkg/fhirmodels"
)

// User maps to the users table. Clinicians among them are exposed as FHIR
// Practitioners.
type User struct {
	ID                 uuid.UUID              `db:"id" json:"id"`
	TenantID           uuid.UUID              `db:"tenant_id" json:"tenant_id"`
	Email              string                 `db:"email" json:"email"`
	Phone              *string                `db:"phone" json:"phone,omitempty"`
	Username           *string                `db:"username" json:"username,omitempty"`
	PasswordHash       string                 `db:"hashed_password" json:"-"`
	IsActive           bool                   `db:"is_active" json:"is_active"`
	IsVerified         bool                   `db:"is_verified" json:"is_verified"`
	FirstName          string                 `db:"first_name" json:"first_name"`
	LastName           string                 `db:"last_name" json:"last_name"`
	MiddleName         *string                `db:"middle_name" json:"middle_name,omitempty"`
	Roles              []string               `db:"roles" json:"roles"`
	Specialization     *string                `db:"specialization" json:"specialization,omitempty"`
	LicenseNumber      *string                `db:"license_number" json:"license_number,omitempty"`
	RegistrationNumber *string                `db:"registration_number" json:"registration_number,omitempty"`
	AbhaID             *string                `db:"abha_id" json:"abha_id,omitempty"`
	HPRID              *string                `db:"hpr_id" json:"hpr_id,omitempty"`
	Address            *string                `db:"address" json:"address,omitempty"`
	City               *string                `db:"city" json:"city,omitempty"`
	State              *string                `db:"state" json:"state,omitempty"`
	Pincode            *string                `db:"pincode" json:"pincode,omitempty"`
	Country            string                 `db:"country" json:"country"`
	Preferences        map[string]interface{} `db:"preferences" json:"preferences,omitempty"`
	LastLogin          *time.Time             `db:"last_login" json:"last_login,omitempty"`
	CreatedAt          time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time              `db:"updated_at" json:"updated_at"`
}

func (u *User) FullName() string {
	if hasText(u.MiddleName) {
		return u.FirstName + " " + *u.MiddleName + " " + u.LastName
	}
	return u.FirstName + " " + u.LastName
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

func (u *User) IsDoctor() bool { return u.HasRole(auth.RoleDoctor) }
func (u *User) IsNurse() bool  { return u.HasRole(auth.RoleNurse) }
func (u *User) IsAdmin() bool  { return u.HasRole(auth.RoleAdmin) }

type View struct {
	*User
	FullName string `json:"full_name"`
}

func (u *User) View() View {
	return View{User: u, FullName: u.FullName()}
}

// ToFHIR projects the user onto a FHIR R4 Practitioner resource.
func (u *User) ToFHIR() (map[string]interface{}, error) {
	if u.ID == uuid.Nil {
		return nil, fhir.MissingField("Practitioner", "id")
	}

	given := []string{u.FirstName}
	if hasText(u.MiddleName) {
		given = append(given, *u.MiddleName)
	}

	return map[string]interface{}{
		"resourceType": "Practitioner",
		"id":           u.ID.String(),
		"identifier": fhir.BuildIdentifiers(
			fhirmodels.IdentifierPractitioner, u.ID.String(),
			fhirmodels.IdentifierHPR, strVal(u.HPRID),
		),
		"active": u.IsActive,
		"name": []fhir.HumanName{{
			Use:    "official",
			Text:   u.FullName(),
			Family: u.LastName,
			Given:  given,
		}},
		"telecom": fhir.Compact(
			fhir.When(hasText(u.Phone), fhir.ContactPoint{System: "phone", Value: strVal(u.Phone), Use: "work"}),
			fhir.When(u.Email != "", fhir.ContactPoint{System: "email", Value: u.Email, Use: "work"}),
		),
	}, nil
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func hasText(s *string) bool {
	return s != nil && *s != ""
}
