package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinified/clinified/internal/platform/fhir"
	"github.com/clinified/clinified/pkg/clinicalcalc"
	"github.com/clinified/clinified/pkg/fhirmodels"
)

// Patient maps to the patients table.
type Patient struct {
	ID                           uuid.UUID              `db:"id" json:"id"`
	TenantID                     uuid.UUID              `db:"tenant_id" json:"tenant_id"`
	PatientNumber                string                 `db:"patient_id" json:"patient_id"`
	AbhaID                       *string                `db:"abha_id" json:"abha_id,omitempty"`
	FirstName                    string                 `db:"first_name" json:"first_name"`
	MiddleName                   *string                `db:"middle_name" json:"middle_name,omitempty"`
	LastName                     string                 `db:"last_name" json:"last_name"`
	DateOfBirth                  time.Time              `db:"date_of_birth" json:"date_of_birth"`
	Gender                       string                 `db:"gender" json:"gender"`
	Phone                        *string                `db:"phone" json:"phone,omitempty"`
	Email                        *string                `db:"email" json:"email,omitempty"`
	Address                      *string                `db:"address" json:"address,omitempty"`
	City                         *string                `db:"city" json:"city,omitempty"`
	State                        *string                `db:"state" json:"state,omitempty"`
	Pincode                      *string                `db:"pincode" json:"pincode,omitempty"`
	Country                      string                 `db:"country" json:"country"`
	EmergencyContactName         *string                `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone        *string                `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	EmergencyContactRelationship *string                `db:"emergency_contact_relationship" json:"emergency_contact_relationship,omitempty"`
	BloodGroup                   *string                `db:"blood_group" json:"blood_group,omitempty"`
	Height                       *int                   `db:"height" json:"height,omitempty"`
	Weight                       *int                   `db:"weight" json:"weight,omitempty"`
	Allergies                    []string               `db:"allergies" json:"allergies"`
	MedicalHistory               []string               `db:"medical_history" json:"medical_history"`
	FamilyHistory                []string               `db:"family_history" json:"family_history"`
	InsuranceProvider            *string                `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsurancePolicyNumber        *string                `db:"insurance_policy_number" json:"insurance_policy_number,omitempty"`
	InsuranceGroupNumber         *string                `db:"insurance_group_number" json:"insurance_group_number,omitempty"`
	ABDMConsent                  bool                   `db:"abdm_consent" json:"abdm_consent"`
	ABDMConsentDate              *time.Time             `db:"abdm_consent_date" json:"abdm_consent_date,omitempty"`
	ABDMConsentVersion           *string                `db:"abdm_consent_version" json:"abdm_consent_version,omitempty"`
	IsActive                     bool                   `db:"is_active" json:"is_active"`
	IsDeceased                   bool                   `db:"is_deceased" json:"is_deceased"`
	DateOfDeath                  *time.Time             `db:"date_of_death" json:"date_of_death,omitempty"`
	Notes                        *string                `db:"notes" json:"notes,omitempty"`
	Preferences                  map[string]interface{} `db:"preferences" json:"preferences,omitempty"`
	LastVisit                    *time.Time             `db:"last_visit" json:"last_visit,omitempty"`
	CreatedAt                    time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt                    time.Time              `db:"updated_at" json:"updated_at"`
}

// FullName returns "first [middle] last".
func (p *Patient) FullName() string {
	if hasText(p.MiddleName) {
		return p.FirstName + " " + *p.MiddleName + " " + p.LastName
	}
	return p.FirstName + " " + p.LastName
}

// Age is evaluated against now; it is never stored.
func (p *Patient) Age(now time.Time) int {
	return clinicalcalc.Age(p.DateOfBirth, now)
}

// BMI is nil unless both height and weight are recorded.
func (p *Patient) BMI() *float64 {
	return clinicalcalc.BMI(p.Height, p.Weight)
}

// View is the REST representation: the stored record plus attributes
// derived at read time.
type View struct {
	*Patient
	DateOfBirth string   `json:"date_of_birth"`
	FullName    string   `json:"full_name"`
	Age         int      `json:"age"`
	BMI         *float64 `json:"bmi,omitempty"`
}

func (p *Patient) View(now time.Time) View {
	return View{
		Patient:     p,
		DateOfBirth: p.DateOfBirth.Format("2006-01-02"),
		FullName:    p.FullName(),
		Age:         p.Age(now),
		BMI:         p.BMI(),
	}
}

// ToFHIR projects the record onto a FHIR R4 Patient resource.
func (p *Patient) ToFHIR() (map[string]interface{}, error) {
	if p.ID == uuid.Nil {
		return nil, fhir.MissingField("Patient", "id")
	}
	if p.PatientNumber == "" {
		return nil, fhir.MissingField("Patient", "patient_id")
	}
	if p.DateOfBirth.IsZero() {
		return nil, fhir.MissingField("Patient", "date_of_birth")
	}

	given := []string{p.FirstName}
	if hasText(p.MiddleName) {
		given = append(given, *p.MiddleName)
	}

	return map[string]interface{}{
		"resourceType": "Patient",
		"id":           p.ID.String(),
		"identifier": fhir.BuildIdentifiers(
			fhirmodels.IdentifierPatient, p.PatientNumber,
			fhirmodels.IdentifierABHA, strVal(p.AbhaID),
		),
		"active": p.IsActive && !p.IsDeceased,
		"name": []fhir.HumanName{{
			Use:    "official",
			Text:   p.FullName(),
			Family: p.LastName,
			Given:  given,
		}},
		"telecom": fhir.Compact(
			fhir.When(hasText(p.Phone), fhir.ContactPoint{System: "phone", Value: strVal(p.Phone)}),
			fhir.When(hasText(p.Email), fhir.ContactPoint{System: "email", Value: strVal(p.Email)}),
		),
		"gender":    p.Gender,
		"birthDate": p.DateOfBirth.Format("2006-01-02"),
		"address":   fhir.Compact(p.homeAddress()),
		"contact":   fhir.Compact(p.emergencyContact()),
		"extension": fhir.Compact(
			fhir.When(hasText(p.BloodGroup), fhir.StringExtension(fhirmodels.ExtensionBloodGroup, strVal(p.BloodGroup))),
			// allergies are always emitted, even as an empty string
			fhir.When(true, fhir.StringExtension(fhirmodels.ExtensionAllergies, strings.Join(p.Allergies, ", "))),
		),
	}, nil
}

func (p *Patient) homeAddress() *fhir.Address {
	if !hasText(p.Address) && !hasText(p.City) && !hasText(p.State) && !hasText(p.Pincode) {
		return nil
	}
	return &fhir.Address{
		Use:        "home",
		Text:       strVal(p.Address),
		City:       strVal(p.City),
		State:      strVal(p.State),
		PostalCode: strVal(p.Pincode),
		Country:    p.Country,
	}
}

func (p *Patient) emergencyContact() *fhir.PatientContact {
	if !hasText(p.EmergencyContactName) {
		return nil
	}
	return &fhir.PatientContact{
		Relationship: []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{
				System:  fhirmodels.SystemContactRole,
				Code:    fhirmodels.ContactRoleEmergency,
				Display: fhirmodels.ContactRoleEmergencyDisplay,
			}},
		}},
		Name: fhir.HumanName{Text: *p.EmergencyContactName},
		Telecom: fhir.Compact(
			fhir.When(hasText(p.EmergencyContactPhone), fhir.ContactPoint{System: "phone", Value: strVal(p.EmergencyContactPhone)}),
		),
	}
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
