package encounter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinified/clinified/internal/platform/fhir"
	"github.com/clinified/clinified/pkg/clinicalcalc"
	"github.com/clinified/clinified/pkg/fhirmodels"
)

// Encounter maps to the encounters table. Amounts are in paise.
type Encounter struct {
	ID                  uuid.UUID              `db:"id" json:"id"`
	TenantID            uuid.UUID              `db:"tenant_id" json:"tenant_id"`
	PatientID           uuid.UUID              `db:"patient_id" json:"patient_id"`
	PractitionerID      uuid.UUID              `db:"practitioner_id" json:"practitioner_id"`
	EncounterNumber     string                 `db:"encounter_id" json:"encounter_id"`
	FHIREncounterID     *string                `db:"fhir_encounter_id" json:"fhir_encounter_id,omitempty"`
	Status              string                 `db:"status" json:"status"`
	ClassCode           string                 `db:"class_code" json:"class_code"`
	Priority            string                 `db:"priority" json:"priority"`
	StartDate           time.Time              `db:"start_date" json:"start_date"`
	EndDate             *time.Time             `db:"end_date" json:"end_date,omitempty"`
	DurationMinutes     *int                   `db:"duration_minutes" json:"duration_minutes,omitempty"`
	ReasonCode          []ReasonCode           `db:"reason_code" json:"reason_code"`
	ReasonText          *string                `db:"reason_text" json:"reason_text,omitempty"`
	Diagnosis           []Diagnosis            `db:"diagnosis" json:"diagnosis"`
	ChiefComplaint      *string                `db:"chief_complaint" json:"chief_complaint,omitempty"`
	VitalSigns          map[string]interface{} `db:"vital_signs" json:"vital_signs,omitempty"`
	PhysicalExamination *string                `db:"physical_examination" json:"physical_examination,omitempty"`
	Location            *string                `db:"location" json:"location,omitempty"`
	ServiceType         *string                `db:"service_type" json:"service_type,omitempty"`
	InsuranceStatus     *string                `db:"insurance_status" json:"insurance_status,omitempty"`
	CopayAmount         *int                   `db:"copay_amount" json:"copay_amount,omitempty"`
	TotalAmount         *int                   `db:"total_amount" json:"total_amount,omitempty"`
	PaymentStatus       string                 `db:"payment_status" json:"payment_status"`
	FollowUpRequired    bool                   `db:"follow_up_required" json:"follow_up_required"`
	FollowUpDate        *time.Time             `db:"follow_up_date" json:"follow_up_date,omitempty"`
	FollowUpNotes       *string                `db:"follow_up_notes" json:"follow_up_notes,omitempty"`
	ABDMConsent         bool                   `db:"abdm_consent" json:"abdm_consent"`
	ABDMConsentDate     *time.Time             `db:"abdm_consent_date" json:"abdm_consent_date,omitempty"`
	Notes               *string                `db:"notes" json:"notes,omitempty"`
	Tags                []string               `db:"tags" json:"tags"`
	CreatedAt           time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time              `db:"updated_at" json:"updated_at"`
}

// ReasonCode is a SNOMED coded visit reason.
type ReasonCode struct {
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Diagnosis links the encounter to a Condition when ConditionID is set.
type Diagnosis struct {
	ConditionID string `json:"condition_id,omitempty"`
	Code        string `json:"code,omitempty"`
	Display     string `json:"display,omitempty"`
	Use         string `json:"use,omitempty"`
}

// StatusChange is one row of encounter_status_history.
type StatusChange struct {
	ID          uuid.UUID `db:"id" json:"id"`
	EncounterID uuid.UUID `db:"encounter_id" json:"encounter_id"`
	FromStatus  string    `db:"from_status" json:"from_status"`
	ToStatus    string    `db:"to_status" json:"to_status"`
	ChangedBy   string    `db:"changed_by" json:"changed_by,omitempty"`
	ChangedAt   time.Time `db:"changed_at" json:"changed_at"`
}

// Duration is the elapsed time in whole minutes when both ends are known,
// else the stored duration, else 0.
func (e *Encounter) Duration() int {
	return clinicalcalc.DurationMinutes(&e.StartDate, e.EndDate, e.DurationMinutes)
}

func (e *Encounter) IsActive() bool    { return clinicalcalc.IsActiveStatus(e.Status) }
func (e *Encounter) IsCompleted() bool { return clinicalcalc.IsCompletedStatus(e.Status) }

type View struct {
	*Encounter
	Duration    int  `json:"duration"`
	IsActive    bool `json:"is_active"`
	IsCompleted bool `json:"is_completed"`
}

func (e *Encounter) View() View {
	return View{
		Encounter:   e,
		Duration:    e.Duration(),
		IsActive:    e.IsActive(),
		IsCompleted: e.IsCompleted(),
	}
}

// ToFHIR projects the record onto a FHIR R4 Encounter resource.
func (e *Encounter) ToFHIR() (map[string]interface{}, error) {
	switch {
	case e.ID == uuid.Nil:
		return nil, fhir.MissingField("Encounter", "id")
	case e.EncounterNumber == "":
		return nil, fhir.MissingField("Encounter", "encounter_id")
	case e.StartDate.IsZero():
		return nil, fhir.MissingField("Encounter", "start_date")
	case e.PatientID == uuid.Nil:
		return nil, fhir.MissingField("Encounter", "patient_id")
	case e.PractitionerID == uuid.Nil:
		return nil, fhir.MissingField("Encounter", "practitioner_id")
	case e.TenantID == uuid.Nil:
		return nil, fhir.MissingField("Encounter", "tenant_id")
	}

	extensions, err := e.extensions()
	if err != nil {
		return nil, err
	}

	start := e.StartDate
	period := fhir.Period{Start: &start, End: e.EndDate}

	return map[string]interface{}{
		"resourceType": "Encounter",
		"id":           e.ID.String(),
		"identifier": fhir.BuildIdentifiers(
			fhirmodels.IdentifierEncounter, e.EncounterNumber,
			fhirmodels.IdentifierFHIR, strVal(e.FHIREncounterID),
		),
		"status": e.Status,
		"class": fhir.Coding{
			System:  fhirmodels.SystemActCode,
			Code:    e.ClassCode,
			Display: fhirmodels.ClassDisplay(e.ClassCode),
		},
		"priority": fhir.CodeableConcept{
			Coding: []fhir.Coding{{
				System:  fhirmodels.SystemActPriority,
				Code:    e.Priority,
				Display: fhirmodels.PriorityDisplay(e.Priority),
			}},
		},
		"subject": fhir.UUIDReference("Patient", e.PatientID),
		"participant": []fhir.EncounterParticipant{{
			Type: []fhir.CodeableConcept{{
				Coding: []fhir.Coding{{
					System:  fhirmodels.SystemParticipationType,
					Code:    fhirmodels.ParticipantAttender,
					Display: fhirmodels.ParticipantAttenderDisplay,
				}},
			}},
			Individual: fhir.UUIDReference("Practitioner", e.PractitionerID),
		}},
		"period":          period,
		"reasonCode":      e.reasonCodes(),
		"reasonReference": e.reasonReferences(),
		"serviceProvider": fhir.UUIDReference("Organization", e.TenantID),
		"extension":       extensions,
	}, nil
}

func (e *Encounter) reasonCodes() []fhir.CodeableConcept {
	entries := make([]*fhir.CodeableConcept, 0, len(e.ReasonCode))
	for _, rc := range e.ReasonCode {
		entries = append(entries, &fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: fhirmodels.SystemSNOMED, Code: rc.Code, Display: rc.Display}},
			Text:   rc.Text,
		})
	}
	return fhir.Compact(entries...)
}

func (e *Encounter) reasonReferences() []fhir.Reference {
	entries := make([]*fhir.Reference, 0, len(e.Diagnosis))
	for _, d := range e.Diagnosis {
		entries = append(entries, fhir.When(d.ConditionID != "",
			fhir.Reference{Reference: fhir.FormatReference("Condition", d.ConditionID)}))
	}
	return fhir.Compact(entries...)
}

func (e *Encounter) extensions() ([]fhir.Extension, error) {
	var vitals *fhir.Extension
	if len(e.VitalSigns) > 0 {
		s, err := RenderVitalSigns(e.VitalSigns)
		if err != nil {
			return nil, err
		}
		ext := fhir.StringExtension(fhirmodels.ExtensionVitalSigns, s)
		vitals = &ext
	}

	return fhir.Compact(
		fhir.When(hasText(e.ChiefComplaint), fhir.StringExtension(fhirmodels.ExtensionChiefComplaint, strVal(e.ChiefComplaint))),
		vitals,
		// payment status is always emitted
		fhir.When(true, fhir.StringExtension(fhirmodels.ExtensionPaymentStatus, e.PaymentStatus)),
	), nil
}

// RenderVitalSigns renders the vitals map as compact JSON with sorted keys,
// so the same readings always produce the same string.
func RenderVitalSigns(vitals map[string]interface{}) (string, error) {
	raw, err := json.Marshal(vitals)
	if err != nil {
		return "", fmt.Errorf("render vital signs: %w", err)
	}
	return string(raw), nil
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
