package fhirmodels

// Common FHIR value set constants used across the application.

// EncounterStatus values per FHIR R4.
const (
	EncounterStatusPlanned    = "planned"
	EncounterStatusArrived    = "arrived"
	EncounterStatusTriaged    = "triaged"
	EncounterStatusInProgress = "in-progress"
	EncounterStatusOnLeave    = "onleave"
	EncounterStatusFinished   = "finished"
	EncounterStatusCancelled  = "cancelled"
)

// EncounterStatuses is the closed set of statuses a canonical encounter may hold.
var EncounterStatuses = []string{
	EncounterStatusPlanned,
	EncounterStatusArrived,
	EncounterStatusTriaged,
	EncounterStatusInProgress,
	EncounterStatusOnLeave,
	EncounterStatusFinished,
	EncounterStatusCancelled,
}

// EncounterClass codes per FHIR R4 v3-ActCode.
const (
	EncounterClassAmbulatory   = "AMB"
	EncounterClassEmergency    = "EMER"
	EncounterClassHomeHealth   = "HH"
	EncounterClassInpatient    = "IMP"
	EncounterClassAcute        = "ACUTE"
	EncounterClassNonAcute     = "NONAC"
	EncounterClassPreAdmission = "PRENC"
	EncounterClassShortStay    = "SS"
	EncounterClassVirtual      = "VR"
)

// EncounterPriority codes per v3-ActPriority, as stored on the encounter.
const (
	PriorityRoutine = "routine"
	PriorityUrgent  = "urgent"
	PriorityASAP    = "asap"
	PriorityStat    = "stat"
)

// ParticipantType codes.
const (
	ParticipantAttender        = "ATND"
	ParticipantAttenderDisplay = "attender"
)

// Payment status values.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentWaived  = "waived"
)

// AdministrativeGender codes.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

// Code systems.
const (
	SystemActCode           = "http://terminology.hl7.org/CodeSystem/v3-ActCode"
	SystemActPriority       = "http://terminology.hl7.org/CodeSystem/v3-ActPriority"
	SystemParticipationType = "http://terminology.hl7.org/CodeSystem/v3-ParticipationType"
	SystemSNOMED            = "http://snomed.info/sct"
	SystemContactRole       = "http://terminology.hl7.org/CodeSystem/v2-0131"
)

// Identifier systems.
const (
	IdentifierPatient      = "https://clinified.com/patient"
	IdentifierABHA         = "https://abdm.gov.in/health-id"
	IdentifierEncounter    = "https://clinified.com/encounter"
	IdentifierFHIR         = "https://clinified.com/fhir"
	IdentifierPractitioner = "https://clinified.com/practitioner"
	IdentifierHPR          = "https://hpr.abdm.gov.in"
)

// Extension URLs.
const (
	ExtensionBloodGroup     = "https://clinified.com/extension/blood-group"
	ExtensionAllergies      = "https://clinified.com/extension/allergies"
	ExtensionChiefComplaint = "https://clinified.com/extension/chief-complaint"
	ExtensionVitalSigns     = "https://clinified.com/extension/vital-signs"
	ExtensionPaymentStatus  = "https://clinified.com/extension/payment-status"
)

// Emergency contact relationship coding (v2-0131).
const (
	ContactRoleEmergency        = "C"
	ContactRoleEmergencyDisplay = "Emergency Contact"
)
