package fhirmodels

var classDisplays = map[string]string{
	EncounterClassAmbulatory:   "Ambulatory",
	EncounterClassEmergency:    "Emergency",
	EncounterClassHomeHealth:   "Home Health",
	EncounterClassInpatient:    "Inpatient Encounter",
	EncounterClassAcute:        "Inpatient Acute",
	EncounterClassNonAcute:     "Inpatient Non-acute",
	EncounterClassPreAdmission: "Pre-admission",
	EncounterClassShortStay:    "Short Stay",
	EncounterClassVirtual:      "Virtual",
}

var priorityDisplays = map[string]string{
	PriorityRoutine: "Routine",
	PriorityUrgent:  "Urgent",
	PriorityASAP:    "ASAP",
	PriorityStat:    "Stat",
}

// ClassDisplay returns the display name for an encounter class code.
// Unmapped codes are returned unchanged.
func ClassDisplay(code string) string {
	if d, ok := classDisplays[code]; ok {
		return d
	}
	return code
}

// PriorityDisplay returns the display name for an encounter priority code.
// Unmapped codes are returned unchanged.
func PriorityDisplay(code string) string {
	if d, ok := priorityDisplays[code]; ok {
		return d
	}
	return code
}

// IsKnownClass reports whether code is in the encounter class table.
func IsKnownClass(code string) bool {
	_, ok := classDisplays[code]
	return ok
}

// IsKnownPriority reports whether code is in the encounter priority table.
func IsKnownPriority(code string) bool {
	_, ok := priorityDisplays[code]
	return ok
}

// IsValidEncounterStatus reports whether status belongs to EncounterStatuses.
func IsValidEncounterStatus(status string) bool {
	for _, s := range EncounterStatuses {
		if s == status {
			return true
		}
	}
	return false
}
