package fhirmodels

import "testing"

func TestClassDisplay(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"AMB", "Ambulatory"},
		{"EMER", "Emergency"},
		{"HH", "Home Health"},
		{"IMP", "Inpatient Encounter"},
		{"ACUTE", "Inpatient Acute"},
		{"NONAC", "Inpatient Non-acute"},
		{"PRENC", "Pre-admission"},
		{"SS", "Short Stay"},
		{"VR", "Virtual"},
		{"XYZ", "XYZ"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ClassDisplay(tt.code); got != tt.want {
			t.Errorf("ClassDisplay(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
	if len(classDisplays) != 9 {
		t.Errorf("class table has %d entries, want 9", len(classDisplays))
	}
}

func TestPriorityDisplay(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"routine", "Routine"},
		{"urgent", "Urgent"},
		{"asap", "ASAP"},
		{"stat", "Stat"},
		{"R", "R"},
		{"ROUTINE", "ROUTINE"},
	}
	for _, tt := range tests {
		if got := PriorityDisplay(tt.code); got != tt.want {
			t.Errorf("PriorityDisplay(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
	if len(priorityDisplays) != 4 {
		t.Errorf("priority table has %d entries, want 4", len(priorityDisplays))
	}
}

func TestIsValidEncounterStatus(t *testing.T) {
	for _, s := range EncounterStatuses {
		if !IsValidEncounterStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{"", "entered-in-error", "FINISHED", "done"} {
		if IsValidEncounterStatus(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestIsKnownCodes(t *testing.T) {
	if !IsKnownClass("VR") || IsKnownClass("FLD") {
		t.Error("IsKnownClass mismatch")
	}
	if !IsKnownPriority("stat") || IsKnownPriority("S") {
		t.Error("IsKnownPriority mismatch")
	}
}
