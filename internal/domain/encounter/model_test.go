package encounter

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinified/clinified/internal/platform/fhir"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

var (
	fixtureID           = uuid.MustParse("5b1e9c2a-7d3f-4a6b-8e1c-2f3a4b5c6d7e")
	fixturePatientID    = uuid.MustParse("3f2b8c1e-6a4d-4e8f-9b7a-1c2d3e4f5a6b")
	fixturePractitioner = uuid.MustParse("1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d")
	fixtureTenant       = uuid.MustParse("9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d")
)

func fixtureEncounter() *Encounter {
	return &Encounter{
		ID:              fixtureID,
		TenantID:        fixtureTenant,
		PatientID:       fixturePatientID,
		PractitionerID:  fixturePractitioner,
		EncounterNumber: "ENC-0001",
		Status:          "in-progress",
		ClassCode:       "AMB",
		Priority:        "routine",
		StartDate:       time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC),
		PaymentStatus:   "pending",
	}
}

func roundTrip(t *testing.T, doc map[string]interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func project(t *testing.T, e *Encounter) map[string]interface{} {
	t.Helper()
	doc, err := e.ToFHIR()
	if err != nil {
		t.Fatalf("ToFHIR: %v", err)
	}
	return roundTrip(t, doc)
}

func extensionValues(t *testing.T, doc map[string]interface{}) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, raw := range doc["extension"].([]interface{}) {
		ext := raw.(map[string]interface{})
		out[ext["url"].(string)], _ = ext["valueString"].(string)
	}
	return out
}

func TestEncounter_Duration(t *testing.T) {
	e := fixtureEncounter()
	if got := e.Duration(); got != 0 {
		t.Errorf("open encounter without stored duration = %d, want 0", got)
	}
	e.DurationMinutes = intPtr(15)
	if got := e.Duration(); got != 15 {
		t.Errorf("stored duration = %d, want 15", got)
	}
	end := e.StartDate.Add(45*time.Minute + 59*time.Second)
	e.EndDate = &end
	if got := e.Duration(); got != 45 {
		t.Errorf("computed duration = %d, want 45", got)
	}
}

func TestEncounter_StatusFlags(t *testing.T) {
	tests := []struct {
		status            string
		active, completed bool
	}{
		{"planned", false, false},
		{"arrived", true, false},
		{"triaged", true, false},
		{"in-progress", true, false},
		{"onleave", false, false},
		{"finished", false, true},
		{"cancelled", false, false},
	}
	for _, tt := range tests {
		e := &Encounter{Status: tt.status}
		if e.IsActive() != tt.active || e.IsCompleted() != tt.completed {
			t.Errorf("%s: active=%v completed=%v", tt.status, e.IsActive(), e.IsCompleted())
		}
	}
}

func TestEncounter_ToFHIR_Minimal(t *testing.T) {
	doc := project(t, fixtureEncounter())

	if doc["resourceType"] != "Encounter" || doc["id"] != fixtureID.String() {
		t.Errorf("header = %v/%v", doc["resourceType"], doc["id"])
	}
	if doc["status"] != "in-progress" {
		t.Errorf("status = %v", doc["status"])
	}

	idents := doc["identifier"].([]interface{})
	if len(idents) != 1 {
		t.Fatalf("expected only the internal identifier, got %v", idents)
	}
	if id := idents[0].(map[string]interface{}); id["system"] != "https://clinified.com/encounter" || id["value"] != "ENC-0001" {
		t.Errorf("identifier = %v", id)
	}

	class := doc["class"].(map[string]interface{})
	if class["system"] != "http://terminology.hl7.org/CodeSystem/v3-ActCode" || class["code"] != "AMB" || class["display"] != "Ambulatory" {
		t.Errorf("class = %v", class)
	}

	prio := doc["priority"].(map[string]interface{})["coding"].([]interface{})[0].(map[string]interface{})
	if prio["code"] != "routine" || prio["display"] != "Routine" {
		t.Errorf("priority = %v", prio)
	}

	if ref := doc["subject"].(map[string]interface{})["reference"]; ref != "Patient/"+fixturePatientID.String() {
		t.Errorf("subject = %v", ref)
	}
	if ref := doc["serviceProvider"].(map[string]interface{})["reference"]; ref != "Organization/"+fixtureTenant.String() {
		t.Errorf("serviceProvider = %v", ref)
	}

	parts := doc["participant"].([]interface{})
	if len(parts) != 1 {
		t.Fatalf("participant = %v", parts)
	}
	part := parts[0].(map[string]interface{})
	if ref := part["individual"].(map[string]interface{})["reference"]; ref != "Practitioner/"+fixturePractitioner.String() {
		t.Errorf("individual = %v", ref)
	}
	coding := part["type"].([]interface{})[0].(map[string]interface{})["coding"].([]interface{})[0].(map[string]interface{})
	if coding["code"] != "ATND" || coding["display"] != "attender" {
		t.Errorf("participant type = %v", coding)
	}

	period := doc["period"].(map[string]interface{})
	if period["start"] != "2024-05-10T09:30:00Z" {
		t.Errorf("period.start = %v", period["start"])
	}
	if _, ok := period["end"]; ok {
		t.Errorf("period.end should be absent for an open encounter")
	}

	if rc := doc["reasonCode"].([]interface{}); len(rc) != 0 {
		t.Errorf("reasonCode = %v, want []", rc)
	}
	if rr := doc["reasonReference"].([]interface{}); len(rr) != 0 {
		t.Errorf("reasonReference = %v, want []", rr)
	}

	exts := extensionValues(t, doc)
	if len(exts) != 1 || exts["https://clinified.com/extension/payment-status"] != "pending" {
		t.Errorf("extensions = %v, want only payment-status", exts)
	}
}

func TestEncounter_ToFHIR_Full(t *testing.T) {
	e := fixtureEncounter()
	end := e.StartDate.Add(30 * time.Minute)
	e.EndDate = &end
	e.Status = "finished"
	e.ClassCode = "EMER"
	e.Priority = "stat"
	e.FHIREncounterID = strPtr("ext-77")
	e.ChiefComplaint = strPtr("chest pain")
	e.ReasonCode = []ReasonCode{
		{Code: "29857009", Display: "Chest pain", Text: "pain on exertion"},
		{Code: "267036007"},
	}
	e.Diagnosis = []Diagnosis{
		{ConditionID: "cond-1", Code: "I20.9"},
		{Code: "R07.4"},
		{ConditionID: "cond-2"},
	}
	e.VitalSigns = map[string]interface{}{"pulse": 92, "bp": "130/85", "spo2": 97.5}
	e.PaymentStatus = "paid"

	doc := project(t, e)

	if idents := doc["identifier"].([]interface{}); len(idents) != 2 {
		t.Fatalf("identifier = %v", idents)
	} else if ext := idents[1].(map[string]interface{}); ext["system"] != "https://clinified.com/fhir" || ext["value"] != "ext-77" {
		t.Errorf("external identifier = %v", ext)
	}

	if class := doc["class"].(map[string]interface{}); class["display"] != "Emergency" {
		t.Errorf("class = %v", class)
	}
	if period := doc["period"].(map[string]interface{}); period["end"] != "2024-05-10T10:00:00Z" {
		t.Errorf("period = %v", period)
	}

	rc := doc["reasonCode"].([]interface{})
	if len(rc) != 2 {
		t.Fatalf("reasonCode = %v", rc)
	}
	first := rc[0].(map[string]interface{})
	if first["text"] != "pain on exertion" {
		t.Errorf("reasonCode[0].text = %v", first["text"])
	}
	c := first["coding"].([]interface{})[0].(map[string]interface{})
	if c["system"] != "http://snomed.info/sct" || c["code"] != "29857009" || c["display"] != "Chest pain" {
		t.Errorf("reasonCode[0].coding = %v", c)
	}

	rr := doc["reasonReference"].([]interface{})
	if len(rr) != 2 {
		t.Fatalf("reasonReference = %v", rr)
	}
	if rr[0].(map[string]interface{})["reference"] != "Condition/cond-1" ||
		rr[1].(map[string]interface{})["reference"] != "Condition/cond-2" {
		t.Errorf("reasonReference = %v", rr)
	}

	exts := extensionValues(t, doc)
	want := map[string]string{
		"https://clinified.com/extension/chief-complaint": "chest pain",
		"https://clinified.com/extension/vital-signs":     `{"bp":"130/85","pulse":92,"spo2":97.5}`,
		"https://clinified.com/extension/payment-status":  "paid",
	}
	if len(exts) != len(want) {
		t.Fatalf("extensions = %v", exts)
	}
	for url, v := range want {
		if exts[url] != v {
			t.Errorf("%s = %q, want %q", url, exts[url], v)
		}
	}
}

func TestEncounter_ToFHIR_ExtensionOrder(t *testing.T) {
	e := fixtureEncounter()
	e.ChiefComplaint = strPtr("fever")
	e.VitalSigns = map[string]interface{}{"temp": 38.2}

	doc := project(t, e)
	exts := doc["extension"].([]interface{})
	urls := make([]string, len(exts))
	for i, x := range exts {
		urls[i] = x.(map[string]interface{})["url"].(string)
	}
	want := []string{
		"https://clinified.com/extension/chief-complaint",
		"https://clinified.com/extension/vital-signs",
		"https://clinified.com/extension/payment-status",
	}
	for i := range want {
		if i >= len(urls) || urls[i] != want[i] {
			t.Fatalf("extension order = %v", urls)
		}
	}
}

func TestEncounter_ToFHIR_EmptyChiefComplaintOmitted(t *testing.T) {
	e := fixtureEncounter()
	e.ChiefComplaint = strPtr("")
	e.VitalSigns = map[string]interface{}{}

	exts := extensionValues(t, project(t, e))
	if len(exts) != 1 {
		t.Errorf("extensions = %v, want only payment-status", exts)
	}
}

func TestEncounter_ToFHIR_EmptyPaymentStatusStillEmitted(t *testing.T) {
	e := fixtureEncounter()
	e.PaymentStatus = ""

	doc := project(t, e)
	ext := doc["extension"].([]interface{})[0].(map[string]interface{})
	if v, ok := ext["valueString"]; !ok || v != "" {
		t.Errorf("payment-status extension = %v", ext)
	}
}

func TestEncounter_ToFHIR_UnknownCodesDegrade(t *testing.T) {
	e := fixtureEncounter()
	e.ClassCode = "FIELD"
	e.Priority = "whenever"

	doc := project(t, e)
	if class := doc["class"].(map[string]interface{}); class["display"] != "FIELD" {
		t.Errorf("class display = %v", class["display"])
	}
	prio := doc["priority"].(map[string]interface{})["coding"].([]interface{})[0].(map[string]interface{})
	if prio["display"] != "whenever" {
		t.Errorf("priority display = %v", prio["display"])
	}
}

func TestEncounter_ToFHIR_RequiredFields(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(*Encounter)
	}{
		{"id", func(e *Encounter) { e.ID = uuid.Nil }},
		{"encounter_id", func(e *Encounter) { e.EncounterNumber = "" }},
		{"start_date", func(e *Encounter) { e.StartDate = time.Time{} }},
		{"patient_id", func(e *Encounter) { e.PatientID = uuid.Nil }},
		{"practitioner_id", func(e *Encounter) { e.PractitionerID = uuid.Nil }},
		{"tenant_id", func(e *Encounter) { e.TenantID = uuid.Nil }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			e := fixtureEncounter()
			tt.mutate(e)
			doc, err := e.ToFHIR()
			if doc != nil {
				t.Errorf("expected no document, got %v", doc)
			}
			if !errors.Is(err, fhir.ErrMissingRequiredField) {
				t.Fatalf("err = %v, want ErrMissingRequiredField", err)
			}
			fe, ok := fhir.AsFieldError(err)
			if !ok || fe.Resource != "Encounter" || fe.Field != tt.field {
				t.Errorf("field error = %+v", fe)
			}
		})
	}
}

func TestEncounter_ToFHIR_Deterministic(t *testing.T) {
	e := fixtureEncounter()
	e.VitalSigns = map[string]interface{}{"a": 1, "b": 2, "c": 3, "d": 4}
	e.ReasonCode = []ReasonCode{{Code: "1"}, {Code: "2"}}

	first, _ := e.ToFHIR()
	want, _ := json.Marshal(first)
	for i := 0; i < 20; i++ {
		doc, _ := e.ToFHIR()
		got, _ := json.Marshal(doc)
		if string(got) != string(want) {
			t.Fatalf("projection changed between calls:\n%s\n%s", want, got)
		}
	}
}

func TestRenderVitalSigns(t *testing.T) {
	got, err := RenderVitalSigns(map[string]interface{}{"weight": 70, "bp": "120/80"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"bp":"120/80","weight":70}` {
		t.Errorf("got %s", got)
	}

	if _, err := RenderVitalSigns(map[string]interface{}{"bad": make(chan int)}); err == nil {
		t.Error("expected error for unencodable value")
	}
}

func TestEncounter_View(t *testing.T) {
	e := fixtureEncounter()
	end := e.StartDate.Add(20 * time.Minute)
	e.EndDate = &end
	e.Status = "finished"

	raw, err := json.Marshal(e.View())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]interface{}
	json.Unmarshal(raw, &out)
	if out["duration"] != float64(20) || out["is_active"] != false || out["is_completed"] != true {
		t.Errorf("view = %v", out)
	}
	if out["encounter_id"] != "ENC-0001" {
		t.Errorf("encounter_id = %v", out["encounter_id"])
	}
}

func countNulls(v interface{}) int {
	switch x := v.(type) {
	case nil:
		return 1
	case map[string]interface{}:
		n := 0
		for _, child := range x {
			n += countNulls(child)
		}
		return n
	case []interface{}:
		n := 0
		for _, child := range x {
			n += countNulls(child)
		}
		return n
	}
	return 0
}

func TestEncounter_ToFHIR_NoNulls(t *testing.T) {
	full := fixtureEncounter()
	end := full.StartDate.Add(45 * time.Minute)
	full.EndDate = &end
	full.Status = "finished"
	full.FHIREncounterID = strPtr("ext-9")
	full.ChiefComplaint = strPtr("fever")
	full.ReasonCode = []ReasonCode{{Code: "386661006", Display: "Fever"}}
	full.Diagnosis = []Diagnosis{{ConditionID: "cond-1"}, {Code: "R50.9"}}
	full.VitalSigns = map[string]interface{}{"temp": 38.4}

	tests := []struct {
		name string
		e    *Encounter
	}{
		{"minimal", fixtureEncounter()},
		{"full", full},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if n := countNulls(project(t, tt.e)); n != 0 {
				t.Errorf("found %d null values in projection", n)
			}
		})
	}
}
