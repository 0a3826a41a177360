package fhir

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCompact_DropsAbsentPreservingOrder(t *testing.T) {
	a, c := "a", "c"
	got := Compact(&a, nil, &c, nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("Compact = %v, want [a c]", got)
	}
}

func TestCompact_AllAbsentEncodesEmptyArray(t *testing.T) {
	got := Compact[ContactPoint](nil, nil)
	if got == nil {
		t.Fatal("Compact returned nil slice")
	}
	raw, _ := json.Marshal(got)
	if string(raw) != "[]" {
		t.Errorf("json = %s, want []", raw)
	}
}

func TestWhen(t *testing.T) {
	if When(false, 1) != nil {
		t.Error("When(false) should be nil")
	}
	if v := When(true, 7); v == nil || *v != 7 {
		t.Errorf("When(true, 7) = %v", v)
	}
}

func TestStringExtension_EmitsEmptyValue(t *testing.T) {
	raw, _ := json.Marshal(StringExtension("https://x", ""))
	if string(raw) != `{"url":"https://x","valueString":""}` {
		t.Errorf("json = %s", raw)
	}
}

func TestFieldError(t *testing.T) {
	err := MissingField("Patient", "date_of_birth")
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Error("expected errors.Is ErrMissingRequiredField")
	}
	fe, ok := AsFieldError(err)
	if !ok || fe.Field != "date_of_birth" {
		t.Fatalf("AsFieldError = %+v, %v", fe, ok)
	}
	oo := RequiredOutcome(fe)
	if oo.Issue[0].Code != "required" || oo.Issue[0].Expression[0] != "Patient.date_of_birth" {
		t.Errorf("outcome = %+v", oo.Issue[0])
	}
}
