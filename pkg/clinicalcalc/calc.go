// Package clinicalcalc computes attributes derived from canonical clinical
// records. Every function is pure: callers supply the evaluation time, and
// nothing here is ever persisted.
package clinicalcalc

import (
	"math"
	"time"

	"github.com/clinified/clinified/pkg/fhirmodels"
)

// Age returns whole years between birthDate and today, minus one when
// today's month/day falls before the birthday.
func Age(birthDate, today time.Time) int {
	age := today.Year() - birthDate.Year()
	if today.Month() < birthDate.Month() ||
		(today.Month() == birthDate.Month() && today.Day() < birthDate.Day()) {
		age--
	}
	return age
}

// BMI returns weight / (height in metres)^2 rounded to two decimals, or nil
// when either measurement is missing.
func BMI(heightCM, weightKG *int) *float64 {
	if heightCM == nil || weightKG == nil || *heightCM <= 0 || *weightKG <= 0 {
		return nil
	}
	m := float64(*heightCM) / 100
	v := math.Round(float64(*weightKG)/(m*m)*100) / 100
	return &v
}

// DurationMinutes returns the floored minutes between start and end when
// both are set, otherwise the stored value, otherwise 0.
func DurationMinutes(start, end *time.Time, stored *int) int {
	if start != nil && end != nil && !start.IsZero() && !end.IsZero() {
		return int(math.Floor(end.Sub(*start).Minutes()))
	}
	if stored != nil {
		return *stored
	}
	return 0
}

// IsActiveStatus reports whether an encounter in this status is underway.
func IsActiveStatus(status string) bool {
	switch status {
	case fhirmodels.EncounterStatusArrived,
		fhirmodels.EncounterStatusTriaged,
		fhirmodels.EncounterStatusInProgress:
		return true
	}
	return false
}

// IsCompletedStatus reports whether an encounter in this status is finished.
func IsCompletedStatus(status string) bool {
	return status == fhirmodels.EncounterStatusFinished
}
