package fhir

import (
	"fmt"

	"github.com/google/uuid"
)

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// UUIDReference builds a Reference to resourceType/<id> using the canonical
// textual form of the UUID. The target is not checked for existence.
func UUIDReference(resourceType string, id uuid.UUID) Reference {
	return Reference{Reference: FormatReference(resourceType, id.String())}
}

// BuildIdentifiers returns the internal identifier followed by the external
// one. The external entry is included only when externalValue is non-empty.
func BuildIdentifiers(internalSystem, internalValue, externalSystem, externalValue string) []Identifier {
	return Compact(
		&Identifier{System: internalSystem, Value: internalValue},
		When(externalValue != "", Identifier{System: externalSystem, Value: externalValue}),
	)
}
