package fhir

// Compact drops every nil entry and returns the remaining values in their
// original order. The result is never nil, so an all-absent input encodes
// as an empty JSON array.
func Compact[T any](entries ...*T) []T {
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

// When returns &v if present is true and nil otherwise. It is the usual way
// to build an entry for Compact from a triggering source field.
func When[T any](present bool, v T) *T {
	if !present {
		return nil
	}
	return &v
}
