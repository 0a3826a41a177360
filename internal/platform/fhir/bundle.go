package fhir

import (
	"encoding/json"
	"time"

	"github.com/clinified/clinified/pkg/pagination"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string                `json:"resourceType"`
	Type         string                `json:"type"`
	Total        *int                  `json:"total,omitempty"`
	Link         []pagination.FHIRLink `json:"link,omitempty"`
	Entry        []BundleEntry         `json:"entry"`
	Timestamp    *time.Time            `json:"timestamp,omitempty"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// NewSearchBundle creates a searchset Bundle from projected resources.
// basePath is the type-level endpoint (e.g. "/fhir/Patient") used for both
// fullUrl and the pagination links.
func NewSearchBundle(resources []map[string]interface{}, total int, basePath string, pg pagination.Params) (*Bundle, error) {
	now := time.Now().UTC()
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		entry := BundleEntry{
			Resource: raw,
			Search:   &BundleSearch{Mode: "match"},
		}
		if id, ok := r["id"].(string); ok && id != "" {
			entry.FullURL = basePath + "/" + id
		}
		entries = append(entries, entry)
	}

	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Timestamp:    &now,
		Link:         pg.FHIRLinks(basePath, total),
		Entry:        entries,
	}, nil
}
