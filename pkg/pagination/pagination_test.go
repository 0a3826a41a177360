package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor("/")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
	if len(p.Filters) != 0 {
		t.Errorf("expected no filters, got %v", p.Filters)
	}
}

func TestFromContext_RESTAndFHIRKeys(t *testing.T) {
	tests := []struct {
		target string
		limit  int
		offset int
	}{
		{"/?limit=50&offset=10", 50, 10},
		{"/?_count=25&_offset=5", 25, 5},
		{"/?_count=25&limit=50", 25, 0},
		{"/?limit=500", MaxLimit, 0},
		{"/?offset=-3", DefaultLimit, 0},
		{"/?limit=abc", DefaultLimit, 0},
	}
	for _, tt := range tests {
		p := paramsFor(tt.target)
		if p.Limit != tt.limit || p.Offset != tt.offset {
			t.Errorf("%s: got limit=%d offset=%d, want %d/%d", tt.target, p.Limit, p.Offset, tt.limit, tt.offset)
		}
	}
}

func TestFromContext_Filters(t *testing.T) {
	p := paramsFor("/?patient=abc&_count=10&q=ravi")
	if p.Filters.Get("patient") != "abc" || p.Filters.Get("q") != "ravi" {
		t.Errorf("filters = %v", p.Filters)
	}
	if p.Filters.Has("_count") {
		t.Error("paging keys must not be carried as filters")
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a"}, 50, Params{Limit: 20, Offset: 20})
	if !r.HasMore {
		t.Error("expected has_more at offset 20 of 50")
	}
	r = NewResponse([]string{"a"}, 50, Params{Limit: 20, Offset: 40})
	if r.HasMore {
		t.Error("expected no more results on last page")
	}
}

func TestFHIRLinks(t *testing.T) {
	tests := []struct {
		name  string
		p     Params
		total int
		want  map[string]string
	}{
		{
			name:  "first page",
			p:     Params{Limit: 10, Offset: 0},
			total: 25,
			want: map[string]string{
				"self": "/fhir/Patient?_count=10&_offset=0",
				"next": "/fhir/Patient?_count=10&_offset=10",
			},
		},
		{
			name:  "middle page",
			p:     Params{Limit: 10, Offset: 10},
			total: 25,
			want: map[string]string{
				"self":     "/fhir/Patient?_count=10&_offset=10",
				"next":     "/fhir/Patient?_count=10&_offset=20",
				"previous": "/fhir/Patient?_count=10&_offset=0",
			},
		},
		{
			name:  "last page",
			p:     Params{Limit: 10, Offset: 20},
			total: 25,
			want: map[string]string{
				"self":     "/fhir/Patient?_count=10&_offset=20",
				"previous": "/fhir/Patient?_count=10&_offset=10",
			},
		},
		{
			name:  "no results",
			p:     Params{Limit: 10},
			total: 0,
			want:  map[string]string{"self": "/fhir/Patient?_count=10&_offset=0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := tt.p.FHIRLinks("/fhir/Patient", tt.total)
			if len(links) != len(tt.want) {
				t.Fatalf("expected %d links, got %d: %+v", len(tt.want), len(links), links)
			}
			for _, l := range links {
				if tt.want[l.Relation] != l.URL {
					t.Errorf("%s link = %s, want %s", l.Relation, l.URL, tt.want[l.Relation])
				}
			}
		})
	}
}

func TestFHIRLinks_KeepsFilters(t *testing.T) {
	p := paramsFor("/fhir/Encounter?patient=abc&_count=5")
	links := p.FHIRLinks("/fhir/Encounter", 12)
	if links[1].URL != "/fhir/Encounter?_count=5&_offset=5&patient=abc" {
		t.Errorf("next link = %s", links[1].URL)
	}
}
