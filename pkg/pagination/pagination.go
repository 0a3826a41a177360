package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// paging keys are never carried into Filters.
var pagingKeys = map[string]bool{"_count": true, "_offset": true, "limit": true, "offset": true}

// Params holds the page window of a request plus the remaining query
// parameters, which are replayed on FHIR Bundle links.
type Params struct {
	Limit   int
	Offset  int
	Filters url.Values
}

// FromContext reads _count/_offset (FHIR) or limit/offset (REST).
func FromContext(c echo.Context) Params {
	limit := firstInt(c, "_count", "limit")
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset := firstInt(c, "_offset", "offset")
	if offset < 0 {
		offset = 0
	}

	filters := url.Values{}
	for k, v := range c.QueryParams() {
		if !pagingKeys[k] {
			filters[k] = v
		}
	}
	return Params{Limit: limit, Offset: offset, Filters: filters}
}

func firstInt(c echo.Context, keys ...string) int {
	for _, k := range keys {
		if n, err := strconv.Atoi(c.QueryParam(k)); err == nil && n != 0 {
			return n
		}
	}
	return 0
}

// Response wraps a paginated REST response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
}

func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// FHIRLink is a single Bundle.link entry.
type FHIRLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// FHIRLinks builds self/next/previous links for a searchset, keeping the
// request's search filters.
func (p Params) FHIRLinks(basePath string, total int) []FHIRLink {
	links := []FHIRLink{{Relation: "self", URL: p.pageURL(basePath, p.Offset)}}
	if p.HasNext(total) {
		links = append(links, FHIRLink{Relation: "next", URL: p.pageURL(basePath, p.Offset+p.Limit)})
	}
	if p.HasPrevious() {
		prev := p.Offset - p.Limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, FHIRLink{Relation: "previous", URL: p.pageURL(basePath, prev)})
	}
	return links
}

func (p Params) pageURL(basePath string, offset int) string {
	q := url.Values{}
	for k, v := range p.Filters {
		q[k] = v
	}
	q.Set("_offset", strconv.Itoa(offset))
	q.Set("_count", strconv.Itoa(p.Limit))
	return basePath + "?" + q.Encode()
}
