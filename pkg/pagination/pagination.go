// Package pagination parses page/page_size query parameters against a fixed
// allow-list of page sizes and slices result sets into pages.
package pagination

import (
	"math"
	"net/http"
	"slices"
	"strconv"
)

// DefaultPageSize is used when page_size is absent or not allowed.
const DefaultPageSize = 12

// AllowedPageSizes are the only page sizes a client may request.
var AllowedPageSizes = []int{12, 24, 48}

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Offset   int `json:"-"`
}

// DefaultParams returns the first page at the default size.
func DefaultParams() Params {
	return Params{
		Page:     1,
		PageSize: DefaultPageSize,
		Offset:   0,
	}
}

// New builds Params from raw strings. Non-numeric or non-positive pages fall
// back to page 1; sizes outside AllowedPageSizes fall back to DefaultPageSize.
// Pages are capped so the offset always fits in an int.
func New(page, pageSize string) Params {
	p := DefaultParams()

	if pageSize != "" {
		if v, err := strconv.Atoi(pageSize); err == nil && slices.Contains(AllowedPageSizes, v) {
			p.PageSize = v
		}
	}

	if page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = min(v, math.MaxInt/p.PageSize)
		}
	}

	p.Offset = (p.Page - 1) * p.PageSize
	return p
}

// FromRequest extracts pagination parameters from an HTTP request.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	return New(q.Get("page"), q.Get("page_size"))
}

// Window returns the [start, end) bounds of the page within a collection of
// total items. Both are clamped to total, so a page past the end (or a
// negative offset from hand-built Params) yields an empty window.
func (p Params) Window(total int) (start, end int) {
	start = p.Offset
	if start < 0 || start > total {
		start = total
	}
	end = start + min(max(p.PageSize, 0), total-start)
	return start, end
}

// Slice returns the page of items described by p.
func Slice[T any](items []T, p Params) []T {
	start, end := p.Window(len(items))
	return items[start:end]
}

// TotalPages returns the number of pages needed for total items.
func (p Params) TotalPages(total int) int {
	pages := total / p.PageSize
	if total%p.PageSize > 0 {
		pages++
	}
	return pages
}
