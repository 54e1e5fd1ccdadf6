// Package paging slices ordered result sets into pages.
package paging

import (
	"net/url"
	"strconv"
)

// MaxPageSize caps every page; larger requests are clamped, not rejected.
const MaxPageSize = 50

type Page[T any] struct {
	Items       []T
	TotalCount  int
	PageSize    int
	CurrentPage int
	TotalPages  int
	HasNext     bool
	HasPrevious bool
}

// Metadata is what list endpoints publish in the X-Pagination header.
type Metadata struct {
	TotalCount  int  `json:"totalCount"`
	PageSize    int  `json:"pageSize"`
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

func (p Page[T]) Metadata() Metadata {
	return Metadata{
		TotalCount:  p.TotalCount,
		PageSize:    p.PageSize,
		CurrentPage: p.CurrentPage,
		TotalPages:  p.TotalPages,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
}

// Params are the caller's paging inputs before clamping.
type Params struct {
	PageNumber int
	PageSize   int
}

// Normalize applies the clamping rules: page numbers start at 1 and sizes
// outside (0, MaxPageSize] become MaxPageSize.
func (p Params) Normalize() Params {
	if p.PageNumber <= 0 {
		p.PageNumber = 1
	}
	if p.PageSize <= 0 || p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// ParseParams reads pageNumber and pageSize from a query string. Missing or
// non-numeric values fall back to the defaults.
func ParseParams(q url.Values) Params {
	var p Params
	if v, err := strconv.Atoi(q.Get("pageNumber")); err == nil {
		p.PageNumber = v
	}
	if v, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		p.PageSize = v
	}
	return p.Normalize()
}

// Slice cuts one page out of seq. seq must already be ordered; the page's
// items share no backing array with seq.
func Slice[T any](seq []T, pageNumber, pageSize int) Page[T] {
	p := Params{PageNumber: pageNumber, PageSize: pageSize}.Normalize()

	total := len(seq)
	totalPages := (total + p.PageSize - 1) / p.PageSize

	items := []T{}
	// compare page indexes first; the skip product overflows for huge page numbers
	if p.PageNumber-1 < totalPages {
		skip := (p.PageNumber - 1) * p.PageSize
		end := min(skip+p.PageSize, total)
		items = append(items, seq[skip:end]...)
	}

	return Page[T]{
		Items:       items,
		TotalCount:  total,
		PageSize:    p.PageSize,
		CurrentPage: p.PageNumber,
		TotalPages:  totalPages,
		HasNext:     p.PageNumber < totalPages,
		HasPrevious: p.PageNumber > 1,
	}
}
