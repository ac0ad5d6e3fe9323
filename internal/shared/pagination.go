package shared

import "math"

// DefaultPageSize applies when a caller asks for a non-positive page size.
const DefaultPageSize = 10

// Pagination contains metadata for zero-based paginated listings.
type Pagination struct {
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(page, pageSize, total int) Pagination {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}

// Bounds returns the half-open slice range of the current page.
// A page past the end yields an empty range.
func (p Pagination) Bounds() (start, end int) {
	if p.Page < 0 || p.PageSize <= 0 || p.Total <= 0 {
		return p.Total, p.Total
	}
	// Compare before multiplying so huge pages cannot wrap around.
	if p.Page > (p.Total-1)/p.PageSize {
		return p.Total, p.Total
	}
	start = p.Page * p.PageSize
	end = p.Total
	if p.PageSize < p.Total-start {
		end = start + p.PageSize
	}
	return start, end
}
