package domain

// Page size bounds for listings.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PaginationParams selects one page of a listing. Page is 1-indexed.
type PaginationParams struct {
	Page  int
	Limit int
}

// NewPaginationParams builds a PaginationParams from optional caller input.
// Nil or non-positive values fall back to page 1 and DefaultPageLimit; the
// limit is capped at MaxPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: DefaultPageLimit}
	if page != nil && *page >= 1 {
		p.Page = *page
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, MaxPageLimit)
	}
	return p
}

// Normalize applies the defaults and bounds of NewPaginationParams to p.
// Listings call it so a hand-built zero value still selects the first page.
func (p PaginationParams) Normalize() PaginationParams {
	return NewPaginationParams(&p.Page, &p.Limit)
}

// Offset returns the zero-based row offset for a SQL OFFSET clause. It is
// never negative.
func (p PaginationParams) Offset() int {
	return max(p.Page-1, 0) * max(p.Limit, 0)
}

// HasNext reports whether rows remain after this page, given the total
// number of matching rows.
func (p PaginationParams) HasNext(total int64) bool {
	return int64(p.Offset()+p.Limit) < total
}
