package query

const (
	// DefaultPage is used when the caller omits or passes an invalid page.
	DefaultPage = 1
	// DefaultLimit is used when the caller omits or passes an invalid limit.
	DefaultLimit = 20
	// MaxLimit caps the page size a caller can request.
	MaxLimit = 100
)

// Pagination describes page-based pagination for listing queries.
// Values are clamped rather than rejected: any page or limit below 1 falls
// back to the defaults, and limits above MaxLimit are capped.
type Pagination struct {
	Page  int
	Limit int
}

// Normalized returns a copy with page and limit clamped to valid values.
func (p Pagination) Normalized() Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Pagination) Offset() int {
	n := p.Normalized()
	return (n.Page - 1) * n.Limit
}
