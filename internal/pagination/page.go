package pagination

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page describes a 1-indexed page request.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps a page request to sane bounds. Page numbers start at 1;
// a zero or negative size falls back to the default.
func (p Page) Normalize() Page {
	if p.Number < DefaultPage {
		p.Number = DefaultPage
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageResult represents one page of a result set. An out-of-range page has
// empty Items and is not an error.
type PageResult[T any] struct {
	Items   []T   `json:"items"`
	Page    int   `json:"page"`
	Size    int   `json:"size"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}

// NewPageResult builds a PageResult, deriving HasMore from the total count.
func NewPageResult[T any](items []T, page Page, total int64) *PageResult[T] {
	return &PageResult[T]{
		Items:   items,
		Page:    page.Number,
		Size:    page.Size,
		Total:   total,
		HasMore: int64(page.Offset()+len(items)) < total,
	}
}
