package shared

// Pagination defaults and bounds shared by list endpoints
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is an offset based page request, page starts at 1
type Pagination struct {
	Page     int
	PageSize int
}

// NewPagination clamps page and pageSize into valid bounds
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// Offset returns the number of rows to skip
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// NewPaginated creates a paginated result. HasMore is page*pageSize < total,
// so a page past the end reports no more rows.
func NewPaginated[T any](items []T, total int64, p Pagination) *Paginated[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if p.PageSize > 0 {
		totalPages = int(total) / p.PageSize
		if int(total)%p.PageSize > 0 {
			totalPages++
		}
	}
	return &Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: totalPages,
		HasMore:    int64(p.Page)*int64(p.PageSize) < total,
	}
}
