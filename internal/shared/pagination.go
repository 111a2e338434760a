package shared

// Pagination is the page metadata returned alongside a listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ClampPage normalises caller paging: pages start at 1, a missing size becomes def and
// sizes above max are capped. max <= 0 leaves the size uncapped.
func ClampPage(page, perPage, def, max int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = def
	}
	if max > 0 && perPage > max {
		perPage = max
	}
	return page, perPage
}

// NewPagination describes page of a listing holding total rows.
func NewPagination(page, perPage, total int) Pagination {
	page, perPage = ClampPage(page, perPage, 20, 0)
	pages := 0
	if total > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: pages}
}

// Offset is the number of rows before the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}
