package pagination

// Pagination carries the skip/limit query parameters used by every
// listing endpoint.
type Pagination struct {
	Skip  int `form:"skip"`
	Limit int `form:"limit,default=100" validate:"gte=1,lte=250"` // Min 1, Max 250
}

// PageInfo is the listing envelope: items plus paging counters.
type PageInfo struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
	Limit int   `json:"limit"`
}

func (p Pagination) Normalize() Pagination {
	out := p
	if out.Limit <= 0 {
		out.Limit = 100
	}
	if out.Limit > 250 {
		out.Limit = 250
	}
	if out.Skip < 0 {
		out.Skip = 0
	}
	return out
}

func BuildPageInfo(total int64, page Pagination) PageInfo {
	page = page.Normalize()
	pages := int((total + int64(page.Limit) - 1) / int64(page.Limit))
	current := (page.Skip / page.Limit) + 1
	return PageInfo{
		Total: total,
		Page:  current,
		Pages: pages,
		Limit: page.Limit,
	}
}
