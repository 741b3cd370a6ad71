// Package paging slices ordered result sets into pages and derives the
// metadata returned alongside them.
package paging

const MaxLimit = 100

// Meta describes one page of a result set.
type Meta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

// Page is a slice of results plus its metadata.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Pagination Meta `json:"pagination"`
}

// Normalize clamps page to >= 1 and limit to [1, MaxLimit], substituting
// defaultLimit for a non-positive limit.
func Normalize(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Slice returns the requested page of items. The total is the length of
// items, independent of page and limit. page and limit must be normalized.
func Slice[T any](items []T, page, limit int) Page[T] {
	total := len(items)
	pages := (total + limit - 1) / limit

	skip := (page - 1) * limit
	out := []T{}
	if skip < total {
		end := skip + limit
		if end > total {
			end = total
		}
		out = items[skip:end]
	}

	return Page[T]{
		Items: out,
		Pagination: Meta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			Pages:   pages,
			HasNext: page < pages,
			HasPrev: page > 1,
		},
	}
}
