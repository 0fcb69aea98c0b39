package pyright

// Pagination defaults shared by every list-shaped tool.
const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// pageParams are the pagination arguments accepted by list-shaped tools.
type pageParams struct {
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

// page is the envelope wrapping every paginated tool result. Each item also
// carries its own absolute offset so a caller can resume mid-list.
type page struct {
	Items      []map[string]any `json:"items"`
	TotalItems int              `json:"totalItems"`
	Offset     int              `json:"offset"`
	Limit      int              `json:"limit"`
	HasMore    bool             `json:"hasMore"`
	NextOffset *int             `json:"nextOffset,omitempty"`
}

// paginate slices items down to one page and stamps each item with its
// absolute offset. Out-of-range offsets produce an empty page rather than
// an error.
func paginate(items []map[string]any, p pageParams) page {
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	total := len(items)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	window := make([]map[string]any, 0, end-start)
	for i := start; i < end; i++ {
		item := items[i]
		item["offset"] = i
		window = append(window, item)
	}

	out := page{
		Items:      window,
		TotalItems: total,
		Offset:     offset,
		Limit:      limit,
		HasMore:    end < total,
	}
	if out.HasMore {
		next := end
		out.NextOffset = &next
	}
	return out
}
