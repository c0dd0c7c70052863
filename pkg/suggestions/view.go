package suggestions

import (
	"sort"
	"strings"

	"featureboard/internal/models"
)

type SortMode string

const (
	SortTrending     SortMode = "trending"
	SortNewest       SortMode = "newest"
	SortOldest       SortMode = "oldest"
	SortAlphabetical SortMode = "alphabetical"
)

// Filter keeps tickets whose title or description contains search, ignoring
// case. An empty search keeps everything. items is not modified.
func Filter(items []models.Ticket, search string) []models.Ticket {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Ticket, 0, len(items))
	for _, t := range items {
		if needle == "" ||
			strings.Contains(strings.ToLower(t.Title), needle) ||
			strings.Contains(strings.ToLower(t.Description), needle) {
			out = append(out, t)
		}
	}
	return out
}

// Sort returns a sorted copy of items. Every mode is stable, so ties keep
// their input order. Unknown modes keep the input order.
func Sort(items []models.Ticket, mode SortMode) []models.Ticket {
	out := append([]models.Ticket(nil), items...)
	var less func(a, b models.Ticket) bool
	switch mode {
	case SortTrending:
		less = func(a, b models.Ticket) bool { return a.Upvotes > b.Upvotes }
	case SortNewest:
		less = func(a, b models.Ticket) bool { return a.CreatedAt.After(b.CreatedAt) }
	case SortOldest:
		less = func(a, b models.Ticket) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortAlphabetical:
		less = func(a, b models.Ticket) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
