package repository

import (
	"strings"

	"featureboard/internal/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// TicketFilter drives list queries.
type TicketFilter struct {
	Status    models.Status
	Search    string
	AuthorID  string
	SortBy    string // createdAt|updatedAt|upvotes|title
	SortOrder string // asc|desc
	Page      int
	Limit     int

	// Hidden narrows to hidden or visible tickets. It is only honoured when
	// IncludeHidden is set; otherwise hidden tickets are always excluded.
	Hidden        *bool
	IncludeHidden bool
}

// Normalize fills defaults and clamps paging.
func (f TicketFilter) Normalize() TicketFilter {
	f.Search = strings.TrimSpace(f.Search)
	f.AuthorID = strings.TrimSpace(f.AuthorID)
	switch f.SortBy {
	case "createdAt", "updatedAt", "upvotes", "title":
	default:
		f.SortBy = "createdAt"
	}
	switch strings.ToLower(f.SortOrder) {
	case "asc":
		f.SortOrder = "asc"
	case "desc":
		f.SortOrder = "desc"
	default:
		if f.SortBy == "title" {
			f.SortOrder = "asc"
		} else {
			f.SortOrder = "desc"
		}
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

func (f TicketFilter) Offset() int { return (f.Page - 1) * f.Limit }
