package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusQueued     Status = "Queued"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
)

// Statuses lists every legal ticket status in workflow order.
var Statuses = []Status{StatusQueued, StatusInProgress, StatusCompleted}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus accepts only the exact status names.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.TrimSpace(s))
	return st, st.Valid()
}

type Ticket struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Hidden      bool      `json:"hidden"`
	Upvotes     int       `json:"upvotes"`
	AuthorID    string    `json:"authorId,omitempty"`
	Images      []Image   `json:"images"`
	Comments    []Comment `json:"comments"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can keep snapshots that later
// mutations cannot reach.
func (t Ticket) Clone() Ticket {
	c := t
	if t.Images != nil {
		c.Images = append([]Image(nil), t.Images...)
	}
	if t.Comments != nil {
		c.Comments = append([]Comment(nil), t.Comments...)
	}
	return c
}

type Image struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

type Comment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthorLabel picks the label shown next to a comment.
func AuthorLabel(displayName, name, email string) string {
	for _, s := range []string{displayName, name, email} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "Anonymous"
}

type VoteAction string

const (
	VoteAdded   VoteAction = "added"
	VoteRemoved VoteAction = "removed"
)

// VoteResult is the server's answer to a vote toggle. Upvotes is the
// authoritative count after the toggle.
type VoteResult struct {
	Action  VoteAction `json:"action"`
	Delta   int        `json:"delta"`
	Upvotes int        `json:"upvotes"`
}

// Summary backs the triage report.
type Summary struct {
	ByStatus map[Status]int `json:"byStatus"`
	Hidden   int            `json:"hidden"`
	Total    int            `json:"total"`
}

// TicketPage is one page of a ticket listing.
type TicketPage struct {
	Items []Ticket `json:"items"`
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}
