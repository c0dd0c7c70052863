// Package memory implements the repository interfaces in process memory.
// It backs handler and service tests and mirrors the PostgreSQL semantics:
// upvotes are derived from vote rows, deletes cascade, emails are unique.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"featureboard/internal/apperr"
	"featureboard/internal/models"
	"featureboard/internal/repository"
)

type user struct {
	models.User
	hash string
}

type vote struct{ userID, ticketID string }

// DB holds every table.
type DB struct {
	mu       sync.Mutex
	now      func() time.Time
	seq      int
	tickets  map[string]*models.Ticket
	order    map[string]int
	comments map[string][]models.Comment
	commentU map[string]string // comment id -> user id
	votes    map[vote]time.Time
	users    map[string]*user
	admins   map[string]models.SystemAdmin
}

func New() *DB {
	return &DB{
		now:      time.Now,
		tickets:  map[string]*models.Ticket{},
		order:    map[string]int{},
		comments: map[string][]models.Comment{},
		commentU: map[string]string{},
		votes:    map[vote]time.Time{},
		users:    map[string]*user{},
		admins:   map[string]models.SystemAdmin{},
	}
}

// WithClock replaces the timestamp source.
func (db *DB) WithClock(now func() time.Time) *DB {
	db.now = now
	return db
}

func (db *DB) Tickets() repository.TicketRepository { return ticketRepo{db} }
func (db *DB) Votes() repository.VoteRepository     { return voteRepo{db} }
func (db *DB) Users() repository.UserRepository     { return userRepo{db} }
func (db *DB) Admins() repository.AdminRepository   { return adminRepo{db} }

// tick returns a strictly increasing timestamp so orderings are deterministic.
func (db *DB) tick() time.Time {
	db.seq++
	return db.now().Add(time.Duration(db.seq) * time.Microsecond)
}

// -----------------------------------------------------------------------------
// Tickets
// -----------------------------------------------------------------------------

type ticketRepo struct{ db *DB }

func (r ticketRepo) upvotes(id string) int {
	n := 0
	for v := range r.db.votes {
		if v.ticketID == id {
			n++
		}
	}
	return n
}

// snapshot returns a detached copy with derived fields filled.
func (r ticketRepo) snapshot(t *models.Ticket, withComments bool) models.Ticket {
	c := t.Clone()
	c.Upvotes = r.upvotes(t.ID)
	if c.Images == nil {
		c.Images = []models.Image{}
	}
	c.Comments = nil
	if withComments {
		c.Comments = []models.Comment{}
		for _, cm := range r.db.comments[t.ID] {
			cm.Author = r.db.authorLabel(r.db.commentU[cm.ID])
			c.Comments = append(c.Comments, cm)
		}
	}
	return c
}

func (db *DB) authorLabel(userID string) string {
	if u, ok := db.users[userID]; ok {
		return models.AuthorLabel(u.DisplayName, u.Name, u.Email)
	}
	return models.AuthorLabel("", "", "")
}

func (r ticketRepo) List(_ context.Context, f repository.TicketFilter) ([]models.Ticket, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f = f.Normalize()
	needle := strings.ToLower(f.Search)

	var all []models.Ticket
	for _, t := range r.db.tickets {
		switch {
		case f.Status != "" && t.Status != f.Status:
			continue
		case f.AuthorID != "" && t.AuthorID != f.AuthorID:
			continue
		case !f.IncludeHidden && t.Hidden:
			continue
		case f.IncludeHidden && f.Hidden != nil && t.Hidden != *f.Hidden:
			continue
		case needle != "" && !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle):
			continue
		}
		all = append(all, r.snapshot(t, false))
	}

	less := func(a, b models.Ticket) int {
		switch f.SortBy {
		case "updatedAt":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case "upvotes":
			return a.Upvotes - b.Upvotes
		case "title":
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		c := less(all[i], all[j])
		if c == 0 {
			return r.db.order[all[i].ID] < r.db.order[all[j].ID]
		}
		if f.SortOrder == "asc" {
			return c < 0
		}
		return c > 0
	})

	total := len(all)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	page := append([]models.Ticket{}, all[start:end]...)
	return page, total, nil
}

func (r ticketRepo) Get(_ context.Context, id string) (*models.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tickets[id]
	if !ok {
		return nil, nil
	}
	s := r.snapshot(t, true)
	return &s, nil
}

func (r ticketRepo) Create(_ context.Context, t *models.Ticket) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t.Status == "" {
		t.Status = models.StatusQueued
	}
	t.ID = uuid.NewString()
	t.CreatedAt = r.db.tick()
	t.UpdatedAt = t.CreatedAt
	for i := range t.Images {
		t.Images[i].ID = uuid.NewString()
		t.Images[i].Position = i
	}
	if t.Images == nil {
		t.Images = []models.Image{}
	}
	t.Comments = []models.Comment{}
	stored := t.Clone()
	r.db.tickets[t.ID] = &stored
	r.db.order[t.ID] = len(r.db.order)
	return nil
}

func (r ticketRepo) mutate(id string, fn func(*models.Ticket)) (*models.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tickets[id]
	if !ok {
		return nil, nil
	}
	fn(t)
	t.UpdatedAt = r.db.tick()
	s := r.snapshot(t, true)
	return &s, nil
}

func (r ticketRepo) SetStatus(_ context.Context, id string, s models.Status) (*models.Ticket, error) {
	return r.mutate(id, func(t *models.Ticket) { t.Status = s })
}

func (r ticketRepo) SetHidden(_ context.Context, id string, hidden bool) (*models.Ticket, error) {
	return r.mutate(id, func(t *models.Ticket) { t.Hidden = hidden })
}

func (r ticketRepo) Delete(_ context.Context, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tickets[id]; !ok {
		return false, nil
	}
	delete(r.db.tickets, id)
	for _, c := range r.db.comments[id] {
		delete(r.db.commentU, c.ID)
	}
	delete(r.db.comments, id)
	for v := range r.db.votes {
		if v.ticketID == id {
			delete(r.db.votes, v)
		}
	}
	return true, nil
}

func (r ticketRepo) AddComment(_ context.Context, ticketID, userID, content string) (*models.Comment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tickets[ticketID]; !ok {
		return nil, apperr.NotFound("ticket not found")
	}
	c := models.Comment{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Content:   content,
		CreatedAt: r.db.tick(),
	}
	r.db.comments[ticketID] = append(r.db.comments[ticketID], c)
	r.db.commentU[c.ID] = userID
	c.Author = r.db.authorLabel(userID)
	return &c, nil
}

func (r ticketRepo) Summary(_ context.Context) (models.Summary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s := models.Summary{ByStatus: map[models.Status]int{}}
	for _, st := range models.Statuses {
		s.ByStatus[st] = 0
	}
	for _, t := range r.db.tickets {
		s.ByStatus[t.Status]++
		s.Total++
		if t.Hidden {
			s.Hidden++
		}
	}
	return s, nil
}

// -----------------------------------------------------------------------------
// Votes
// -----------------------------------------------------------------------------

type voteRepo struct{ db *DB }

func (r voteRepo) Toggle(_ context.Context, userID, ticketID string) (models.VoteResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tickets[ticketID]; !ok {
		return models.VoteResult{}, apperr.NotFound("ticket not found")
	}
	k := vote{userID: userID, ticketID: ticketID}
	var res models.VoteResult
	if _, ok := r.db.votes[k]; ok {
		delete(r.db.votes, k)
		res.Action, res.Delta = models.VoteRemoved, -1
	} else {
		r.db.votes[k] = r.db.tick()
		res.Action, res.Delta = models.VoteAdded, 1
	}
	res.Upvotes = ticketRepo(r).upvotes(ticketID)
	return res, nil
}

func (r voteRepo) VotedTicketIDs(_ context.Context, userID string) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	type row struct {
		id string
		at time.Time
	}
	var rows []row
	for v, at := range r.db.votes {
		if v.userID == userID {
			rows = append(rows, row{v.ticketID, at})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })
	out := make([]string, 0, len(rows))
	for _, rw := range rows {
		out = append(out, rw.id)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

type userRepo struct{ db *DB }

func (r userRepo) Create(_ context.Context, email, name, passwordHash string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range r.db.users {
		if u.Email == email {
			return nil, apperr.Conflict("email already registered")
		}
	}
	now := r.db.tick()
	u := &user{User: models.User{ID: uuid.NewString(), Email: email, Name: name, CreatedAt: now, UpdatedAt: now}, hash: passwordHash}
	r.db.users[u.ID] = u
	out := u.User
	return &out, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*models.User, string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range r.db.users {
		if u.Email == email {
			out := u.User
			return &out, u.hash, nil
		}
	}
	return nil, "", nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, nil
	}
	out := u.User
	return &out, nil
}

func (r userRepo) UpdateProfile(_ context.Context, id, name, displayName string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, nil
	}
	u.Name, u.DisplayName, u.UpdatedAt = name, displayName, r.db.tick()
	out := u.User
	return &out, nil
}

// -----------------------------------------------------------------------------
// Admins
// -----------------------------------------------------------------------------

type adminRepo struct{ db *DB }

func (r adminRepo) List(_ context.Context) ([]models.SystemAdmin, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.SystemAdmin, 0, len(r.db.admins))
	for _, a := range r.db.admins {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r adminRepo) Add(_ context.Context, email, name string) (*models.SystemAdmin, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	email = strings.ToLower(email)
	for _, a := range r.db.admins {
		if a.Email == email {
			return nil, apperr.Conflict("%s is already an admin", email)
		}
	}
	a := models.SystemAdmin{ID: uuid.NewString(), Email: email, Name: name, CreatedAt: r.db.tick()}
	r.db.admins[a.ID] = a
	return &a, nil
}

func (r adminRepo) Remove(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.admins[id]; !ok {
		return apperr.NotFound("admin not found")
	}
	if len(r.db.admins) <= 1 {
		return apperr.Conflict("cannot remove the last admin")
	}
	delete(r.db.admins, id)
	return nil
}

func (r adminRepo) IsAdmin(_ context.Context, email string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	email = strings.ToLower(email)
	for _, a := range r.db.admins {
		if a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r adminRepo) Count(_ context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.admins), nil
}
