package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"featureboard/internal/models"
	"featureboard/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketRepo struct{ db *pgxpool.Pool }

func NewTicketRepo(db *pgxpool.Pool) *TicketRepo { return &TicketRepo{db: db} }

var _ repository.TicketRepository = (*TicketRepo)(nil)

const ticketColumns = `
	t.id, t.title, t.description, t.status, t.hidden,
	COALESCE(t.author_id::text, ''),
	(SELECT COUNT(*) FROM votes v WHERE v.ticket_id = t.id) AS upvotes,
	t.created_at, t.updated_at`

func scanTicket(row pgx.Row, t *models.Ticket) error {
	return row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Hidden,
		&t.AuthorID, &t.Upvotes, &t.CreatedAt, &t.UpdatedAt)
}

// -----------------------------------------------------------------------------
// Listing with filters + pagination + sort
// -----------------------------------------------------------------------------

// List returns one page of tickets and the total for the same filter set.
// Images are attached; comments are only loaded by Get.
func (r *TicketRepo) List(ctx context.Context, f repository.TicketFilter) ([]models.Ticket, int, error) {
	f = f.Normalize()
	whereSQL, args := buildTicketWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`
		SELECT %s
		FROM tickets t
		%s
		ORDER BY %s %s, t.id
		LIMIT $%d OFFSET $%d
	`, ticketColumns, whereSQL, sortColumn(f.SortBy), f.SortOrder, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset())

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Ticket{}
	for rows.Next() {
		var t models.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachImages(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// -----------------------------------------------------------------------------
// Single ticket + create + mutations + comments
// -----------------------------------------------------------------------------
func (r *TicketRepo) Get(ctx context.Context, id string) (*models.Ticket, error) {
	if !validID(id) {
		return nil, nil
	}
	var t models.Ticket
	err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.id = $1`, id), &t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	one := []models.Ticket{t}
	if err := r.attachImages(ctx, one); err != nil {
		return nil, err
	}
	t = one[0]

	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.ticket_id, c.content,
			COALESCE(u.display_name, ''), COALESCE(u.name, ''), COALESCE(u.email, ''),
			c.created_at
		FROM comments c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.ticket_id = $1
		ORDER BY c.created_at ASC, c.id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	t.Comments = []models.Comment{}
	for rows.Next() {
		var c models.Comment
		var display, name, email string
		if err := rows.Scan(&c.ID, &c.TicketID, &c.Content, &display, &name, &email, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Author = models.AuthorLabel(display, name, email)
		t.Comments = append(t.Comments, c)
	}
	return &t, rows.Err()
}

// Create inserts the ticket and its images in one transaction.
func (r *TicketRepo) Create(ctx context.Context, t *models.Ticket) error {
	if t.Status == "" {
		t.Status = models.StatusQueued
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO tickets (title, description, status, hidden, author_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`, t.Title, t.Description, t.Status, t.Hidden, nullIfEmpty(t.AuthorID),
		).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return err
		}
		for i := range t.Images {
			img := &t.Images[i]
			img.Position = i
			if err := tx.QueryRow(ctx, `
				INSERT INTO ticket_images (ticket_id, url, position)
				VALUES ($1, $2, $3)
				RETURNING id
			`, t.ID, img.URL, img.Position).Scan(&img.ID); err != nil {
				return err
			}
		}
		if t.Images == nil {
			t.Images = []models.Image{}
		}
		t.Comments = []models.Comment{}
		return nil
	})
}

func (r *TicketRepo) SetStatus(ctx context.Context, id string, s models.Status) (*models.Ticket, error) {
	return r.update(ctx, `UPDATE tickets SET status = $1, updated_at = now() WHERE id = $2`, s, id)
}

func (r *TicketRepo) SetHidden(ctx context.Context, id string, hidden bool) (*models.Ticket, error) {
	return r.update(ctx, `UPDATE tickets SET hidden = $1, updated_at = now() WHERE id = $2`, hidden, id)
}

func (r *TicketRepo) update(ctx context.Context, sql string, v any, id string) (*models.Ticket, error) {
	if !validID(id) {
		return nil, nil
	}
	ct, err := r.db.Exec(ctx, sql, v, id)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, nil
	}
	return r.Get(ctx, id)
}

// Delete removes the ticket; images, comments and votes cascade.
func (r *TicketRepo) Delete(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	ct, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *TicketRepo) AddComment(ctx context.Context, ticketID, userID, content string) (*models.Comment, error) {
	var c models.Comment
	var display, name, email string
	err := r.db.QueryRow(ctx, `
		WITH c AS (
			INSERT INTO comments (ticket_id, user_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, ticket_id, user_id, content, created_at
		)
		SELECT c.id, c.ticket_id, c.content,
			COALESCE(u.display_name, ''), COALESCE(u.name, ''), COALESCE(u.email, ''),
			c.created_at
		FROM c LEFT JOIN users u ON u.id = c.user_id
	`, ticketID, nullIfEmpty(userID), content).Scan(&c.ID, &c.TicketID, &c.Content, &display, &name, &email, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Author = models.AuthorLabel(display, name, email)
	return &c, nil
}

// -----------------------------------------------------------------------------
// Reporting
// -----------------------------------------------------------------------------

// Summary counts tickets per status plus the hidden total.
func (r *TicketRepo) Summary(ctx context.Context) (models.Summary, error) {
	s := models.Summary{ByStatus: map[models.Status]int{}}
	for _, st := range models.Statuses {
		s.ByStatus[st] = 0
	}
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*), COUNT(*) FILTER (WHERE hidden) FROM tickets GROUP BY status`)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var st models.Status
		var n, hidden int
		if err := rows.Scan(&st, &n, &hidden); err != nil {
			return s, err
		}
		s.ByStatus[st] = n
		s.Total += n
		s.Hidden += hidden
	}
	return s, rows.Err()
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (r *TicketRepo) attachImages(ctx context.Context, ts []models.Ticket) error {
	if len(ts) == 0 {
		return nil
	}
	ids := make([]string, len(ts))
	idx := make(map[string]int, len(ts))
	for i := range ts {
		ids[i] = ts[i].ID
		idx[ts[i].ID] = i
		ts[i].Images = []models.Image{}
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, ticket_id, url, position
		FROM ticket_images
		WHERE ticket_id = ANY($1::uuid[])
		ORDER BY ticket_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var img models.Image
		var ticketID string
		if err := rows.Scan(&img.ID, &ticketID, &img.URL, &img.Position); err != nil {
			return err
		}
		if i, ok := idx[ticketID]; ok {
			ts[i].Images = append(ts[i].Images, img)
		}
	}
	return rows.Err()
}

// buildTicketWhere composes WHERE clause and args for the filter set.
func buildTicketWhere(f repository.TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	// free-text search (ILIKE)
	if s := f.Search; s != "" {
		p := "%" + s + "%"
		args = append(args, p, p)
		clauses = append(clauses, "(t.title ILIKE $"+itoa(len(args)-1)+" OR t.description ILIKE $"+itoa(len(args))+")")
	}

	// exact filters
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, "t.status = $"+itoa(len(args)))
	}
	if f.AuthorID != "" {
		args = append(args, f.AuthorID)
		clauses = append(clauses, "t.author_id::text = $"+itoa(len(args)))
	}

	switch {
	case !f.IncludeHidden:
		clauses = append(clauses, "t.hidden = false")
	case f.Hidden != nil:
		args = append(args, *f.Hidden)
		clauses = append(clauses, "t.hidden = $"+itoa(len(args)))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func sortColumn(sortBy string) string {
	switch sortBy {
	case "updatedAt":
		return "t.updated_at"
	case "upvotes":
		return "upvotes"
	case "title":
		return "lower(t.title)"
	default:
		return "t.created_at"
	}
}

// validID keeps malformed path ids from reaching uuid columns as SQL errors.
func validID(id string) bool { return uuid.Validate(id) == nil }

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// small helper to avoid fmt for performance-sensitive path.
func itoa(i int) string { return strconv.Itoa(i) }
