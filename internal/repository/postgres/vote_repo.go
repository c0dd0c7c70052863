package postgres

import (
	"context"
	"errors"

	"featureboard/internal/apperr"
	"featureboard/internal/models"
	"featureboard/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VoteRepo struct{ db *pgxpool.Pool }

func NewVoteRepo(db *pgxpool.Pool) repository.VoteRepository { return &VoteRepo{db: db} }

// Toggle deletes or inserts the vote row and reads the new count in the
// same transaction.
func (r *VoteRepo) Toggle(ctx context.Context, userID, ticketID string) (models.VoteResult, error) {
	if !validID(ticketID) {
		return models.VoteResult{}, apperr.NotFound("ticket not found")
	}
	var res models.VoteResult
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		// Lock the ticket row so concurrent toggles serialise per ticket.
		var id string
		if err := tx.QueryRow(ctx, `SELECT id FROM tickets WHERE id = $1 FOR UPDATE`, ticketID).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("ticket not found")
			}
			return err
		}

		ct, err := tx.Exec(ctx, `DELETE FROM votes WHERE user_id = $1 AND ticket_id = $2`, userID, ticketID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() > 0 {
			res.Action, res.Delta = models.VoteRemoved, -1
		} else {
			if _, err := tx.Exec(ctx, `INSERT INTO votes (user_id, ticket_id) VALUES ($1, $2)`, userID, ticketID); err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "23503" {
					return apperr.Auth("unknown user")
				}
				return err
			}
			res.Action, res.Delta = models.VoteAdded, 1
		}
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM votes WHERE ticket_id = $1`, ticketID).Scan(&res.Upvotes)
	})
	return res, err
}

func (r *VoteRepo) VotedTicketIDs(ctx context.Context, userID string) ([]string, error) {
	if !validID(userID) {
		return []string{}, nil
	}
	rows, err := r.db.Query(ctx, `SELECT ticket_id::text FROM votes WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
