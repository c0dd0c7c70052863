package postgres

import (
	"context"
	"strings"

	"featureboard/internal/apperr"
	"featureboard/internal/models"
	"featureboard/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepo struct{ db *pgxpool.Pool }

func NewAdminRepo(db *pgxpool.Pool) repository.AdminRepository { return &AdminRepo{db: db} }

func (r *AdminRepo) List(ctx context.Context) ([]models.SystemAdmin, error) {
	rows, err := r.db.Query(ctx, `SELECT id, email, name, created_at FROM admins ORDER BY created_at, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.SystemAdmin{}
	for rows.Next() {
		var a models.SystemAdmin
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AdminRepo) Add(ctx context.Context, email, name string) (*models.SystemAdmin, error) {
	var a models.SystemAdmin
	err := r.db.QueryRow(ctx, `
		INSERT INTO admins (email, name)
		VALUES ($1, $2)
		RETURNING id, email, name, created_at
	`, strings.ToLower(email), name).Scan(&a.ID, &a.Email, &a.Name, &a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("%s is already an admin", email)
		}
		return nil, err
	}
	return &a, nil
}

// Remove locks the admin table so two concurrent removals cannot both see
// two admins and leave none.
func (r *AdminRepo) Remove(ctx context.Context, id string) error {
	if !validID(id) {
		return apperr.NotFound("admin not found")
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE admins IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return err
		}
		var n int
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*), COALESCE(bool_or(id = $1), false) FROM admins
		`, id).Scan(&n, &exists); err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("admin not found")
		}
		if n <= 1 {
			return apperr.Conflict("cannot remove the last admin")
		}
		_, err := tx.Exec(ctx, `DELETE FROM admins WHERE id = $1`, id)
		return err
	})
}

func (r *AdminRepo) IsAdmin(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM admins WHERE email = $1)`, strings.ToLower(email)).Scan(&ok)
	return ok, err
}

func (r *AdminRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n)
	return n, err
}
