package postgres

import (
	"context"
	"errors"
	"strings"

	"featureboard/internal/apperr"
	"featureboard/internal/models"
	"featureboard/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct{ db *pgxpool.Pool }

func NewUserRepo(db *pgxpool.Pool) repository.UserRepository { return &UserRepo{db: db} }

const userColumns = `id, email, name, display_name, created_at, updated_at`

func scanUser(row pgx.Row, u *models.User, extra ...any) error {
	dst := append([]any{&u.ID, &u.Email, &u.Name, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt}, extra...)
	return row.Scan(dst...)
}

// Create user (stores bcrypt hash in password_h)
func (r *UserRepo) Create(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	var u models.User
	err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (email, name, password_h)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		strings.ToLower(email), name, passwordHash), &u)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	var u models.User
	var ph string
	err := scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+`, password_h
		FROM users WHERE email = $1`, strings.ToLower(email)), &u, &ph)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return &u, ph, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, nil
	}
	var u models.User
	err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), &u)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id, name, displayName string) (*models.User, error) {
	if !validID(id) {
		return nil, nil
	}
	var u models.User
	err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET name = $1, display_name = $2, updated_at = now()
		WHERE id = $3
		RETURNING `+userColumns, name, displayName, id), &u)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
