package repository

import (
	"context"

	"featureboard/internal/models"
)

// Get-style methods return (nil, nil) when the row does not exist.

type TicketRepository interface {
	List(ctx context.Context, f TicketFilter) ([]models.Ticket, int, error)
	Get(ctx context.Context, id string) (*models.Ticket, error)
	Create(ctx context.Context, t *models.Ticket) error
	SetStatus(ctx context.Context, id string, s models.Status) (*models.Ticket, error)
	SetHidden(ctx context.Context, id string, hidden bool) (*models.Ticket, error)
	Delete(ctx context.Context, id string) (bool, error)
	AddComment(ctx context.Context, ticketID, userID, content string) (*models.Comment, error)
	Summary(ctx context.Context) (models.Summary, error)
}

type VoteRepository interface {
	// Toggle removes the (user, ticket) vote if present and adds it otherwise.
	Toggle(ctx context.Context, userID, ticketID string) (models.VoteResult, error)
	VotedTicketIDs(ctx context.Context, userID string) ([]string, error)
}

type UserRepository interface {
	Create(ctx context.Context, email, name, passwordHash string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, string /*passwordHash*/, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id, name, displayName string) (*models.User, error)
}

type AdminRepository interface {
	List(ctx context.Context) ([]models.SystemAdmin, error)
	// Add fails with a conflict error when the email is already an admin.
	Add(ctx context.Context, email, name string) (*models.SystemAdmin, error)
	// Remove fails with a conflict error when id is the last admin.
	Remove(ctx context.Context, id string) error
	IsAdmin(ctx context.Context, email string) (bool, error)
	Count(ctx context.Context) (int, error)
}
