package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"featureboard/internal/apperr"
	"featureboard/internal/metrics"
	"featureboard/internal/models"
	"featureboard/internal/repository"
	"featureboard/internal/validation"
)

// Promoter moves a staged upload into permanent storage.
type Promoter interface {
	Promote(ctx context.Context, tempKey, targetName, contentType, ownerID string) (string, error)
	IsPermanentURL(url string) bool
	RemovePermanent(ctx context.Context, url string) error
}

type TicketService struct {
	tickets repository.TicketRepository
	votes   repository.VoteRepository
	admins  *AdminService
	uploads Promoter
	log     zerolog.Logger
}

func NewTicketService(
	tickets repository.TicketRepository,
	votes repository.VoteRepository,
	admins *AdminService,
	uploads Promoter,
	log zerolog.Logger,
) *TicketService {
	return &TicketService{
		tickets: tickets,
		votes:   votes,
		admins:  admins,
		uploads: uploads,
		log:     log.With().Str("component", "tickets").Logger(),
	}
}

// List returns a page of tickets. Hidden tickets are only included for admins.
func (s *TicketService) List(ctx context.Context, p models.Principal, f repository.TicketFilter) (models.TicketPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return models.TicketPage{}, apperr.Validation("invalid status %q", f.Status)
	}
	admin, err := s.admins.IsAdmin(ctx, p)
	if err != nil {
		return models.TicketPage{}, err
	}
	f.IncludeHidden = admin
	f = f.Normalize()

	items, total, err := s.tickets.List(ctx, f)
	if err != nil {
		return models.TicketPage{}, err
	}
	return models.TicketPage{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// Get returns a ticket with comments. Hidden tickets look missing to non-admins.
func (s *TicketService) Get(ctx context.Context, p models.Principal, id string) (*models.Ticket, error) {
	t, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("ticket not found")
	}
	if t.Hidden {
		admin, err := s.admins.IsAdmin(ctx, p)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, apperr.NotFound("ticket not found")
		}
	}
	return t, nil
}

type CreateTicketInput struct {
	Title        string `json:"title" validate:"notblank,max=200"`
	Description  string `json:"description" validate:"max=5000"`
	ImageURL     string `json:"imageUrl" validate:"omitempty,url"`
	TempFilename string `json:"tempFilename"`
	OriginalName string `json:"originalName" validate:"max=255"`
	OriginalType string `json:"originalType" validate:"max=100"`
}

// Create validates the input, promotes any staged image and inserts the
// ticket. A ticket never references a temporary upload: a failed promotion
// aborts the create.
func (s *TicketService) Create(ctx context.Context, p models.Principal, in CreateTicketInput) (*models.Ticket, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.TempFilename = strings.TrimSpace(in.TempFilename)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	var images []models.Image
	var promoted string
	if in.ImageURL != "" {
		if !s.uploads.IsPermanentURL(in.ImageURL) {
			return nil, apperr.Validation("imageUrl must reference a permanent image")
		}
		images = append(images, models.Image{URL: in.ImageURL})
	}
	if in.TempFilename != "" {
		url, err := s.uploads.Promote(ctx, in.TempFilename, in.OriginalName, in.OriginalType, p.ID)
		if err != nil {
			return nil, err
		}
		promoted = url
		images = append(images, models.Image{URL: url})
	}

	t := &models.Ticket{
		Title:       in.Title,
		Description: in.Description,
		Status:      models.StatusQueued,
		AuthorID:    p.ID,
		Images:      images,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		if promoted != "" {
			if rmErr := s.uploads.RemovePermanent(context.WithoutCancel(ctx), promoted); rmErr != nil {
				s.log.Error().Err(rmErr).Str("url", promoted).Msg("orphaned promoted image")
			}
		}
		return nil, err
	}
	s.log.Info().Str("ticket_id", t.ID).Str("author", p.ID).Int("images", len(t.Images)).Msg("ticket created")
	return t, nil
}

// SetStatus is admin only. Unknown statuses are rejected before any write.
func (s *TicketService) SetStatus(ctx context.Context, p models.Principal, id, status string) (*models.Ticket, error) {
	st, ok := models.ParseStatus(status)
	if !ok {
		return nil, apperr.Validation("status must be one of Queued, InProgress, Completed")
	}
	if err := s.admins.require(ctx, p); err != nil {
		return nil, err
	}
	t, err := s.tickets.SetStatus(ctx, id, st)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("ticket not found")
	}
	return t, nil
}

func (s *TicketService) SetHidden(ctx context.Context, p models.Principal, id string, hidden bool) (*models.Ticket, error) {
	if err := s.admins.require(ctx, p); err != nil {
		return nil, err
	}
	t, err := s.tickets.SetHidden(ctx, id, hidden)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("ticket not found")
	}
	return t, nil
}

// Delete is allowed for admins and for the ticket's author.
func (s *TicketService) Delete(ctx context.Context, p models.Principal, id string) error {
	t, err := s.tickets.Get(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return apperr.NotFound("ticket not found")
	}
	if t.AuthorID == "" || t.AuthorID != p.ID {
		if err := s.admins.require(ctx, p); err != nil {
			return err
		}
	}
	ok, err := s.tickets.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("ticket not found")
	}
	s.log.Info().Str("ticket_id", id).Str("by", p.ID).Msg("ticket deleted")
	return nil
}

type CommentInput struct {
	TicketID string `json:"ticketId" validate:"notblank"`
	Content  string `json:"content" validate:"notblank,max=2000"`
}

func (s *TicketService) AddComment(ctx context.Context, p models.Principal, in CommentInput) (*models.Comment, error) {
	in.TicketID = strings.TrimSpace(in.TicketID)
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, p, in.TicketID); err != nil {
		return nil, err
	}
	return s.tickets.AddComment(ctx, in.TicketID, p.ID, in.Content)
}

// Vote toggles the caller's vote and returns the new server count.
func (s *TicketService) Vote(ctx context.Context, p models.Principal, ticketID string) (models.VoteResult, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return models.VoteResult{}, apperr.Validation("ticketId is required")
	}
	if _, err := s.Get(ctx, p, ticketID); err != nil {
		return models.VoteResult{}, err
	}
	res, err := s.votes.Toggle(ctx, p.ID, ticketID)
	if err != nil {
		return models.VoteResult{}, err
	}
	metrics.VotesToggled.WithLabelValues(string(res.Action)).Inc()
	return res, nil
}

func (s *TicketService) MyVotes(ctx context.Context, p models.Principal) ([]string, error) {
	return s.votes.VotedTicketIDs(ctx, p.ID)
}

// Summary is the admin triage overview.
func (s *TicketService) Summary(ctx context.Context, p models.Principal) (models.Summary, error) {
	if err := s.admins.require(ctx, p); err != nil {
		return models.Summary{}, err
	}
	return s.tickets.Summary(ctx)
}
