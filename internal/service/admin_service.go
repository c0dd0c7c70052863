package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"featureboard/internal/apperr"
	"featureboard/internal/models"
	"featureboard/internal/repository"
	"featureboard/internal/validation"
)

type AdminService struct {
	admins repository.AdminRepository
	log    zerolog.Logger
}

func NewAdminService(admins repository.AdminRepository, log zerolog.Logger) *AdminService {
	return &AdminService{admins: admins, log: log.With().Str("component", "admins").Logger()}
}

func (s *AdminService) IsAdmin(ctx context.Context, p models.Principal) (bool, error) {
	if p.Email == "" {
		return false, nil
	}
	return s.admins.IsAdmin(ctx, p.Email)
}

func (s *AdminService) require(ctx context.Context, p models.Principal) error {
	ok, err := s.IsAdmin(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("admin access required")
	}
	return nil
}

func (s *AdminService) List(ctx context.Context, p models.Principal) ([]models.SystemAdmin, error) {
	if err := s.require(ctx, p); err != nil {
		return nil, err
	}
	return s.admins.List(ctx)
}

type AddAdminInput struct {
	Email string `json:"email" validate:"required,email,max=320"`
	Name  string `json:"name" validate:"max=100"`
}

func (s *AdminService) Add(ctx context.Context, p models.Principal, in AddAdminInput) (*models.SystemAdmin, error) {
	if err := s.require(ctx, p); err != nil {
		return nil, err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	a, err := s.admins.Add(ctx, in.Email, in.Name)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("by", p.Email).Str("admin", a.Email).Msg("admin added")
	return a, nil
}

// Remove refuses to remove the last admin.
func (s *AdminService) Remove(ctx context.Context, p models.Principal, id string) error {
	if err := s.require(ctx, p); err != nil {
		return err
	}
	if err := s.admins.Remove(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("by", p.Email).Str("admin_id", id).Msg("admin removed")
	return nil
}

// Bootstrap seeds the first admin when the table is empty.
func (s *AdminService) Bootstrap(ctx context.Context, email, name string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	n, err := s.admins.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.admins.Add(ctx, email, strings.TrimSpace(name)); err != nil {
		return err
	}
	s.log.Info().Str("admin", email).Msg("bootstrap admin created")
	return nil
}
