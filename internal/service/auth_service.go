package service

import (
	"context"
	"strings"
	"time"

	"featureboard/internal/apperr"
	"featureboard/internal/models"
	"featureboard/internal/repository"
	"featureboard/internal/utils"
	"featureboard/internal/validation"
)

type AuthService struct {
	users         repository.UserRepository
	sessionSecret string
	sessionTTL    time.Duration
	hash          func(string) (string, error)
}

func NewAuthService(users repository.UserRepository, sessionSecret string, sessionTTL time.Duration) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{users: users, sessionSecret: sessionSecret, sessionTTL: sessionTTL, hash: utils.HashPassword}
}

// WithHasher swaps the password hasher; tests use a low bcrypt cost.
func (a *AuthService) WithHasher(h func(string) (string, error)) *AuthService {
	a.hash = h
	return a
}

func (a *AuthService) TTL() time.Duration { return a.sessionTTL }

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Name     string `json:"name" validate:"notblank,max=100"`
	Password string `json:"password" validate:"min=8,max=72"`
}

func (a *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	hash, err := a.hash(in.Password)
	if err != nil {
		return nil, err
	}
	return a.users.Create(ctx, in.Email, in.Name, hash)
}

func (a *AuthService) Login(ctx context.Context, email, password string) (token string, user *models.User, err error) {
	u, hash, err := a.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil, err
	}
	if u == nil || !utils.CheckPassword(hash, password) {
		return "", nil, apperr.Auth("invalid credentials")
	}
	tok, err := utils.SignJWT(a.sessionSecret, u.ID, u.Email, a.sessionTTL)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

// Authenticate resolves a session token to a principal.
func (a *AuthService) Authenticate(token string) (models.Principal, error) {
	c, err := utils.ParseJWT(a.sessionSecret, token)
	if err != nil {
		return models.Principal{}, apperr.Auth("invalid session")
	}
	return models.Principal{ID: c.UserID, Email: c.Email}, nil
}

type ProfileInput struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	DisplayName string `json:"displayName" validate:"max=100"`
}

func (a *AuthService) UpdateProfile(ctx context.Context, p models.Principal, in ProfileInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	u, err := a.users.UpdateProfile(ctx, p.ID, in.Name, in.DisplayName)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

func (a *AuthService) Me(ctx context.Context, p models.Principal) (*models.User, error) {
	u, err := a.users.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}
