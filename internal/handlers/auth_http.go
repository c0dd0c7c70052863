package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"featureboard/internal/apperr"
	"featureboard/internal/middleware"
	"featureboard/internal/models"
	"featureboard/internal/service"
	"featureboard/internal/utils"
)

type AuthHTTP struct {
	svc    *service.AuthService
	admins *service.AdminService
	secure bool
	log    zerolog.Logger
}

// NewAuthHTTP builds the auth handlers; secure marks the session cookie
// Secure (set outside dev, behind HTTPS).
func NewAuthHTTP(s *service.AuthService, admins *service.AdminService, secure bool, log zerolog.Logger) *AuthHTTP {
	return &AuthHTTP{svc: s, admins: admins, secure: secure, log: log}
}

type meDTO struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	IsAdmin     bool      `json:"isAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h *AuthHTTP) profile(r *http.Request, u *models.User) (meDTO, error) {
	isAdmin, err := h.admins.IsAdmin(r.Context(), models.Principal{ID: u.ID, Email: u.Email})
	if err != nil {
		return meDTO{}, err
	}
	return meDTO{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		DisplayName: u.DisplayName,
		IsAdmin:     isAdmin,
		CreatedAt:   u.CreatedAt,
	}, nil
}

func (h *AuthHTTP) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.RegisterInput
		if err := utils.DecodeJSON(r, &in); err != nil {
			invalidJSON(w)
			return
		}
		u, err := h.svc.Register(r.Context(), in)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusCreated, u)
	}
}

func (h *AuthHTTP) Login() http.HandlerFunc {
	type inDTO struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := utils.DecodeJSON(r, &in); err != nil {
			invalidJSON(w)
			return
		}

		token, u, err := h.svc.Login(r.Context(), in.Email, in.Password)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		me, err := h.profile(r, u)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}

		// Issue httpOnly session cookie
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   h.secure,
			Expires:  time.Now().Add(h.svc.TTL()),
		})

		// Non-browser clients use the token as a Bearer credential.
		utils.JSON(w, http.StatusOK, map[string]any{"user": me, "token": token})
	}
}

func (h *AuthHTTP) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   h.secure,
			MaxAge:   -1,              // expire immediately
			Expires:  time.Unix(0, 0), // for older browsers
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *AuthHTTP) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := utils.PrincipalFrom(r.Context())
		if !ok {
			fail(w, r, h.log, apperr.Auth("not authenticated"))
			return
		}
		u, err := h.svc.Me(r.Context(), p)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		me, err := h.profile(r, u)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, me)
	}
}
