package middleware

import (
	"context"
	"net/http"

	"featureboard/internal/models"
	"featureboard/internal/utils"

	"github.com/go-chi/chi/v5"
)

// RequireAuth blocks when no principal is present in context (set by WithAuth).
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := utils.PrincipalFrom(r.Context()); !ok {
			utils.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminChecker reports whether a principal is a system admin.
type AdminChecker interface {
	IsAdmin(ctx context.Context, p models.Principal) (bool, error)
}

// RequireAdmin allows the request only for system admins. It implies RequireAuth.
func RequireAdmin(admins AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := utils.PrincipalFrom(r.Context())
			if !ok {
				utils.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			isAdmin, err := admins.IsAdmin(r.Context(), p)
			if err != nil {
				utils.Error(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !isAdmin {
				utils.Error(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelf allows the request only when {id} is the caller's own user id.
func RequireSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := utils.PrincipalFrom(r.Context())
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if chi.URLParam(r, "id") != p.ID {
			utils.Error(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
