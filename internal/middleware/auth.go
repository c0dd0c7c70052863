package middleware

import (
	"net/http"
	"strings"

	"featureboard/internal/models"
	"featureboard/internal/utils"

	"github.com/rs/zerolog"
)

// SessionCookie carries the session JWT.
const SessionCookie = "session"

// Authenticator resolves a session token to a principal.
type Authenticator interface {
	Authenticate(token string) (models.Principal, error)
}

// WithAuth attaches the principal to the request context when a valid
// session is present. Requests without one pass through unauthenticated.
func WithAuth(log zerolog.Logger, auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Read JWT from cookie "session" or Authorization: Bearer
			var tok string
			fromCookie := false
			if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
				tok, fromCookie = c.Value, true
			} else if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tok = strings.TrimPrefix(h, "Bearer ")
			}

			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := auth.Authenticate(tok)
			if err != nil {
				log.Debug().Err(err).Msg("rejecting session token")
				if fromCookie {
					// clear broken/expired cookie so it stops being sent
					http.SetCookie(w, &http.Cookie{
						Name:     SessionCookie,
						Value:    "",
						Path:     "/",
						HttpOnly: true,
						MaxAge:   -1,
					})
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithPrincipal(r.Context(), p)))
		})
	}
}
