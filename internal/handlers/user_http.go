package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"featureboard/internal/service"
	"featureboard/internal/utils"
)

type UserHTTP struct {
	auth *service.AuthService
	log  zerolog.Logger
}

func NewUserHTTP(auth *service.AuthService, log zerolog.Logger) *UserHTTP {
	return &UserHTTP{auth: auth, log: log}
}

// PATCH /api/users/{id}  {name, displayName}
// Guarded by RequireSelf; the display name feeds comment author labels.
func (h *UserHTTP) UpdateProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.ProfileInput
		if err := utils.DecodeJSON(r, &in); err != nil {
			invalidJSON(w)
			return
		}
		p, _ := utils.PrincipalFrom(r.Context())
		u, err := h.auth.UpdateProfile(r.Context(), p, in)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, u)
	}
}
