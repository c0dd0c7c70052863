package handlers

import (
	"net/http"

	"featureboard/internal/apperr"
	"featureboard/internal/utils"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// fail writes err in the {"error": "..."} envelope with the status of its kind.
// Unclassified errors are logged and reported as "internal error".
func fail(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Msg("request failed")
	}
	utils.Error(w, status, apperr.Message(err))
}

func invalidJSON(w http.ResponseWriter) {
	utils.Error(w, http.StatusBadRequest, "invalid json")
}
