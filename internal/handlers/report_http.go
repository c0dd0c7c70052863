package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"featureboard/internal/service"
	"featureboard/internal/utils"
)

type ReportsHTTP struct {
	svc *service.TicketService
	log zerolog.Logger
}

func NewReportsHTTP(svc *service.TicketService, log zerolog.Logger) *ReportsHTTP {
	return &ReportsHTTP{svc: svc, log: log}
}

// GET /api/reports/summary
// Returns: { byStatus: {Queued, InProgress, Completed}, hidden, total }
func (h *ReportsHTTP) Summary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := utils.PrincipalFrom(r.Context())
		s, err := h.svc.Summary(r.Context(), p)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, s)
	}
}
