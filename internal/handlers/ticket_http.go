package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"featureboard/internal/models"
	"featureboard/internal/repository"
	"featureboard/internal/service"
	"featureboard/internal/utils"
)

// TicketHTTP wires ticket, comment and vote endpoints to the ticket service.
type TicketHTTP struct {
	svc *service.TicketService
	log zerolog.Logger
}

func NewTicketHTTP(svc *service.TicketService, log zerolog.Logger) *TicketHTTP {
	return &TicketHTTP{svc: svc, log: log}
}

// -----------------------------------------------------------------------------
// GET /api/tickets?status=&search=&authorId=&sortBy=&sortOrder=&page=&limit=&hidden=
// -----------------------------------------------------------------------------
func (h *TicketHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		f := repository.TicketFilter{
			Status:    models.Status(strings.TrimSpace(qv.Get("status"))),
			Search:    qv.Get("search"),
			AuthorID:  qv.Get("authorId"),
			SortBy:    qv.Get("sortBy"),
			SortOrder: qv.Get("sortOrder"),
			Page:      utils.QueryInt(qv, "page", 1),
			Limit:     utils.QueryInt(qv, "limit", repository.DefaultLimit),
			Hidden:    utils.QueryBool(qv, "hidden"),
		}
		p, _ := utils.PrincipalFrom(r.Context())

		page, err := h.svc.List(r.Context(), p, f)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))
		utils.JSON(w, http.StatusOK, page)
	}
}

// -----------------------------------------------------------------------------
// GET /api/tickets/{id}
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := utils.PrincipalFrom(r.Context())
		t, err := h.svc.Get(r.Context(), p, chi.URLParam(r, "id"))
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// -----------------------------------------------------------------------------
// POST /api/tickets
// A staged image (tempFilename) is promoted before the insert.
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.CreateTicketInput
		if err := utils.DecodeJSON(r, &in); err != nil {
			invalidJSON(w)
			return
		}
		p, _ := utils.PrincipalFrom(r.Context())

		t, err := h.svc.Create(r.Context(), p, in)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusCreated, t)
	}
}

// -----------------------------------------------------------------------------
// PATCH /api/tickets/{id}  {status}
// -----------------------------------------------------------------------------
func (h *TicketHTTP) UpdateStatus() http.HandlerFunc {
	type inDTO struct {
		Status string `json:"status"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := utils.DecodeJSON(r, &in); err != nil {
			invalidJSON(w)
			return
		}
		p, _ := utils.PrincipalFrom(r.Context())

		t, err := h.svc.SetStatus(r.Context(), p, chi.URLParam(r, "id"), in.Status)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// -----------------------------------------------------------------------------
// PATCH /api/tickets/{id}/visibility  {hidden}
// -----------------------------------------------------------------------------
func (h *TicketHTTP) SetVisibility() http.HandlerFunc {
	type inDTO struct {
		Hidden *bool `json:"hidden"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := utils.DecodeJSON(r, &in); err != nil {
			invalidJSON(w)
			return
		}
		if in.Hidden == nil {
			utils.Error(w, http.StatusBadRequest, "hidden is required")
			return
		}
		p, _ := utils.PrincipalFrom(r.Context())

		t, err := h.svc.SetHidden(r.Context(), p, chi.URLParam(r, "id"), *in.Hidden)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// -----------------------------------------------------------------------------
// DELETE /api/tickets/{id}
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := utils.PrincipalFrom(r.Context())
		if err := h.svc.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
			fail(w, r, h.log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// -----------------------------------------------------------------------------
// POST /api/comments  {ticketId, content}
// -----------------------------------------------------------------------------
func (h *TicketHTTP) AddComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.CommentInput
		if err := utils.DecodeJSON(r, &in); err != nil {
			invalidJSON(w)
			return
		}
		p, _ := utils.PrincipalFrom(r.Context())

		c, err := h.svc.AddComment(r.Context(), p, in)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusCreated, c)
	}
}

// -----------------------------------------------------------------------------
// POST /api/votes  {ticketId}  and  GET /api/votes/mine
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Vote() http.HandlerFunc {
	type inDTO struct {
		TicketID string `json:"ticketId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := utils.DecodeJSON(r, &in); err != nil {
			invalidJSON(w)
			return
		}
		p, _ := utils.PrincipalFrom(r.Context())

		res, err := h.svc.Vote(r.Context(), p, in.TicketID)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, res)
	}
}

func (h *TicketHTTP) MyVotes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := utils.PrincipalFrom(r.Context())
		ids, err := h.svc.MyVotes(r.Context(), p)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"ticketIds": ids})
	}
}
