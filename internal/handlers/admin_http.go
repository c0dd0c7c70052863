package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"featureboard/internal/service"
	"featureboard/internal/utils"
)

type AdminHTTP struct {
	svc *service.AdminService
	log zerolog.Logger
}

func NewAdminHTTP(svc *service.AdminService, log zerolog.Logger) *AdminHTTP {
	return &AdminHTTP{svc: svc, log: log}
}

// GET /api/admins
func (h *AdminHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := utils.PrincipalFrom(r.Context())
		items, err := h.svc.List(r.Context(), p)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
	}
}

// POST /api/admins  {email, name}
func (h *AdminHTTP) Add() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.AddAdminInput
		if err := utils.DecodeJSON(r, &in); err != nil {
			invalidJSON(w)
			return
		}
		p, _ := utils.PrincipalFrom(r.Context())
		a, err := h.svc.Add(r.Context(), p, in)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusCreated, a)
	}
}

// DELETE /api/admins/{id}
// 409 when {id} is the last remaining admin.
func (h *AdminHTTP) Remove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := utils.PrincipalFrom(r.Context())
		if err := h.svc.Remove(r.Context(), p, chi.URLParam(r, "id")); err != nil {
			fail(w, r, h.log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
