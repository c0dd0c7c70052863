package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"featureboard/internal/models"
	"featureboard/internal/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type fakeAuth map[string]models.Principal

func (f fakeAuth) Authenticate(tok string) (models.Principal, error) {
	if p, ok := f[tok]; ok {
		return p, nil
	}
	return models.Principal{}, errors.New("bad token")
}

type fakeAdmins map[string]bool

func (f fakeAdmins) IsAdmin(_ context.Context, p models.Principal) (bool, error) {
	return f[p.Email], nil
}

func whoami(w http.ResponseWriter, r *http.Request) {
	p, _ := utils.PrincipalFrom(r.Context())
	utils.JSON(w, http.StatusOK, p)
}

func TestWithAuth(t *testing.T) {
	auth := fakeAuth{"good": {ID: "u1", Email: "a@example.com"}}
	h := WithAuth(zerolog.Nop(), auth)(RequireAuth(http.HandlerFunc(whoami)))

	tests := []struct {
		name        string
		setup       func(*http.Request)
		wantCode    int
		clearCookie bool
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized, false},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusOK, false},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "good"}) }, http.StatusOK, false},
		{"broken cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "bad"}) }, http.StatusUnauthorized, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			cleared := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == SessionCookie && c.MaxAge < 0 {
					cleared = true
				}
			}
			if cleared != tt.clearCookie {
				t.Errorf("cookie cleared = %v, want %v", cleared, tt.clearCookie)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	auth := fakeAuth{"admin": {ID: "u1", Email: "root@example.com"}, "user": {ID: "u2", Email: "x@example.com"}}
	admins := fakeAdmins{"root@example.com": true}
	h := WithAuth(zerolog.Nop(), auth)(RequireAdmin(admins)(http.HandlerFunc(whoami)))

	for tok, want := range map[string]int{"": 401, "user": 403, "admin": 200} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("token %q: code = %d, want %d", tok, rec.Code, want)
		}
	}
}

func TestRequireSelf(t *testing.T) {
	auth := fakeAuth{"tok": {ID: "u1", Email: "a@example.com"}}
	r := chi.NewRouter()
	r.Use(WithAuth(zerolog.Nop(), auth))
	r.With(RequireSelf).Patch("/users/{id}", whoami)

	for path, want := range map[string]int{"/users/u1": 200, "/users/u2": 403} {
		req := httptest.NewRequest(http.MethodPatch, path, nil)
		req.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: code = %d, want %d", path, rec.Code, want)
		}
	}
}

func TestRecovererAndRequestID(t *testing.T) {
	var seen string
	h := RequestID(Recoverer(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = chimw.GetReqID(r.Context())
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("code = %d", rec.Code)
	}
	if seen == "" || rec.Header().Get(chimw.RequestIDHeader) != seen {
		t.Errorf("request id = %q, header = %q", seen, rec.Header().Get(chimw.RequestIDHeader))
	}
}

func TestRequestLoggerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(RequestLogger(zerolog.Nop()))
	r.Get("/tickets/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tickets/abc", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("code = %d", rec.Code)
	}
}
