package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"featureboard/internal/blob"
	"featureboard/internal/config"
	"featureboard/internal/handlers"
	"featureboard/internal/middleware"
	"featureboard/internal/service"
	"featureboard/internal/uploads"
	"featureboard/internal/utils"
)

// uploadRatePerMinute caps upload endpoints per client IP.
const uploadRatePerMinute = 30

// Deps is everything the HTTP surface needs, assembled by cmd/api.
type Deps struct {
	Log     zerolog.Logger
	Config  config.Config
	Auth    *service.AuthService
	Admins  *service.AdminService
	Tickets *service.TicketService
	Uploads *uploads.Manager
	Signer  *blob.Signer
	Images  blob.Store
	Temp    blob.Store
	Checks  map[string]func(context.Context) error
}

func New(d Deps) http.Handler {
	log, cfg := d.Log, d.Config
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Server.Origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Request-Id"},
		AllowCredentials: true,
	}))
	if cfg.Server.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.Server.RateLimit, time.Minute))
	}
	r.Use(middleware.WithAuth(log, d.Auth))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.Error(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health + metrics
	r.Get("/healthz", handlers.Health(d.Checks))
	r.Handle("/metrics", promhttp.Handler())

	// Blob delivery
	bh := handlers.NewBlobHTTP(d.Signer, log, d.Images, d.Temp)
	r.Get("/blobs/{bucket}/*", bh.Serve())

	// Handlers
	ah := handlers.NewAuthHTTP(d.Auth, d.Admins, cfg.Env != "dev", log)
	th := handlers.NewTicketHTTP(d.Tickets, log)
	uh := handlers.NewUploadHTTP(d.Uploads, cfg.Uploads.MaxBytes, cfg.Uploads.SweepThreshold, log)
	adm := handlers.NewAdminHTTP(d.Admins, log)
	users := handlers.NewUserHTTP(d.Auth, log)
	rep := handlers.NewReportsHTTP(d.Tickets, log)
	requireAdmin := middleware.RequireAdmin(d.Admins)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", ah.Register())
			r.Post("/login", ah.Login())
			r.Post("/logout", ah.Logout())
			r.Get("/me", ah.Me())
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", th.List())
			r.With(middleware.RequireAuth).Post("/", th.Create())
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", th.Get())
				r.With(requireAdmin).Patch("/", th.UpdateStatus())
				r.With(requireAdmin).Patch("/visibility", th.SetVisibility())
				r.With(middleware.RequireAuth).Delete("/", th.Delete())
			})
		})

		r.With(middleware.RequireAuth).Post("/comments", th.AddComment())

		r.Route("/votes", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/", th.Vote())
			r.Get("/mine", th.MyVotes())
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Use(httprate.LimitByIP(uploadRatePerMinute, time.Minute))
			r.With(middleware.RequireAuth).Post("/temp", uh.Temp())
			r.With(middleware.RequireAuth).Post("/move", uh.Move())
			// Cleanup only touches expired or explicitly named temp objects.
			r.Post("/cleanup", uh.Cleanup())
		})

		r.Route("/admins", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", adm.List())
			r.Post("/", adm.Add())
			r.Delete("/{id}", adm.Remove())
		})

		r.With(middleware.RequireSelf).Patch("/users/{id}", users.UpdateProfile())
		r.With(requireAdmin).Get("/reports/summary", rep.Summary())
	})

	return r
}
