package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"featureboard/internal/blob"
	"featureboard/internal/config"
	"featureboard/internal/database"
	"featureboard/internal/repository/postgres"
	"featureboard/internal/router"
	"featureboard/internal/service"
	"featureboard/internal/supervisor"
	"featureboard/internal/sweeper"
	"featureboard/internal/uploads"
	"featureboard/pkg/logger"
)

func main() {
	// config + logger
	cfg, err := config.Load()
	if err != nil {
		bl := logger.New("", "", "")
		bl.Fatal().Err(err).Msg("load config")
	}
	l := logger.New(cfg.Env, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		l.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		l.Fatal().Err(err).Msg("db migrate failed")
	}

	// blob storage
	bdb, err := blob.Open(cfg.Blob.Path)
	if err != nil {
		l.Fatal().Err(err).Msg("blob store open failed")
	}
	defer bdb.Close()
	signer := blob.NewSigner(cfg.Blob.Secret)
	images := blob.NewBadgerStore(bdb, blob.BucketImages, cfg.Server.PublicBaseURL, signer)
	temp := blob.NewBadgerStore(bdb, blob.BucketTemp, cfg.Server.PublicBaseURL, signer)
	mgr := uploads.New(temp, images, l,
		uploads.WithMaxBytes(cfg.Uploads.MaxBytes),
		uploads.WithTempTTL(cfg.Uploads.TempTTL),
	)

	// services
	admins := service.NewAdminService(postgres.NewAdminRepo(pool), l)
	auth := service.NewAuthService(postgres.NewUserRepo(pool), cfg.Security.SessionSecret, cfg.Security.SessionTTL)
	tickets := service.NewTicketService(postgres.NewTicketRepo(pool), postgres.NewVoteRepo(pool), admins, mgr, l)
	if err := admins.Bootstrap(ctx, cfg.Security.BootstrapAdminEmail, cfg.Security.BootstrapAdminName); err != nil {
		l.Fatal().Err(err).Msg("bootstrap admin failed")
	}

	// http
	r := router.New(router.Deps{
		Log:     l,
		Config:  cfg,
		Auth:    auth,
		Admins:  admins,
		Tickets: tickets,
		Uploads: mgr,
		Signer:  signer,
		Images:  images,
		Temp:    temp,
		Checks: map[string]func(context.Context) error{
			"database": pool.Ping,
		},
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	tree := supervisor.New("featureboard", l, supervisor.DefaultConfig())
	tree.Add(supervisor.NewHTTPService(srv, 10*time.Second))
	tree.Add(sweeper.New(mgr, cfg.Uploads.SweepInterval, cfg.Uploads.SweepThreshold, l))

	l.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("api listening")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		l.Error().Err(err).Msg("supervisor stopped")
	}
	l.Info().Msg("shutdown complete")
}
