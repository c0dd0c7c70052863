// Package sweeper periodically removes temp uploads that were never promoted.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"featureboard/internal/metrics"
	"featureboard/internal/uploads"
)

// Sweeper is satisfied by *uploads.Manager.
type Sweeper interface {
	SweepExpired(ctx context.Context, threshold time.Duration) (uploads.SweepResult, error)
}

// Service runs a sweep every interval. It is a suture.Service.
type Service struct {
	sweeper   Sweeper
	interval  time.Duration
	threshold time.Duration
	log       zerolog.Logger
}

func New(s Sweeper, interval, threshold time.Duration, log zerolog.Logger) *Service {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Service{
		sweeper:   s,
		interval:  interval,
		threshold: threshold,
		log:       log.With().Str("component", "sweeper").Logger(),
	}
}

// Serve sweeps once at start and then on every tick. A failed sweep is
// logged and retried on the next tick.
func (s *Service) Serve(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (s *Service) RunOnce(ctx context.Context) (uploads.SweepResult, error) {
	res, err := s.sweeper.SweepExpired(ctx, s.threshold)
	if err != nil {
		s.log.Error().Err(err).Msg("temp sweep failed")
		return res, err
	}
	metrics.SweepLastRun.SetToCurrentTime()
	if res.Count > 0 {
		s.log.Info().Int("removed", res.Count).Msg("temp sweep")
	}
	return res, nil
}

func (s *Service) String() string { return "temp-sweeper" }
