package scrape

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/stationwatch/availability-engine/availability"
)

// Scheduler runs the scrape pipeline on a fixed interval. Each tick is a
// cache-first run over the configured horizon; the runner's own mutex
// protects against a tick overlapping a manual run.
type Scheduler struct {
	scheduler gocron.Scheduler
	log       zerolog.Logger
}

// NewScheduler schedules periodic runs. Call Start to begin ticking.
func NewScheduler(runner *Runner, interval time.Duration, horizonDays int, log zerolog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	log = log.With().Str("component", "scheduler").Logger()
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			if err := runner.Run(ctx, horizonDays, availability.CacheFirst); err != nil {
				log.Error().Err(err).Msg("scheduled scrape run failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, err
	}

	return &Scheduler{scheduler: s, log: log}, nil
}

// Start begins periodic execution. Non-blocking.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.log.Info().Msg("scrape scheduler started")
}

// Shutdown stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}
