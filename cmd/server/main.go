/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the station availability service. Handles
  configuration, dependency wiring, and graceful shutdown.

COMMANDS:
  serve       Run the API server with the periodic scrape scheduler
  scrape      Run one scrape pass and exit
  reconcile   Compare stored state against the live station display

STARTUP SEQUENCE (serve):
  1. Load configuration from the environment (.env in development)
  2. Open the SQLite store
  3. Build the portal client, day cache, and scrape runner
  4. Start the gocron scheduler and the HTTP server
  5. On SIGINT/SIGTERM, stop the scheduler, drain requests (30s), close

CONFIGURATION:
  All via environment variables; see config/config.go. The scrape and
  reconcile commands require PORTAL_URL / PORTAL_USERNAME /
  PORTAL_PASSWORD; serve degrades to read-only without them.

SEE ALSO:
  - api/server.go: Router configuration
  - scrape/runner.go: The write path
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stationwatch/availability-engine/api"
	"github.com/stationwatch/availability-engine/availability"
	"github.com/stationwatch/availability-engine/config"
	"github.com/stationwatch/availability-engine/fetch"
	"github.com/stationwatch/availability-engine/scrape"
	"github.com/stationwatch/availability-engine/store/sqlite"
)

func main() {
	root := &cobra.Command{
		Use:          "stationwatch",
		Short:        "Duty-availability engine for retained fire stations",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), scrapeCmd(), reconcileCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// deps is everything a command needs, built once from config.
type deps struct {
	cfg     config.Config
	log     zerolog.Logger
	store   *sqlite.Store
	client  *fetch.Client // nil without portal settings
	runner  *scrape.Runner
	metrics *scrape.Metrics
	reg     *prometheus.Registry
}

func buildDeps(needPortal bool) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	if needPortal {
		if err := cfg.RequirePortal(); err != nil {
			return nil, err
		}
	}

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	d := &deps{
		cfg:   cfg,
		log:   log,
		store: store,
		reg:   prometheus.NewRegistry(),
	}
	d.metrics = scrape.NewMetrics(d.reg)

	clock := clockwork.NewRealClock()
	if cfg.PortalURL != "" {
		client, err := fetch.NewClient(cfg.PortalURL, fetch.Credentials{
			Username: cfg.PortalUsername,
			Password: cfg.PortalPassword,
		}, log)
		if err != nil {
			store.Close()
			return nil, err
		}
		d.client = client

		cache, err := scrape.NewDayCache(cfg.CacheDir, clock, log)
		if err != nil {
			store.Close()
			return nil, err
		}
		d.runner = scrape.NewRunner(store, client, cache, clock, log, d.metrics)
	}
	return d, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the periodic scrape scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDeps(false)
			if err != nil {
				return err
			}
			defer d.store.Close()

			handler := api.NewHandler(d.store, clockwork.NewRealClock(), d.log)
			if d.runner != nil {
				handler.Runner = d.runner
				handler.Display = d.client
			}

			var scheduler *scrape.Scheduler
			if d.runner != nil {
				scheduler, err = scrape.NewScheduler(d.runner, d.cfg.ScrapeInterval, d.cfg.HorizonDays, d.log)
				if err != nil {
					return err
				}
				scheduler.Start()
			} else {
				d.log.Warn().Msg("portal not configured, serving stored data only")
			}

			server := &http.Server{
				Addr:         d.cfg.ListenAddr,
				Handler:      api.NewRouter(handler, d.reg),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				d.log.Info().Str("addr", d.cfg.ListenAddr).Msg("server starting")
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-quit:
			}

			d.log.Info().Msg("shutting down")
			if scheduler != nil {
				if err := scheduler.Shutdown(); err != nil {
					d.log.Warn().Err(err).Msg("scheduler shutdown failed")
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}
}

func scrapeCmd() *cobra.Command {
	var directiveFlag string
	var days int

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			directive, err := availability.ParseCacheDirective(directiveFlag)
			if err != nil {
				return err
			}

			d, err := buildDeps(true)
			if err != nil {
				return err
			}
			defer d.store.Close()

			if days <= 0 {
				days = d.cfg.HorizonDays
			}
			return d.runner.Run(cmd.Context(), days, directive)
		},
	}
	cmd.Flags().StringVar(&directiveFlag, "directive", "cache-first", "cache directive: cache-only, cache-first, no-cache, fresh-start")
	cmd.Flags().IntVar(&days, "days", 0, "booking days to cover (default: HORIZON_DAYS)")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stored state against the live station display",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDeps(true)
			if err != nil {
				return err
			}
			defer d.store.Close()

			run, err := d.runner.Reconcile(cmd.Context(), d.client)
			if err != nil {
				return err
			}

			log := d.log.With().Str("run_id", run.ID).Logger()
			if len(run.Discrepancies) == 0 {
				log.Info().Int("compared", run.Compared).Msg("sources agree")
				return nil
			}
			for _, disc := range run.Discrepancies {
				log.Warn().
					Str("resource", string(disc.Resource)).
					Str("detail", disc.Explanation).
					Msg("discrepancy")
			}
			return nil
		},
	}
}
