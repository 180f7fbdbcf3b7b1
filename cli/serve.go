package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"rental-digest/models"
	"rental-digest/utils"
)

const (
	runTimeout      = time.Hour
	shutdownTimeout = 15 * time.Second
)

func newServeCmd() *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run ingest and report on their cron schedules and serve /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			// fail before scheduling anything if the sink is misconfigured
			reporter, err := a.newReporter(ctx, a.cfg.ReportWindow)
			if err != nil {
				return err
			}

			ingest := func() {
				runCtx, cancel := context.WithTimeout(ctx, runTimeout)
				defer cancel()
				pipeline, cleanup, err := a.newPipeline()
				if err != nil {
					a.logger.Error("[serve] Cannot build ingest pipeline: %v", err)
					return
				}
				defer cleanup()
				if _, err := pipeline.Run(runCtx); err != nil {
					a.logger.Error("[serve] Ingest aborted: %v", err)
				}
			}
			report := func() {
				runCtx, cancel := context.WithTimeout(ctx, runTimeout)
				defer cancel()
				_, err := reporter.Run(runCtx)
				if err != nil && !errors.Is(err, models.ErrNothingToReport) {
					a.logger.Error("[serve] Report failed: %v", err)
				}
			}

			cronLog := cronLogger{a.logger.With("component", "cron")}
			c := cron.New(
				cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
				cron.WithLocation(reportLocation(a.cfg.ReportTimezone)),
				cron.WithLogger(cronLog),
				cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
			)
			if _, err := c.AddFunc(a.cfg.IngestSchedule, ingest); err != nil {
				return fmt.Errorf("%w: INGEST_SCHEDULE %q: %v", models.ErrFatalConfiguration, a.cfg.IngestSchedule, err)
			}
			if _, err := c.AddFunc(a.cfg.ReportSchedule, report); err != nil {
				return fmt.Errorf("%w: REPORT_SCHEDULE %q: %v", models.ErrFatalConfiguration, a.cfg.ReportSchedule, err)
			}

			srv := &server{
				store:         a.store,
				listings:      a.gateway,
				gatherer:      a.metrics.Registry,
				defaultWindow: a.cfg.ReportWindow,
				now:           time.Now,
				logger:        a.logger,
			}
			httpSrv := &http.Server{
				Addr:              a.cfg.HTTPAddr,
				Handler:           srv.routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("[serve] HTTP listening on %s", a.cfg.HTTPAddr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			c.Start()
			a.logger.Info("[serve] Scheduled ingest %q and report %q", a.cfg.IngestSchedule, a.cfg.ReportSchedule)
			if runNow {
				go ingest()
			}

			var serveErr error
			select {
			case <-ctx.Done():
				a.logger.Info("[serve] Shutting down")
			case serveErr = <-errCh:
				a.logger.Error("[serve] HTTP server failed: %v", serveErr)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("[serve] HTTP shutdown: %v", err)
			}
			select {
			case <-c.Stop().Done():
			case <-shutdownCtx.Done():
				a.logger.Warn("[serve] Jobs still running at shutdown")
			}
			return serveErr
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "start an ingest immediately instead of waiting for the schedule")
	return cmd
}

func reportLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// cronLogger routes the scheduler's own messages (skipped runs, recovered
// panics) into the application logger.
type cronLogger struct {
	log *utils.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.With(keysAndValues...).Debug("[cron] %s", msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.With(keysAndValues...).Error("[cron] %s: %v", msg, err)
}
