package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/metrics"
	"git.home.luguber.info/inful/cachebuild/internal/scheduler"
)

// ScheduleCmd implements the 'schedule' command.
type ScheduleCmd struct {
	Cron   string `help:"Override schedule.cron (five-field cron expression)"`
	Listen string `help:"Override metrics.listen; empty string disables the metrics server"`
	RunNow bool   `name:"run-now" help:"Run the matrix once immediately before waiting for the schedule"`
}

func (s *ScheduleCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig(false)
	if err != nil {
		return err
	}
	if s.Cron != "" {
		cfg.Schedule.Cron = s.Cron
	}
	if s.Listen != "" {
		cfg.Metrics.Listen = s.Listen
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	sched, err := scheduler.NewScheduler()
	if err != nil {
		return err
	}
	task := func() {
		out, err := runMatrix(ctx, a)
		if out != nil {
			printMatrixSummary(os.Stdout, out)
		}
		if err != nil {
			slog.Error("Scheduled matrix failed", "error", err)
		}
	}
	id, err := sched.ScheduleCron("matrix", cfg.Schedule.Cron, task)
	if err != nil {
		return usageError(fmt.Sprintf("invalid schedule.cron %q: %v", cfg.Schedule.Cron, err))
	}

	srv := &http.Server{
		Addr:              cfg.Metrics.Listen,
		Handler:           metricsMux(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	sched.Start(ctx)
	if next, err := sched.NextRun(id); err == nil {
		slog.Info("Schedule daemon started", "cron", cfg.Schedule.Cron, "next_run", next)
	}
	if s.RunNow {
		task()
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping scheduler...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := srv.Shutdown(stopCtx); err != nil {
		slog.Warn("Failed to stop metrics server", "error", err)
	}
	return sched.Stop(stopCtx)
}

func metricsMux(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(a.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
