package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaxport/scheduling-engine/internal/appointment"
	"github.com/vaxport/scheduling-engine/internal/config"
	"github.com/vaxport/scheduling-engine/internal/db"
	"github.com/vaxport/scheduling-engine/internal/logging"
	"github.com/vaxport/scheduling-engine/internal/triage"
)

// The triage worker is the server-side counterpart of the dashboard poll:
// it recomputes the urgent queue on an interval and logs a summary, so
// overdue appointments get surfaced even with no dashboard open.
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "triage-worker")
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "triage-worker")
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("triage-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	repo := appointment.NewPgRepository(pgPool)
	triageCfg := triage.Config{
		UrgentWindow:     cfg.UrgentWindow,
		ComingSoonWindow: cfg.ComingSoonWindow,
	}

	runOnce(rootCtx, repo, triageCfg, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping triage worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, triageCfg, log)
		}
	}
}

func runOnce(ctx context.Context, repo appointment.Repository, cfg triage.Config, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	appts, err := repo.ListActionable(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("triage run error")
		return
	}

	queue := triage.Compute(appts, time.Now(), cfg)

	counts := make(map[triage.UrgencyType]int)
	for _, item := range queue {
		counts[item.UrgencyType]++
		if item.UrgencyType == triage.Overdue {
			log.Warn().
				Stringer("appointment_id", item.AppointmentID).
				Str("target_date", item.TargetDate.Format("2006-01-02")).
				Msg("appointment overdue")
		}
	}

	log.Info().
		Int("queue_size", len(queue)).
		Int("reschedule_pending", counts[triage.ReschedulePending]).
		Int("no_doctor", counts[triage.NoDoctor]).
		Int("coming_soon", counts[triage.ComingSoon]).
		Int("overdue", counts[triage.Overdue]).
		Dur("took", time.Since(start)).
		Msg("triage sweep complete")
}
