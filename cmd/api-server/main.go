package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaxport/scheduling-engine/internal/api"
	"github.com/vaxport/scheduling-engine/internal/appointment"
	"github.com/vaxport/scheduling-engine/internal/config"
	"github.com/vaxport/scheduling-engine/internal/db"
	"github.com/vaxport/scheduling-engine/internal/logging"
	redisclient "github.com/vaxport/scheduling-engine/internal/redis"
	"github.com/vaxport/scheduling-engine/internal/slots"
	"github.com/vaxport/scheduling-engine/internal/triage"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "api-server")
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "api-server")
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

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

	rdb, err := redisclient.NewClient(rootCtx, redisclient.ClientOptions{
		Addr:      cfg.RedisAddr,
		Username:  cfg.RedisUsername,
		Password:  cfg.RedisPassword,
		OpTimeout: cfg.RedisOpTimeout,
		PoolSize:  cfg.RedisPoolSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisAssignmentLocker(rdb, cfg.LockTTL)
	svc := appointment.NewService(repo, nil, log)

	resolver, err := slots.NewResolver(repo, locker, slots.Options{
		Cadence:     cfg.SlotCadence,
		ClinicOpen:  cfg.ClinicOpen,
		ClinicClose: cfg.ClinicClose,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("slot resolver config error")
	}

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		Resolver: resolver,
		Triage: triage.Config{
			UrgentWindow:     cfg.UrgentWindow,
			ComingSoonWindow: cfg.ComingSoonWindow,
		},
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  log,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("http server error")
		os.Exit(1)
	case <-rootCtx.Done():
	}

	log.Info().Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
