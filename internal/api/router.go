package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vaxport/scheduling-engine/internal/appointment"
	"github.com/vaxport/scheduling-engine/internal/slots"
	"github.com/vaxport/scheduling-engine/internal/triage"
)

type RouterConfig struct {
	Service  *appointment.Service
	Resolver *slots.Resolver
	Triage   triage.Config
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/bookings", createBookingHandler(cfg.Service))
	r.Get("/patients/{id}/routes", patientRoutesHandler(cfg.Service))

	r.Put("/appointments", assignHandler(cfg.Resolver))
	r.Get("/appointments/urgent", urgentQueueHandler(cfg.Service, cfg.Triage))
	r.Get("/appointments/today", todayHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Put("/appointments/{id}/reschedule", rescheduleHandler(cfg.Service))
	r.Put("/appointments/{id}/cancel", cancelHandler(cfg.Service))
	r.Put("/appointments/{id}/complete", completeHandler(cfg.Service))
	r.Get("/appointments/{id}/refund", refundHandler(cfg.Service))

	r.Get("/doctors/{id}/available-slots", availableSlotsHandler(cfg.Resolver))

	return r
}
