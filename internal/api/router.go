package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/careloop/telehealth-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *zap.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health and metrics endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Appointment endpoints
	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/accept", acceptAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/reject", rejectAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/no-show", noShowAppointmentHandler(cfg.Service))

	// Doctor calendar
	r.Get("/doctors/{id}/slots", freeSlotsHandler(cfg.Service))

	return r
}
