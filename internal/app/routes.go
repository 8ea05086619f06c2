package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/tarot-miniapp/internal/http/handlers/health"
	"github.com/magabrotheeeer/tarot-miniapp/internal/http/handlers/webhook"
	"github.com/magabrotheeeer/tarot-miniapp/internal/http/middlewarectx"
)

// WebhookPath путь, на который Telegram присылает обновления.
const WebhookPath = "/telegram/webhook"

// Routes зависимости служебного HTTP-сервера.
type Routes struct {
	Driver        string
	Check         health.Checker
	Registry      *prometheus.Registry
	Updates       webhook.UpdateHandler // nil в режиме long polling
	WebhookSecret string
	Limiter       *rate.Limiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, rt Routes) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", health.New(logger, rt.Driver, rt.Check).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}))

	if rt.Updates != nil {
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.WebhookSecretMiddleware(logger, rt.WebhookSecret))
			if rt.Limiter != nil {
				r.Use(middlewarectx.RateLimitMiddleware(logger, rt.Limiter))
			}
			r.Method(http.MethodPost, WebhookPath, webhook.New(logger, rt.Updates))
		})
	}
}
