// Package health отдаёт состояние сервиса и его хранилища карты дня.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/tarot-miniapp/internal/http/response"
	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/sl"
)

// Checker проверяет доступность зависимости. nil означает отсутствие проверки.
type Checker func(ctx context.Context) error

type Handler struct {
	log    *slog.Logger
	driver string
	check  Checker
}

func New(log *slog.Logger, driver string, check Checker) *Handler {
	return &Handler{
		log:    log,
		driver: driver,
		check:  check,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.check(ctx); err != nil {
			h.log.Error("daily cache unavailable", slog.String("op", op), sl.Err(err))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("daily cache unavailable"))
			return
		}
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"status":      "ok",
		"daily_cache": h.driver,
	}))
}
