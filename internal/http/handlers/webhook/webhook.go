// Package webhook принимает обновления Telegram в режиме вебхука.
package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/tarot-miniapp/internal/http/response"
	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/sl"
)

// UpdateHandler получатель обновлений бота.
type UpdateHandler interface {
	HandleUpdate(u tgbotapi.Update)
}

type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	updates UpdateHandler
}

func New(log *slog.Logger, updates UpdateHandler) *Handler {
	return &Handler{
		log:     log,
		updates: updates,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.telegram.webhook"
	log := h.log.With(slog.String("op", op))

	var u tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		log.Error("failed to decode update", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid update"))
		return
	}
	defer r.Body.Close()

	log.Debug("update received", slog.Int("update_id", u.UpdateID))
	h.updates.HandleUpdate(u)

	render.JSON(w, r, response.OK())
}
