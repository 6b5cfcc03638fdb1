// Package health реализует HTTP-обработчик проверки живости сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/sharaf-deen/atom-membership/internal/http/response"
	"github.com/sharaf-deen/atom-membership/internal/lib/sl"
)

// Pinger описывает проверку готовности хранилища.
type Pinger interface {
	CheckDatabaseReady(ctx context.Context) error
}

// Handler управляет HTTP-запросами проверки живости.
type Handler struct {
	log    *slog.Logger
	pinger Pinger
}

// New создает новый Handler с переданными логгером и хранилищем.
func New(log *slog.Logger, pinger Pinger) *Handler {
	return &Handler{
		log:    log,
		pinger: pinger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if err := h.pinger.CheckDatabaseReady(r.Context()); err != nil {
		h.log.Error("database not ready", slog.String("op", op), sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("SERVER_ERROR", "database not ready"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
	}))
}
