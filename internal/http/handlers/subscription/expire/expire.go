// Package expire реализует HTTP-обработчик ручного запуска ежедневной
// сверки абонементов. Повторный запуск за тот же день безопасен и
// возвращает нулевые счётчики.
package expire

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/sharaf-deen/atom-membership/internal/auth"
	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/http/middlewarectx"
	"github.com/sharaf-deen/atom-membership/internal/http/response"
	"github.com/sharaf-deen/atom-membership/internal/lib/dates"
	"github.com/sharaf-deen/atom-membership/internal/lib/sl"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

// Handler управляет HTTP-запросами на запуск сверки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики сверки абонементов.
type Service interface {
	RunExpirySweep(ctx context.Context, today time.Time) (models.SweepSummary, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Запустить сверку абонементов
// @Description Переводит просроченные и исчерпанные абонементы в статус expired. Возвращает счётчики изменений.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} models.SweepSummary "Итоги сверки"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при сверке"
// @Router /subscriptions/expire [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.expire"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.Principal(r.Context())
	if err := auth.Authorize(principal, auth.OpRunExpirySweep); err != nil {
		log.Error("access denied", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	summary, err := h.service.RunExpirySweep(r.Context(), dates.DateOnly(time.Now().UTC()))
	if err != nil {
		log.Error("failed to run expiry sweep", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	log.Info("expiry sweep finished",
		slog.Int("time_expired", summary.TimeExpired),
		slog.Int("sessions_expired", summary.SessionsExpired))
	render.JSON(w, r, response.OKWithData(summary))
}
