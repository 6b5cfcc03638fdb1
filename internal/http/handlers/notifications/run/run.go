// Package run реализует HTTP-обработчик запуска планировщика напоминаний.
//
// Параметр запроса dry=1 включает пробный прогон: кандидаты только
// подсчитываются, тикеты не создаются и письма не ставятся в очередь.
package run

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

// Handler управляет HTTP-запросами запуска напоминаний.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс планировщика напоминаний.
type Service interface {
	ComputeDue(ctx context.Context, today time.Time, dryRun bool) (models.ReminderSummary, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Запустить рассылку напоминаний
// @Description Находит абонементы с истекающим сроком или малым остатком занятий и ставит напоминания в очередь. Поддерживает пробный прогон через ?dry=1.
// @Tags Notifications
// @Produce  json
// @Security BearerAuth
// @Param dry query int false "1 для пробного прогона без записи"
// @Success 200 {object} models.ReminderSummary "Итоги рассылки"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при рассылке"
// @Router /notifications/run [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.notifications.run"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.Principal(r.Context())
	if err := auth.Authorize(principal, auth.OpRunReminders); err != nil {
		log.Error("access denied", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	dryRun := r.URL.Query().Get("dry") == "1"

	summary, err := h.service.ComputeDue(r.Context(), dates.DateOnly(time.Now().UTC()), dryRun)
	if err != nil {
		log.Error("failed to run reminders", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	log.Info("reminder run finished",
		slog.Bool("dry_run", dryRun),
		slog.Int("queued_expire_7d", summary.Queued.Expire7d),
		slog.Int("queued_sessions_low", summary.Queued.SessionsLow),
		slog.Int("sent", summary.Sent))
	render.JSON(w, r, response.OKWithData(summary))
}
