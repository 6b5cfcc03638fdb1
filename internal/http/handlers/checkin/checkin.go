// Package checkin реализует HTTP-обработчик сканирования QR-кода на киоске.
//
// Handler принимает содержимое QR-кода, проверяет роль сканирующего
// и возвращает итог посещения: остаток занятий или дату окончания.
package checkin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/sharaf-deen/atom-membership/internal/auth"
	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/http/middlewarectx"
	"github.com/sharaf-deen/atom-membership/internal/http/response"
	"github.com/sharaf-deen/atom-membership/internal/lib/sl"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

// Handler управляет HTTP-запросами сканирования на входе.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики посещения.
type Service interface {
	CheckIn(ctx context.Context, rawCode, scannedBy string, scanTime time.Time) (*models.CheckInResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Отметить посещение по QR-коду
// @Description Проверяет абонемент владельца QR-кода и записывает посещение. Для плана с занятиями списывает одно занятие.
// @Tags CheckIn
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.DummyCheckIn true "Содержимое QR-кода"
// @Success 200 {object} models.CheckInResult "Посещение записано"
// @Failure 400 {object} response.ErrorResponse "Неизвестный или некорректный код"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "У владельца кода нет абонемента"
// @Failure 409 {object} response.ErrorResponse "Абонемент не активен"
// @Router /checkin [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkin"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.Principal(r.Context())
	if err := auth.Authorize(principal, auth.OpCheckIn); err != nil {
		log.Error("access denied", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	var req models.DummyCheckIn
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(domain.Code(domain.ErrInvalidInput), "invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	result, err := h.service.CheckIn(r.Context(), req.Code, principal.UID, time.Now().UTC())
	if err != nil {
		log.Error("check-in rejected", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	log.Info("check-in recorded", slog.String("member_uid", result.MemberUID))
	render.JSON(w, r, response.OKWithData(result))
}
