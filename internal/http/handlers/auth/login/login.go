// Package login реализует HTTP-обработчик входа по email и паролю.
// При успехе возвращает JWT токен сессии.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/http/response"
	"github.com/sharaf-deen/atom-membership/internal/lib/sl"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

// Handler управляет HTTP-запросами на вход.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики входа.
type Service interface {
	Login(ctx context.Context, email, password string) (string, error)
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
// @Summary Вход по email и паролю
// @Description Проверяет учётные данные и возвращает JWT токен сессии.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.DummyLogin true "Учётные данные"
// @Success 200 {object} map[string]any "Токен сессии"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учётные данные"
// @Router /login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyLogin
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(domain.Code(domain.ErrInvalidInput), "invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.JSON(w, r, response.ValidationError(verrs))
		} else {
			render.JSON(w, r, response.Error(domain.Code(domain.ErrInvalidInput), err.Error()))
		}
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Error("login failed", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	log.Info("login succeeded", slog.String("email", req.Email))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token": token,
	}))
}
