// Package register реализует HTTP-обработчик регистрации учётных записей.
//
// Регистрация доступна только администраторам: стойка и члены клуба не
// создают учётные записи самостоятельно. Handler валидирует входные данные,
// проверяет роль вызывающего и возвращает uid созданной записи.
package register

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

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

// Handler управляет HTTP-запросами на регистрацию учётных записей.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики регистрации.
type Service interface {
	Register(ctx context.Context, req models.DummyRegister) (string, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.Principal(r.Context())
	if err := auth.RequireAdmin(principal); err != nil {
		log.Error("access denied", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	var req models.DummyRegister
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
	log.Info("all fields are validated")

	uid, err := h.service.Register(r.Context(), req)
	if err != nil {
		log.Error("registration failed", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	log.Info("account registered", slog.String("uid", uid))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"uid": uid,
	}))
}
