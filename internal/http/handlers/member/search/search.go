// Package search реализует HTTP-обработчик поиска членов клуба для стойки
// регистрации: по точному email или по подстроке имени.
package search

import (
	"context"
	"encoding/json"
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

// Handler управляет HTTP-запросами поиска членов клуба.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики поиска.
type Service interface {
	Search(ctx context.Context, req models.DummyMemberSearch) ([]*models.MemberProfile, error)
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
// @Summary Найти члена клуба
// @Description Ищет членов клуба по email или подстроке имени и возвращает профили с последним абонементом.
// @Tags Members
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.DummyMemberSearch true "Фильтр поиска"
// @Success 200 {object} map[string]any "Найденные профили"
// @Failure 400 {object} response.ErrorResponse "Пустой фильтр или некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Router /members/search [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.search"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.Principal(r.Context())
	if err := auth.Authorize(principal, auth.OpSearchMembers); err != nil {
		log.Error("access denied", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	var req models.DummyMemberSearch
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

	profiles, err := h.service.Search(r.Context(), req)
	if err != nil {
		log.Error("failed to search members", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	log.Info("members found", slog.Int("count", len(profiles)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"members": profiles,
	}))
}
