// Package profile реализует HTTP-обработчик карточки члена клуба:
// учётная запись, история абонементов и число посещений.
package profile

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/sharaf-deen/atom-membership/internal/auth"
	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/http/middlewarectx"
	"github.com/sharaf-deen/atom-membership/internal/http/response"
	"github.com/sharaf-deen/atom-membership/internal/lib/sl"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

// Handler управляет HTTP-запросами карточки члена клуба.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики карточки профиля.
type Service interface {
	Profile(ctx context.Context, memberUID string) (*models.MemberCard, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Карточка члена клуба
// @Description Возвращает учётную запись, историю абонементов и число посещений.
// @Tags Members
// @Produce  json
// @Security BearerAuth
// @Param uid path string true "UID члена клуба"
// @Success 200 {object} map[string]any "Карточка профиля"
// @Failure 400 {object} response.ErrorResponse "Некорректный UID или член клуба не найден"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Router /members/{uid} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.profile"

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

	memberUID := chi.URLParam(r, "uid")
	if _, err := uuid.Parse(memberUID); err != nil {
		log.Error("invalid member uid", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(domain.Code(domain.ErrInvalidInput), "invalid member uid"))
		return
	}

	card, err := h.service.Profile(r.Context(), memberUID)
	if err != nil {
		log.Error("failed to load member profile", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	log.Info("member profile loaded", slog.String("member_uid", memberUID))
	render.JSON(w, r, response.OKWithData(card))
}
