// Package changerole реализует HTTP-обработчик смены роли учётной записи.
// Выдача административных ролей дополнительно ограничена внутри сервиса.
package changerole

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
)

// Request — входные данные для смены роли.
type Request struct {
	MemberUID string `json:"member_uid" validate:"required,uuid"`
	Role      string `json:"role" validate:"required"`
}

// Handler управляет HTTP-запросами на смену роли.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики смены роли.
type Service interface {
	ChangeRole(ctx context.Context, p *auth.Principal, targetUID, newRole string) error
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
	const op = "handlers.auth.changerole"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.Principal(r.Context())

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
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

	if err := h.service.ChangeRole(r.Context(), principal, req.MemberUID, req.Role); err != nil {
		log.Error("failed to change role", sl.Err(err))
		render.Status(r, domain.HTTPStatus(err))
		render.JSON(w, r, response.DomainError(err))
		return
	}

	log.Info("role changed", slog.String("member_uid", req.MemberUID), slog.String("role", req.Role))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"member_uid": req.MemberUID,
		"role":       req.Role,
	}))
}
