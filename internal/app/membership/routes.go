// Package membership предоставляет маршруты для основного приложения.
package membership

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/sharaf-deen/atom-membership/internal/auth"
	"github.com/sharaf-deen/atom-membership/internal/http/handlers/auth/changerole"
	"github.com/sharaf-deen/atom-membership/internal/http/handlers/auth/login"
	"github.com/sharaf-deen/atom-membership/internal/http/handlers/auth/register"
	"github.com/sharaf-deen/atom-membership/internal/http/handlers/checkin"
	"github.com/sharaf-deen/atom-membership/internal/http/handlers/health"
	"github.com/sharaf-deen/atom-membership/internal/http/handlers/member/profile"
	"github.com/sharaf-deen/atom-membership/internal/http/handlers/member/search"
	notificationsrun "github.com/sharaf-deen/atom-membership/internal/http/handlers/notifications/run"
	"github.com/sharaf-deen/atom-membership/internal/http/handlers/subscription/cancel"
	"github.com/sharaf-deen/atom-membership/internal/http/handlers/subscription/create"
	"github.com/sharaf-deen/atom-membership/internal/http/handlers/subscription/expire"
	"github.com/sharaf-deen/atom-membership/internal/http/middlewarectx"
	accountservice "github.com/sharaf-deen/atom-membership/internal/services/account"
	checkinservice "github.com/sharaf-deen/atom-membership/internal/services/checkin"
	memberservice "github.com/sharaf-deen/atom-membership/internal/services/member"
	reminderservice "github.com/sharaf-deen/atom-membership/internal/services/reminder"
	subscriptionservice "github.com/sharaf-deen/atom-membership/internal/services/subscription"
	"github.com/sharaf-deen/atom-membership/internal/storage/repository"
)

// Services собирает сервисы, необходимые маршрутам.
type Services struct {
	Account      *accountservice.AccountService
	Subscription *subscriptionservice.SubscriptionService
	CheckIn      *checkinservice.CheckInService
	Member       *memberservice.MemberService
	Reminder     *reminderservice.ReminderService
	Storage      *repository.Storage
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, gate *auth.Gate, s *Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/login", login.New(logger, s.Account).ServeHTTP)
		r.Get("/health", health.New(logger, s.Storage).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(gate, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/register", register.New(logger, s.Account).ServeHTTP)
			r.Post("/users/role", changerole.New(logger, s.Account).ServeHTTP)
			r.Post("/subscriptions", create.New(logger, s.Subscription).ServeHTTP)
			r.Post("/subscriptions/{id}/cancel", cancel.New(logger, s.Subscription).ServeHTTP)
			r.Post("/subscriptions/expire", expire.New(logger, s.Subscription).ServeHTTP)
			r.Post("/checkin", checkin.New(logger, s.CheckIn).ServeHTTP)
			r.Post("/notifications/run", notificationsrun.New(logger, s.Reminder).ServeHTTP)
			r.Post("/members/search", search.New(logger, s.Member).ServeHTTP)
			r.Get("/members/{uid}", profile.New(logger, s.Member).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
