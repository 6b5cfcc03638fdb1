// Package membership собирает основной HTTP-сервис клуба: хранилище,
// кэш, очередь уведомлений и маршруты API.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/sharaf-deen/atom-membership/internal/auth"
	"github.com/sharaf-deen/atom-membership/internal/cache"
	"github.com/sharaf-deen/atom-membership/internal/config"
	"github.com/sharaf-deen/atom-membership/internal/lib/jwt"
	"github.com/sharaf-deen/atom-membership/internal/lib/rabbitmq"
	"github.com/sharaf-deen/atom-membership/internal/migrations"
	accountservice "github.com/sharaf-deen/atom-membership/internal/services/account"
	checkinservice "github.com/sharaf-deen/atom-membership/internal/services/checkin"
	memberservice "github.com/sharaf-deen/atom-membership/internal/services/member"
	reminderservice "github.com/sharaf-deen/atom-membership/internal/services/reminder"
	subscriptionservice "github.com/sharaf-deen/atom-membership/internal/services/subscription"
	"github.com/sharaf-deen/atom-membership/internal/storage/repository"
)

// App представляет HTTP-сервис членства.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New создает приложение: подключает инфраструктуру и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQConnection, 10, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetReminderQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	gate := auth.NewGate(jwtMaker)

	subscriptionService := subscriptionservice.NewSubscriptionService(db, cacheRedis, logger)
	accountService := accountservice.NewAccountService(db, jwtMaker, logger)
	checkinService := checkinservice.NewCheckInService(db, subscriptionService, logger)
	memberService := memberservice.NewMemberService(db, subscriptionService, logger)
	reminderService := reminderservice.NewReminderService(db, &rabbitmq.ChannelPublisher{Ch: ch}, cfg.Reminder, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, gate, &Services{
		Account:      accountService,
		Subscription: subscriptionService,
		CheckIn:      checkinService,
		Member:       memberService,
		Reminder:     reminderService,
		Storage:      db,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и корректно завершает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.ch.Close(); cerr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", cerr))
		}
		if cerr := a.conn.Close(); cerr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", cerr))
		}
		_ = a.db.DB.Close()
		return err
	}
}
