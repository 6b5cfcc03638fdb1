// Package expiryworker содержит фоновый процесс ежедневной сверки
// абонементов и постановки напоминаний в очередь.
package expiryworker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/sharaf-deen/atom-membership/internal/cache"
	"github.com/sharaf-deen/atom-membership/internal/config"
	"github.com/sharaf-deen/atom-membership/internal/lib/dates"
	"github.com/sharaf-deen/atom-membership/internal/lib/rabbitmq"
	"github.com/sharaf-deen/atom-membership/internal/lib/sl"
	reminderservice "github.com/sharaf-deen/atom-membership/internal/services/reminder"
	subscriptionservice "github.com/sharaf-deen/atom-membership/internal/services/subscription"
	"github.com/sharaf-deen/atom-membership/internal/storage/repository"
)

// App представляет приложение фоновой сверки.
type App struct {
	subscriptionService *subscriptionservice.SubscriptionService
	reminderService     *reminderservice.ReminderService
	interval            time.Duration
	conn                *amqp.Connection
	ch                  *amqp.Channel
	db                  *repository.Storage
	logger              *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		if err := db.CheckDatabaseReady(ctx); err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения сверки.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQConnection, 10, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetReminderQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(ctx, db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	subscriptionService := subscriptionservice.NewSubscriptionService(db, cacheRedis, logger)
	reminderService := reminderservice.NewReminderService(db, &rabbitmq.ChannelPublisher{Ch: ch}, cfg.Reminder, logger)

	return &App{
		subscriptionService: subscriptionService,
		reminderService:     reminderService,
		interval:            cfg.SweepInterval,
		conn:                conn,
		ch:                  ch,
		db:                  db,
		logger:              logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает периодическую сверку до отмены контекста.
// Повторный прогон за тот же день безопасен: просроченные абонементы
// уже переведены, а тикеты напоминаний защищены ключом дедупликации.
func (a *App) Run(ctx context.Context) error {
	a.runOnce(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutting down expiry worker")
			closeResources(a.ch, a.conn, a.logger)
			_ = a.db.DB.Close()
			return nil
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

func (a *App) runOnce(ctx context.Context) {
	today := dates.DateOnly(time.Now().UTC())

	summary, err := a.subscriptionService.RunExpirySweep(ctx, today)
	if err != nil {
		a.logger.Error("expiry sweep failed", sl.Err(err))
	} else {
		a.logger.Info("expiry sweep finished",
			slog.Int("time_expired", summary.TimeExpired),
			slog.Int("sessions_expired", summary.SessionsExpired))
	}

	reminders, err := a.reminderService.ComputeDue(ctx, today, false)
	if err != nil {
		a.logger.Error("reminder run failed", sl.Err(err))
		return
	}
	a.logger.Info("reminder run finished",
		slog.Int("queued_expire_7d", reminders.Queued.Expire7d),
		slog.Int("queued_sessions_low", reminders.Queued.SessionsLow),
		slog.Int("sent", reminders.Sent))

	// Тикеты, не опубликованные при постановке, передаются доставке повторно.
	republished, err := a.reminderService.RequeuePending(ctx)
	if err != nil {
		a.logger.Error("requeue of pending tickets failed", sl.Err(err))
		return
	}
	if republished > 0 {
		a.logger.Info("pending tickets handed to delivery", slog.Int("count", republished))
	}
}
