// Package sender содержит процесс доставки напоминаний: читает тикеты
// из очереди и отправляет письма по SMTP.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/sharaf-deen/atom-membership/internal/config"
	"github.com/sharaf-deen/atom-membership/internal/lib/rabbitmq"
	"github.com/sharaf-deen/atom-membership/internal/lib/smtp"
	senderservice "github.com/sharaf-deen/atom-membership/internal/services/sender"
	"github.com/sharaf-deen/atom-membership/internal/storage/repository"
)

// App представляет приложение доставки напоминаний.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New создает новый экземпляр приложения доставки.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
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

	transport := smtp.NewTransport(cfg.SMTP, logger)
	senderService := senderservice.NewSenderService(transport, db, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителя очереди напоминаний до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	handler := func(body []byte) error {
		return a.senderService.SendReminder(ctx, body)
	}

	for _, q := range rabbitmq.GetReminderQueues() {
		if err := rabbitmq.ConsumerMessage(ctx, a.ch, q.QueueName, handler); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), slog.Any("err", err))
			return err
		}
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
