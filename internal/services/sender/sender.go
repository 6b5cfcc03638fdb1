// Package services содержит доставку напоминаний: потребление тикетов
// из очереди, отправку письма по SMTP и отметку о доставке.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sharaf-deen/atom-membership/internal/lib/sl"
	"github.com/sharaf-deen/atom-membership/internal/lib/smtp"
	"github.com/sharaf-deen/atom-membership/internal/models"
	reminderservice "github.com/sharaf-deen/atom-membership/internal/services/reminder"
)

// TicketRegistry реестр тикетов для идемпотентной отметки доставки.
type TicketRegistry interface {
	GetTicketByDedupeKey(ctx context.Context, dedupeKey string) (*models.NotificationTicket, error)
	MarkTicketSent(ctx context.Context, id string, at time.Time) error
	MarkTicketError(ctx context.Context, id string, reason string) error
}

// SenderService отправляет письма напоминаний.
type SenderService struct {
	transport smtp.TransportInterface
	registry  TicketRegistry
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport smtp.TransportInterface, registry TicketRegistry, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		registry:  registry,
		log:       log,
	}
}

// SendReminder обрабатывает одно сообщение очереди напоминаний.
// Уже отправленный тикет повторно не доставляется: редоставка сообщения
// брокером не приводит к двойному письму.
func (s *SenderService) SendReminder(ctx context.Context, body []byte) error {
	var message reminderservice.TicketMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	ticket, err := s.registry.GetTicketByDedupeKey(ctx, message.DedupeKey)
	if err != nil {
		return err
	}
	if ticket == nil {
		s.log.Warn("ticket not found for message", slog.String("dedupe_key", message.DedupeKey))
		return nil
	}
	if ticket.Status == models.TicketSent {
		s.log.Info("ticket already sent, skipping", slog.String("dedupe_key", message.DedupeKey))
		return nil
	}

	if err := s.sendEmail([]string{ticket.Email}, ticket.Subject, ticket.Body); err != nil {
		if markErr := s.registry.MarkTicketError(ctx, ticket.ID, err.Error()); markErr != nil {
			s.log.Error("failed to record delivery error", sl.Err(markErr))
		}
		return err
	}

	if err := s.registry.MarkTicketSent(ctx, ticket.ID, time.Now().UTC()); err != nil {
		return err
	}
	s.log.Info("reminder delivered", slog.String("dedupe_key", ticket.DedupeKey),
		slog.String("kind", ticket.Kind))
	return nil
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", sl.Err(err))
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
