// Package services содержит планировщик напоминаний: выборка кандидатов
// по двум условиям, дедупликация через реестр тикетов и передача
// поставленных тикетов в очередь доставки.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharaf-deen/atom-membership/internal/config"
	"github.com/sharaf-deen/atom-membership/internal/lib/rabbitmq"
	"github.com/sharaf-deen/atom-membership/internal/lib/sl"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

// TicketRepository реестр тикетов уведомлений и выборка кандидатов.
type TicketRepository interface {
	FindTimeBoundedExpiringOn(ctx context.Context, endDate time.Time) ([]*models.ReminderCandidate, error)
	FindSessionPacksBelow(ctx context.Context, threshold int) ([]*models.ReminderCandidate, error)
	InsertTicketIfAbsent(ctx context.Context, t models.NotificationTicket) (bool, error)
	TicketExists(ctx context.Context, dedupeKey string) (bool, error)
	ListQueuedTickets(ctx context.Context, limit int) ([]*models.NotificationTicket, error)
}

// Publisher передаёт поставленный тикет внешнему доставщику.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// TicketMessage сообщение очереди доставки для одного тикета.
// Sender находит тикет по dedupe-ключу и отмечает отправку.
type TicketMessage struct {
	DedupeKey string `json:"dedupe_key"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// ReminderService вычисляет и ставит напоминания.
type ReminderService struct {
	repo      TicketRepository
	publisher Publisher
	cfg       config.Reminder
	log       *slog.Logger
}

// NewReminderService создает новый экземпляр ReminderService.
func NewReminderService(repo TicketRepository, publisher Publisher, cfg config.Reminder, log *slog.Logger) *ReminderService {
	return &ReminderService{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// ComputeDue находит кандидатов на напоминание на дату today и ставит
// тикеты. Дедупликация выполняется вставкой под уникальный индекс по
// dedupe-ключу, поэтому конкурентные прогоны не дублируют тикеты.
// В пробном режиме тикеты не создаются и ничего не публикуется,
// форма итога одинакова для обоих режимов.
func (s *ReminderService) ComputeDue(ctx context.Context, today time.Time, dryRun bool) (models.ReminderSummary, error) {
	var summary models.ReminderSummary

	target := today.AddDate(0, 0, s.cfg.ExpireWarnDays)
	expiring, err := s.repo.FindTimeBoundedExpiringOn(ctx, target)
	if err != nil {
		return summary, err
	}
	lowPacks, err := s.repo.FindSessionPacksBelow(ctx, s.cfg.SessionsLowThreshold)
	if err != nil {
		return summary, err
	}
	s.log.Info("reminder candidates found",
		slog.Int("expire_7d", len(expiring)), slog.Int("sessions_low", len(lowPacks)))

	for _, c := range expiring {
		queued, published, err := s.enqueue(ctx, expireTicket(c, s.cfg.ExpireWarnDays), dryRun)
		if err != nil {
			return summary, err
		}
		if queued {
			summary.Queued.Expire7d++
		}
		if published {
			summary.Sent++
		}
	}
	for _, c := range lowPacks {
		queued, published, err := s.enqueue(ctx, sessionsTicket(c), dryRun)
		if err != nil {
			return summary, err
		}
		if queued {
			summary.Queued.SessionsLow++
		}
		if published {
			summary.Sent++
		}
	}

	return summary, nil
}

// requeueLimit максимум застрявших тикетов за один проход.
const requeueLimit = 100

// RequeuePending повторно публикует тикеты, оставшиеся в статусе queued:
// например, когда публикация не удалась при постановке. Доставщик
// пропускает уже отправленные тикеты, поэтому повторная публикация
// безопасна. Возвращает число переданных тикетов.
func (s *ReminderService) RequeuePending(ctx context.Context) (int, error) {
	tickets, err := s.repo.ListQueuedTickets(ctx, requeueLimit)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, t := range tickets {
		msg := TicketMessage{
			DedupeKey: t.DedupeKey,
			Email:     t.Email,
			Subject:   t.Subject,
			Body:      t.Body,
		}
		if err := s.publisher.Publish(rabbitmq.RemindersRoutingKey, msg); err != nil {
			s.log.Error("failed to republish ticket", sl.Err(err), slog.String("dedupe_key", t.DedupeKey))
			continue
		}
		published++
	}
	if published > 0 {
		s.log.Info("pending tickets republished", slog.Int("count", published))
	}
	return published, nil
}

// enqueue ставит тикет, если его dedupe-ключа ещё нет.
// В пробном режиме только проверяет ключ, ничего не создавая.
// Второй результат — передан ли тикет очереди доставки.
func (s *ReminderService) enqueue(ctx context.Context, t models.NotificationTicket, dryRun bool) (bool, bool, error) {
	if dryRun {
		exists, err := s.repo.TicketExists(ctx, t.DedupeKey)
		if err != nil {
			return false, false, err
		}
		return !exists, false, nil
	}

	created, err := s.repo.InsertTicketIfAbsent(ctx, t)
	if err != nil {
		return false, false, err
	}
	if !created {
		return false, false, nil
	}

	msg := TicketMessage{
		DedupeKey: t.DedupeKey,
		Email:     t.Email,
		Subject:   t.Subject,
		Body:      t.Body,
	}
	if err := s.publisher.Publish(rabbitmq.RemindersRoutingKey, msg); err != nil {
		// Тикет остаётся queued, его подберёт следующий прогон доставки.
		s.log.Error("failed to publish ticket", sl.Err(err), slog.String("dedupe_key", t.DedupeKey))
		return true, false, nil
	}
	return true, true, nil
}

// expireTicket собирает тикет о скором истечении календарного абонемента.
// Маркер в dedupe-ключе — дата окончания: продлённый абонемент с новой
// датой снова получит напоминание. Текст письма следует настроенному
// окну предупреждения, а не фиксированному числу дней.
func expireTicket(c *models.ReminderCandidate, warnDays int) models.NotificationTicket {
	end := c.EndDate.Format("2006-01-02")
	return models.NotificationTicket{
		MemberUID:      c.MemberUID,
		SubscriptionID: c.SubscriptionID,
		Kind:           models.TicketKindExpire7d,
		DedupeKey:      fmt.Sprintf("%s:%s:%s", models.TicketKindExpire7d, c.SubscriptionID, end),
		Email:          c.Email,
		Subject:        fmt.Sprintf("Your membership expires in %d days", warnDays),
		Body: fmt.Sprintf("Hello %s,\n\n"+
			"This is a friendly reminder that your membership will expire in %d days (on %s).\n"+
			"If you need any help renewing, just reply to this email or visit the front desk.\n\n"+
			"Thank you!", c.FullName(), warnDays, end),
	}
}

// sessionsTicket собирает тикет о низком остатке занятий.
// Маркер в dedupe-ключе — текущий остаток: после пополнения пакета
// и нового спуска к порогу напоминание будет поставлено снова.
func sessionsTicket(c *models.ReminderCandidate) models.NotificationTicket {
	left := 0
	if c.RemainingClasses != nil {
		left = *c.RemainingClasses
	}
	return models.NotificationTicket{
		MemberUID:      c.MemberUID,
		SubscriptionID: c.SubscriptionID,
		Kind:           models.TicketKindSessionsLow,
		DedupeKey:      fmt.Sprintf("%s:%s:%d", models.TicketKindSessionsLow, c.SubscriptionID, left),
		Email:          c.Email,
		Subject:        fmt.Sprintf("Only %d session(s) left", left),
		Body: fmt.Sprintf("Hello %s,\n\n"+
			"You have only %d session(s) remaining on your current pack.\n"+
			"If you want to top up or have questions, reply to this email or visit the front desk.\n\n"+
			"See you soon!", c.FullName(), left),
	}
}
