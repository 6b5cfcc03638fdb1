// Package services содержит бизнес-логику жизненного цикла абонементов:
// создание с выводом границ плана, отмену, списание занятий и пакетное
// истечение.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/lib/dates"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

// DefaultPayPerClassCount остаток занятий пакета по умолчанию.
const DefaultPayPerClassCount = 10

// SubscriptionRepository определяет методы для работы с абонементами в хранилище.
type SubscriptionRepository interface {
	// CreateSubscription добавляет новый абонемент и возвращает его ID.
	CreateSubscription(ctx context.Context, sub models.Subscription) (string, error)
	// ReadSubscription возвращает абонемент по ID, nil если не найден.
	ReadSubscription(ctx context.Context, id string) (*models.Subscription, error)
	// FindActiveSubscription возвращает действующий абонемент члена клуба.
	FindActiveSubscription(ctx context.Context, memberUID string) (*models.Subscription, error)
	// FindLastSubscription возвращает последний абонемент независимо от статуса.
	FindLastSubscription(ctx context.Context, memberUID string) (*models.Subscription, error)
	// CancelSubscription переводит активный абонемент в canceled.
	CancelSubscription(ctx context.Context, id string, at time.Time) (int, error)
	// ExpireTimeBounded истекает календарные абонементы с прошедшей датой окончания.
	ExpireTimeBounded(ctx context.Context, today time.Time) (int, error)
	// ExpireExhausted истекает пакеты занятий с нулевым остатком.
	ExpireExhausted(ctx context.Context) (int, error)
	// ConsumeClass списывает одно занятие условным обновлением.
	ConsumeClass(ctx context.Context, id string) (*models.Subscription, bool, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// SubscriptionService реализует машину состояний абонемента.
// Единственный источник истины о состоянии абонемента для чек-ина
// и планировщика напоминаний.
type SubscriptionService struct {
	repo  SubscriptionRepository
	cache Cache
	log   *slog.Logger
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, cache Cache, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

func lastSubCacheKey(memberUID string) string {
	return fmt.Sprintf("subscription:last:%s", memberUID)
}

// Create создает новый абонемент. Дата начала по умолчанию — today,
// дата окончания выводится из вида плана календарной арифметикой
// с прижатием дня. Действующий абонемент члена клуба, если есть,
// отменяется: активным может быть только один.
func (s *SubscriptionService) Create(ctx context.Context, req models.DummySubscription, today time.Time) (string, error) {
	if req.MemberUID == "" {
		return "", domain.ErrMissingMember
	}
	kind := models.PlanKind(req.PlanKind)
	if !kind.Valid() {
		return "", domain.WithDetail(domain.ErrInvalidPlan, fmt.Sprintf("unknown plan kind %q", req.PlanKind))
	}

	startDate := dates.DateOnly(today)
	if req.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return "", domain.WithDetail(domain.ErrInvalidInput, "start_date must be in format 2006-01-02")
		}
		startDate = dates.DateOnly(parsed)
	}

	sub := models.Subscription{
		MemberUID: req.MemberUID,
		PlanKind:  kind,
		Status:    models.StatusActive,
		StartDate: startDate,
	}

	if kind == models.PlanPayPerClass {
		remaining := DefaultPayPerClassCount
		if req.RemainingClasses != nil {
			if *req.RemainingClasses <= 0 {
				return "", domain.WithDetail(domain.ErrInvalidInput, "remaining_classes must be positive")
			}
			remaining = *req.RemainingClasses
		}
		sub.RemainingClasses = &remaining
	} else {
		var endDate time.Time
		if req.EndDate != "" {
			parsed, err := time.Parse("2006-01-02", req.EndDate)
			if err != nil {
				return "", domain.WithDetail(domain.ErrInvalidInput, "end_date must be in format 2006-01-02")
			}
			endDate = dates.DateOnly(parsed)
		} else {
			switch kind {
			case models.PlanMonthly:
				endDate = dates.AddMonthsClamped(startDate, 1)
			case models.PlanQuarterly:
				endDate = dates.AddMonthsClamped(startDate, 3)
			case models.PlanYearly:
				endDate = dates.AddYearsClamped(startDate, 1)
			}
		}
		sub.EndDate = &endDate
	}

	// Активный абонемент может быть только один: действующий отменяется.
	current, err := s.repo.FindActiveSubscription(ctx, req.MemberUID)
	if err != nil {
		return "", err
	}
	if current != nil {
		if _, err := s.repo.CancelSubscription(ctx, current.ID, today); err != nil {
			return "", err
		}
		s.log.Info("superseded active subscription",
			slog.String("member_uid", req.MemberUID), slog.String("old_id", current.ID))
	}

	id, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		return "", err
	}
	s.log.Info("created new subscription", slog.String("id", id),
		slog.String("member_uid", req.MemberUID), slog.String("plan_kind", string(kind)))

	if err := s.cache.Invalidate(lastSubCacheKey(req.MemberUID)); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("member_uid", req.MemberUID), slog.Any("err", err))
	}
	return id, nil
}

// Cancel переводит абонемент в canceled. Терминальные состояния
// не изменяются: для них возвращается SUBSCRIPTION_NOT_ACTIVE.
func (s *SubscriptionService) Cancel(ctx context.Context, id string, at time.Time) error {
	existing, err := s.repo.ReadSubscription(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrNoSubscription
	}

	count, err := s.repo.CancelSubscription(ctx, id, at)
	if err != nil {
		return err
	}
	if count == 0 {
		// Строка существовала, но под условие не подошла: терминальное состояние.
		return domain.WithDetail(domain.ErrSubscriptionNotActive, "subscription is "+string(existing.Status))
	}
	if err := s.cache.Invalidate(lastSubCacheKey(existing.MemberUID)); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("member_uid", existing.MemberUID), slog.Any("err", err))
	}
	s.log.Info("canceled subscription", slog.String("id", id))
	return nil
}

// RunExpirySweep выполняет пакетное истечение абонементов на дату today.
// Идемпотентен: оба перехода ограничены условием status = 'active',
// повторный или конкурентный прогон не находит новых строк.
func (s *SubscriptionService) RunExpirySweep(ctx context.Context, today time.Time) (models.SweepSummary, error) {
	day := dates.DateOnly(today)

	timeExpired, err := s.repo.ExpireTimeBounded(ctx, day)
	if err != nil {
		return models.SweepSummary{}, err
	}
	sessionsExpired, err := s.repo.ExpireExhausted(ctx)
	if err != nil {
		return models.SweepSummary{}, err
	}

	summary := models.SweepSummary{
		TimeExpired:     timeExpired,
		SessionsExpired: sessionsExpired,
	}
	s.log.Info("expiry sweep finished",
		slog.Int("time_expired", summary.TimeExpired),
		slog.Int("sessions_expired", summary.SessionsExpired))
	return summary, nil
}

// ConsumeOneClass списывает одно занятие с пакета. Для календарных видов
// и неактивных абонементов возвращает NOT_CONSUMABLE. Проигрыш
// конкурентного списания возвращается как CONFLICT: вызывающий обязан
// перечитать состояние, повторить не более одного раза.
func (s *SubscriptionService) ConsumeOneClass(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	if sub.PlanKind != models.PlanPayPerClass || sub.Status != models.StatusActive {
		return nil, domain.ErrNotConsumable
	}
	updated, ok, err := s.repo.ConsumeClass(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrConflict
	}
	if err := s.cache.Invalidate(lastSubCacheKey(sub.MemberUID)); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("member_uid", sub.MemberUID), slog.Any("err", err))
	}
	return updated, nil
}

// CurrentForMember возвращает действующий абонемент члена клуба либо nil.
func (s *SubscriptionService) CurrentForMember(ctx context.Context, memberUID string) (*models.Subscription, error) {
	return s.repo.FindActiveSubscription(ctx, memberUID)
}

// LastForMember возвращает последний абонемент члена клуба, используя кеш.
// Используется поиском на стойке регистрации; путь чек-ина читает базу напрямую.
func (s *SubscriptionService) LastForMember(ctx context.Context, memberUID string) (*models.Subscription, error) {
	var cached *models.Subscription
	key := lastSubCacheKey(memberUID)
	found, err := s.cache.Get(key, &cached)
	if err != nil {
		s.log.Warn("cache read failed", slog.String("key", key), slog.Any("err", err))
	}
	if found {
		return cached, nil
	}
	result, err := s.repo.FindLastSubscription(ctx, memberUID)
	if err != nil {
		return nil, err
	}
	if result != nil {
		if err := s.cache.Set(key, result, 5*time.Minute); err != nil {
			s.log.Warn("failed to add to cache", slog.String("key", key), slog.Any("err", err))
		}
	}
	return result, nil
}
