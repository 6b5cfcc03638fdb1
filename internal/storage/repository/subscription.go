package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sharaf-deen/atom-membership/internal/models"
)

const subscriptionColumns = `id, member_uid, plan_kind, status, start_date, end_date,
			      remaining_classes, created_at, canceled_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var s models.Subscription
	var endDate, canceledAt sql.NullTime
	var remaining sql.NullInt64
	if err := row.Scan(&s.ID, &s.MemberUID, &s.PlanKind, &s.Status, &s.StartDate,
		&endDate, &remaining, &s.CreatedAt, &canceledAt); err != nil {
		return nil, err
	}
	if endDate.Valid {
		s.EndDate = &endDate.Time
	}
	if canceledAt.Valid {
		s.CanceledAt = &canceledAt.Time
	}
	if remaining.Valid {
		n := int(remaining.Int64)
		s.RemainingClasses = &n
	}
	return &s, nil
}

// CreateSubscription вставляет новый абонемент и возвращает его ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (string, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (member_uid, plan_kind, status, start_date,
			      end_date, remaining_classes)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		sub.MemberUID, sub.PlanKind, sub.Status, sub.StartDate, sub.EndDate,
		sub.RemainingClasses).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ReadSubscription возвращает абонемент по его ID, nil если не найден.
func (s *Storage) ReadSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.ReadSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions WHERE id = $1`
	result, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindActiveSubscription возвращает действующий абонемент члена клуба.
// Календарные абонементы имеют приоритет над пакетами занятий,
// пакеты с нулевым остатком не выбираются.
func (s *Storage) FindActiveSubscription(ctx context.Context, memberUID string) (*models.Subscription, error) {
	const op = "storage.FindActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE member_uid = $1
			    AND status = 'active'
			    AND (plan_kind <> 'pay_per_class' OR remaining_classes > 0)
			  ORDER BY (plan_kind = 'pay_per_class'), end_date DESC NULLS LAST
			  LIMIT 1`
	result, err := scanSubscription(s.DB.QueryRowContext(ctx, query, memberUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindLastSubscription возвращает последний по дате начала абонемент
// члена клуба независимо от статуса, nil если абонементов не было.
func (s *Storage) FindLastSubscription(ctx context.Context, memberUID string) (*models.Subscription, error) {
	const op = "storage.FindLastSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE member_uid = $1
			  ORDER BY start_date DESC, created_at DESC
			  LIMIT 1`
	result, err := scanSubscription(s.DB.QueryRowContext(ctx, query, memberUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CancelSubscription переводит активный абонемент в canceled.
// Терминальные состояния не изменяются: количество затронутых строк 0.
func (s *Storage) CancelSubscription(ctx context.Context, id string, at time.Time) (int, error) {
	const op = "storage.CancelSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = 'canceled', canceled_at = $2
			  WHERE id = $1 AND status = 'active'`
	result, err := s.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ExpireTimeBounded переводит в expired календарные абонементы, чья дата
// окончания уже прошла. Условие status = 'active' делает повторный прогон
// пустой операцией: уже истёкшие строки не затрагиваются.
func (s *Storage) ExpireTimeBounded(ctx context.Context, today time.Time) (int, error) {
	const op = "storage.ExpireTimeBounded"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = 'expired'
			  WHERE status = 'active'
			    AND plan_kind <> 'pay_per_class'
			    AND end_date < $1`
	result, err := s.DB.ExecContext(ctx, query, today)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ExpireExhausted переводит в expired пакеты занятий с нулевым остатком.
func (s *Storage) ExpireExhausted(ctx context.Context) (int, error) {
	const op = "storage.ExpireExhausted"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = 'expired'
			  WHERE status = 'active'
			    AND plan_kind = 'pay_per_class'
			    AND remaining_classes <= 0`
	result, err := s.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ConsumeClass списывает одно занятие с пакета одним условным UPDATE.
// Если остаток достигает нуля, статус переключается на expired в той же
// строке. Возвращает снимок после списания; ок=false, если строка не
// подошла под предусловие (проигрыш конкурентного списания или пакет
// уже не активен).
func (s *Storage) ConsumeClass(ctx context.Context, id string) (*models.Subscription, bool, error) {
	const op = "storage.ConsumeClass"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET remaining_classes = remaining_classes - 1,
			      status = CASE WHEN remaining_classes - 1 <= 0 THEN 'expired' ELSE status END
			  WHERE id = $1
			    AND status = 'active'
			    AND plan_kind = 'pay_per_class'
			    AND remaining_classes > 0
			  RETURNING ` + subscriptionColumns
	result, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return result, true, nil
}

// ListSubscriptions возвращает абонементы члена клуба с пагинацией.
func (s *Storage) ListSubscriptions(ctx context.Context, memberUID string, limit, offset int) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE member_uid = $1
			  ORDER BY start_date DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, memberUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		item, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
