package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sharaf-deen/atom-membership/internal/models"
)

// FindTimeBoundedExpiringOn находит активные календарные абонементы,
// истекающие ровно в указанную дату, вместе с контактами владельцев.
// Сравнение строго на равенство: триггер одноразовый, а не «последняя неделя».
func (s *Storage) FindTimeBoundedExpiringOn(ctx context.Context, endDate time.Time) ([]*models.ReminderCandidate, error) {
	const op = "storage.FindTimeBoundedExpiringOn"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT s.id, s.member_uid, s.plan_kind, s.end_date, s.remaining_classes,
			      u.email, u.first_name, u.last_name
			  FROM subscriptions s
			  JOIN users u ON u.uid = s.member_uid
			  WHERE s.status = 'active'
			    AND s.plan_kind <> 'pay_per_class'
			    AND s.end_date = $1`
	return s.queryCandidates(ctx, op, query, endDate)
}

// FindSessionPacksBelow находит активные пакеты занятий с остатком
// не выше порога, вместе с контактами владельцев.
func (s *Storage) FindSessionPacksBelow(ctx context.Context, threshold int) ([]*models.ReminderCandidate, error) {
	const op = "storage.FindSessionPacksBelow"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT s.id, s.member_uid, s.plan_kind, s.end_date, s.remaining_classes,
			      u.email, u.first_name, u.last_name
			  FROM subscriptions s
			  JOIN users u ON u.uid = s.member_uid
			  WHERE s.status = 'active'
			    AND s.plan_kind = 'pay_per_class'
			    AND s.remaining_classes <= $1`
	return s.queryCandidates(ctx, op, query, threshold)
}

func (s *Storage) queryCandidates(ctx context.Context, op, query string, args ...any) ([]*models.ReminderCandidate, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ReminderCandidate
	for rows.Next() {
		var c models.ReminderCandidate
		var endDate sql.NullTime
		var remaining sql.NullInt64
		if err := rows.Scan(&c.SubscriptionID, &c.MemberUID, &c.PlanKind, &endDate, &remaining,
			&c.Email, &c.FirstName, &c.LastName); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if endDate.Valid {
			c.EndDate = &endDate.Time
		}
		if remaining.Valid {
			n := int(remaining.Int64)
			c.RemainingClasses = &n
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
