package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sharaf-deen/atom-membership/internal/models"
)

// InsertTicketIfAbsent ставит тикет уведомления в очередь, если тикета
// с таким dedupe-ключом ещё нет. Уникальный индекс по dedupe_key делает
// вставку безопасной при конкурентных прогонах планировщика: гонка
// чтение-запись невозможна. Возвращает true, если тикет создан.
func (s *Storage) InsertTicketIfAbsent(ctx context.Context, t models.NotificationTicket) (bool, error) {
	const op = "storage.InsertTicketIfAbsent"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO notification_tickets
			      (member_uid, subscription_id, kind, dedupe_key, email, subject, body, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, 'queued')
			  ON CONFLICT (dedupe_key) DO NOTHING`
	result, err := s.DB.ExecContext(ctx, query,
		t.MemberUID, t.SubscriptionID, t.Kind, t.DedupeKey, t.Email, t.Subject, t.Body)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// TicketExists сообщает, существует ли тикет с данным dedupe-ключом.
func (s *Storage) TicketExists(ctx context.Context, dedupeKey string) (bool, error) {
	const op = "storage.TicketExists"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS (SELECT 1 FROM notification_tickets WHERE dedupe_key = $1)`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, dedupeKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// GetTicketByDedupeKey возвращает тикет по dedupe-ключу, nil если не найден.
func (s *Storage) GetTicketByDedupeKey(ctx context.Context, dedupeKey string) (*models.NotificationTicket, error) {
	const op = "storage.GetTicketByDedupeKey"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, member_uid, subscription_id, kind, dedupe_key, email, subject, body,
			      status, queued_at, sent_at, last_error
			  FROM notification_tickets
			  WHERE dedupe_key = $1`
	t, err := scanTicket(s.DB.QueryRowContext(ctx, query, dedupeKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// ListQueuedTickets возвращает тикеты в статусе queued.
func (s *Storage) ListQueuedTickets(ctx context.Context, limit int) ([]*models.NotificationTicket, error) {
	const op = "storage.ListQueuedTickets"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, member_uid, subscription_id, kind, dedupe_key, email, subject, body,
			      status, queued_at, sent_at, last_error
			  FROM notification_tickets
			  WHERE status = 'queued'
			  ORDER BY queued_at
			  LIMIT $1`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.NotificationTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkTicketSent отмечает тикет отправленным после подтверждённой доставки.
func (s *Storage) MarkTicketSent(ctx context.Context, id string, at time.Time) error {
	const op = "storage.MarkTicketSent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE notification_tickets
			  SET status = 'sent', sent_at = $2, last_error = NULL
			  WHERE id = $1 AND status = 'queued'`
	_, err := s.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkTicketError сохраняет ошибку доставки, тикет остаётся в очереди.
func (s *Storage) MarkTicketError(ctx context.Context, id string, reason string) error {
	const op = "storage.MarkTicketError"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE notification_tickets
			  SET last_error = $2
			  WHERE id = $1`
	_, err := s.DB.ExecContext(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func scanTicket(row interface{ Scan(...any) error }) (*models.NotificationTicket, error) {
	var t models.NotificationTicket
	var sentAt sql.NullTime
	var lastError sql.NullString
	if err := row.Scan(&t.ID, &t.MemberUID, &t.SubscriptionID, &t.Kind, &t.DedupeKey,
		&t.Email, &t.Subject, &t.Body, &t.Status, &t.QueuedAt, &sentAt, &lastError); err != nil {
		return nil, err
	}
	if sentAt.Valid {
		t.SentAt = &sentAt.Time
	}
	if lastError.Valid {
		t.LastError = &lastError.String
	}
	return &t, nil
}
