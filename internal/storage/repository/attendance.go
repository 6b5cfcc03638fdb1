package repository

import (
	"context"
	"fmt"

	"github.com/sharaf-deen/atom-membership/internal/models"
)

// InsertAttendance записывает факт посещения и возвращает ID записи.
// Запись неизменяемая: методов обновления или удаления нет.
func (s *Storage) InsertAttendance(ctx context.Context, rec models.AttendanceRecord) (string, error) {
	const op = "storage.InsertAttendance"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO attendance (member_uid, subscription_id, attended_at, source, scanned_by)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		rec.MemberUID, rec.SubscriptionID, rec.AttendedAt, rec.Source, rec.ScannedBy).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// CountAttendanceForMember возвращает количество посещений члена клуба.
func (s *Storage) CountAttendanceForMember(ctx context.Context, memberUID string) (int, error) {
	const op = "storage.CountAttendanceForMember"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM attendance WHERE member_uid = $1`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, memberUID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
