package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sharaf-deen/atom-membership/internal/models"
)

const memberColumns = `uid, email, password_hash, first_name, last_name, role, qr_code, created_at`

func scanMember(row interface{ Scan(...any) error }) (*models.Member, error) {
	var m models.Member
	if err := row.Scan(&m.UID, &m.Email, &m.PasswordHash, &m.FirstName, &m.LastName,
		&m.Role, &m.QRCode, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// RegisterMember сохраняет новую учётную запись и возвращает её UID.
func (s *Storage) RegisterMember(ctx context.Context, m models.Member) (string, error) {
	const op = "storage.RegisterMember"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	// qr_code вычисляемая колонка 'atom:' || uid, вставлять её нельзя.
	var newUID string
	query := `INSERT INTO users (email, password_hash, first_name, last_name, role)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid`
	if err := s.DB.QueryRowContext(ctx, query,
		m.Email, m.PasswordHash, m.FirstName, m.LastName, m.Role).Scan(&newUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetMember возвращает учётную запись по UID, nil если не найдена.
func (s *Storage) GetMember(ctx context.Context, uid string) (*models.Member, error) {
	const op = "storage.GetMember"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + memberColumns + `
			  FROM users
			  WHERE uid = $1`
	m, err := scanMember(s.DB.QueryRowContext(ctx, query, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// GetMemberByEmail возвращает учётную запись по почте, nil если не найдена.
func (s *Storage) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	const op = "storage.GetMemberByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + memberColumns + `
			  FROM users
			  WHERE email = $1`
	m, err := scanMember(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// GetMemberByQRCode находит учётную запись по содержимому QR-кода.
func (s *Storage) GetMemberByQRCode(ctx context.Context, code string) (*models.Member, error) {
	const op = "storage.GetMemberByQRCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + memberColumns + `
			  FROM users
			  WHERE qr_code = $1`
	m, err := scanMember(s.DB.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// SearchMembers ищет членов клуба по точной почте либо подстроке имени.
func (s *Storage) SearchMembers(ctx context.Context, email, query string, limit int) ([]*models.Member, error) {
	const op = "storage.SearchMembers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	q := `SELECT ` + memberColumns + `
		  FROM users
		  WHERE ($1 = '' OR email = $1)
		    AND ($2 = '' OR first_name ILIKE '%' || $2 || '%' OR last_name ILIKE '%' || $2 || '%')
		  ORDER BY last_name, first_name
		  LIMIT $3`
	rows, err := s.DB.QueryContext(ctx, q, email, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateMemberRole изменяет роль учётной записи.
// Возвращает количество изменённых строк.
func (s *Storage) UpdateMemberRole(ctx context.Context, uid, role string) (int, error) {
	const op = "storage.UpdateMemberRole"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET role = $1
			  WHERE uid = $2`
	result, err := s.DB.ExecContext(ctx, query, role, uid)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
