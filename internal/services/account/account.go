// Package services содержит логику учётных записей: регистрацию,
// вход и смену роли.
package services

import (
	"context"
	"log/slog"

	"github.com/sharaf-deen/atom-membership/internal/auth"
	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/lib/jwt"
	"github.com/sharaf-deen/atom-membership/internal/lib/password"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

// MemberRepository контракт для работы с учётными записями в базе данных.
type MemberRepository interface {
	// RegisterMember сохраняет новую учётную запись и возвращает её UID.
	RegisterMember(ctx context.Context, m models.Member) (string, error)
	// GetMember возвращает учётную запись по UID, nil если не найдена.
	GetMember(ctx context.Context, uid string) (*models.Member, error)
	// GetMemberByEmail возвращает учётную запись по почте, nil если не найдена.
	GetMemberByEmail(ctx context.Context, email string) (*models.Member, error)
	// UpdateMemberRole изменяет роль учётной записи.
	UpdateMemberRole(ctx context.Context, uid, role string) (int, error)
}

// AccountService отвечает за регистрацию, вход и управление ролями.
type AccountService struct {
	repo     MemberRepository
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// NewAccountService создает новый экземпляр AccountService.
func NewAccountService(repo MemberRepository, jwtMaker jwt.Maker, log *slog.Logger) *AccountService {
	return &AccountService{
		repo:     repo,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Register создает учётную запись с хэшированием пароля.
// Роль по умолчанию member; неизвестная роль отклоняется.
func (s *AccountService) Register(ctx context.Context, req models.DummyRegister) (string, error) {
	role := auth.RoleMember
	if req.Role != "" {
		role = auth.Role(req.Role)
		if !role.Valid() {
			return "", domain.WithDetail(domain.ErrInvalidInput, "unknown role "+req.Role)
		}
	}

	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return "", err
	}
	m := models.Member{
		Email:        req.Email,
		PasswordHash: hashed,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         string(role),
	}
	uid, err := s.repo.RegisterMember(ctx, m)
	if err != nil {
		return "", err
	}
	s.log.Info("registered new account", slog.String("uid", uid), slog.String("role", string(role)))
	return uid, nil
}

// Login проверяет пароль и выпускает токен сессии.
func (s *AccountService) Login(ctx context.Context, email, rawPassword string) (string, error) {
	m, err := s.repo.GetMemberByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", domain.WithDetail(domain.ErrNotAuthenticated, "invalid credentials")
	}
	if err := password.CompareHash(m.PasswordHash, rawPassword); err != nil {
		return "", domain.WithDetail(domain.ErrNotAuthenticated, "invalid credentials")
	}
	return s.jwtMaker.GenerateToken(m.UID, m.Email, m.Role)
}

// ChangeRole изменяет роль учётной записи. Смена ролей доступна
// администраторам; выдача административной роли — только super_admin.
func (s *AccountService) ChangeRole(ctx context.Context, p *auth.Principal, targetUID, newRole string) error {
	role := auth.Role(newRole)
	if !role.Valid() {
		return domain.WithDetail(domain.ErrInvalidInput, "unknown role "+newRole)
	}
	op := auth.OpChangeRole
	if auth.Admins.Contains(role) {
		op = auth.OpGrantAdmin
	}
	if err := auth.Authorize(p, op); err != nil {
		return err
	}

	count, err := s.repo.UpdateMemberRole(ctx, targetUID, newRole)
	if err != nil {
		return err
	}
	if count == 0 {
		return domain.WithDetail(domain.ErrInvalidInput, "unknown member")
	}
	s.log.Info("changed account role", slog.String("uid", targetUID),
		slog.String("role", newRole), slog.String("by", p.UID))
	return nil
}
