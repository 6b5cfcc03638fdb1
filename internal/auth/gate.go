package auth

import (
	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/lib/jwt"
)

// Principal аутентифицированный вызывающий на время одного запроса.
// Не сохраняется ядром, создаётся при разборе токена сессии.
type Principal struct {
	UID   string
	Email string
	Role  Role
}

// Gate разбирает токен сессии в Principal и выполняет проверки доступа.
// Все проверки чистые и идемпотентные, побочных эффектов нет.
type Gate struct {
	maker jwt.Maker
}

// NewGate создаёт шлюз авторизации поверх парсера токенов.
func NewGate(maker jwt.Maker) *Gate {
	return &Gate{maker: maker}
}

// ResolvePrincipal разбирает bearer-токен. Пустой или невалидный токен
// означает отсутствие сессии: NOT_AUTHENTICATED, никогда не FORBIDDEN.
func (g *Gate) ResolvePrincipal(token string) (*Principal, error) {
	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}
	claims, err := g.maker.ParseToken(token)
	if err != nil {
		return nil, domain.ErrNotAuthenticated
	}
	role := Role(claims.Role)
	if !role.Valid() {
		role = RoleMember
	}
	return &Principal{
		UID:   claims.UserUID,
		Email: claims.Email,
		Role:  role,
	}, nil
}

// RequireUser требует наличия сессии.
func RequireUser(p *Principal) error {
	if p == nil {
		return domain.ErrNotAuthenticated
	}
	return nil
}

// RequireStaff требует сессию с ролью персонала.
// Порядок всегда: сначала аутентификация, затем авторизация.
func RequireStaff(p *Principal) error {
	if err := RequireUser(p); err != nil {
		return err
	}
	if !Staff.Contains(p.Role) {
		return domain.ErrForbidden
	}
	return nil
}

// RequireAdmin требует сессию с административной ролью.
func RequireAdmin(p *Principal) error {
	if err := RequireUser(p); err != nil {
		return err
	}
	if !Admins.Contains(p.Role) {
		return domain.ErrForbidden
	}
	return nil
}

// Authorize проверяет допуск вызывающего к именованной операции
// по единой таблице политики.
func Authorize(p *Principal, op Operation) error {
	if err := RequireUser(p); err != nil {
		return err
	}
	if !AllowedRoles(op).Contains(p.Role) {
		return domain.ErrForbidden
	}
	return nil
}
