// Package models содержит доменную модель члена клуба и учётной записи,
// включающую контактные данные, роль и QR-код для киоска.
package models

import "time"

// Member зарегистрированный пользователь клуба: член, персонал или администратор.
type Member struct {
	UID          string    `json:"uid"`        // Уникальный идентификатор (UUID)
	Email        string    `json:"email"`      // Электронная почта (уникальная)
	PasswordHash string    `json:"-"`          // Хэш пароля, наружу не отдаётся
	FirstName    string    `json:"first_name"` // Имя
	LastName     string    `json:"last_name"`  // Фамилия
	Role         string    `json:"role"`       // Роль из шести фиксированных, см. пакет auth
	QRCode       string    `json:"qr_code"`    // Содержимое QR-кода для сканера киоска
	CreatedAt    time.Time `json:"created_at"` // Дата регистрации
}

// FullName возвращает отображаемое имя или email, если имя не заполнено.
func (m *Member) FullName() string {
	n := m.FirstName
	if m.LastName != "" {
		if n != "" {
			n += " "
		}
		n += m.LastName
	}
	if n == "" {
		return m.Email
	}
	return n
}

// DummyRegister принимает данные регистрации из JSON-запроса.
type DummyRegister struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role,omitempty"`
}

// DummyLogin принимает учётные данные для входа.
type DummyLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// DummyMemberSearch фильтр поиска членов клуба для стойки регистрации.
// Хотя бы одно поле должно быть заполнено.
type DummyMemberSearch struct {
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Query string `json:"query,omitempty"`
}

// MemberProfile профиль члена клуба вместе с последним абонементом.
// Отдаётся стойке регистрации при поиске.
type MemberProfile struct {
	Member           *Member       `json:"member"`
	LastSubscription *Subscription `json:"last_subscription,omitempty"`
}

// MemberCard развернутая карточка члена клуба: история абонементов
// и суммарное число посещений. Отдаётся по запросу одного профиля.
type MemberCard struct {
	Member        *Member         `json:"member"`
	Subscriptions []*Subscription `json:"subscriptions"`
	Visits        int             `json:"visits"`
}
