// Package auth содержит модель ролей и шлюз авторизации ядра членства.
//
// Шесть фиксированных ролей и два производных набора (персонал и
// администраторы) определены один раз здесь. Любая чувствительная операция
// проверяется через единую таблицу политики, а не через разрозненные
// списки ролей по обработчикам.
package auth

// Role роль учётной записи на момент запроса.
type Role string

// Фиксированные роли системы.
const (
	RoleMember         Role = "member"
	RoleAssistantCoach Role = "assistant_coach"
	RoleCoach          Role = "coach"
	RoleReception      Role = "reception"
	RoleAdmin          Role = "admin"
	RoleSuperAdmin     Role = "super_admin"
)

// Valid сообщает, известна ли роль.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleAssistantCoach, RoleCoach, RoleReception, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// RoleSet набор ролей для проверки принадлежности.
type RoleSet map[Role]struct{}

// Contains сообщает, входит ли роль в набор.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

func newRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Staff роли, допущенные к стойке регистрации и киоску.
var Staff = newRoleSet(RoleReception, RoleAssistantCoach, RoleCoach, RoleAdmin, RoleSuperAdmin)

// Admins роли с административными правами.
var Admins = newRoleSet(RoleAdmin, RoleSuperAdmin)

// Operation именованная чувствительная операция ядра.
type Operation string

// Операции, закрытые авторизацией.
const (
	OpCreateSubscription Operation = "subscription.create"
	OpCancelSubscription Operation = "subscription.cancel"
	OpRunExpirySweep     Operation = "subscription.expire"
	OpCheckIn            Operation = "checkin.scan"
	OpRunReminders       Operation = "notifications.run"
	OpSearchMembers      Operation = "members.search"
	OpRegisterAccount    Operation = "accounts.register"
	OpChangeRole         Operation = "accounts.change_role"
	OpGrantAdmin         Operation = "accounts.grant_admin"
)

// policy единственное место, где операции связаны с наборами ролей.
var policy = map[Operation]RoleSet{
	OpCreateSubscription: Admins,
	OpCancelSubscription: Admins,
	OpRunExpirySweep:     Admins,
	OpCheckIn:            Staff,
	OpRunReminders:       Admins,
	OpSearchMembers:      Staff,
	OpRegisterAccount:    Admins,
	OpChangeRole:         Admins,
	OpGrantAdmin:         newRoleSet(RoleSuperAdmin),
}

// AllowedRoles возвращает набор ролей, допущенных к операции.
// Неизвестная операция не разрешена никому.
func AllowedRoles(op Operation) RoleSet {
	return policy[op]
}
