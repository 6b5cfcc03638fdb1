package models

import "time"

// Виды напоминаний.
const (
	TicketKindExpire7d    = "expire_7d"    // Календарный абонемент истекает ровно через 7 дней
	TicketKindSessionsLow = "sessions_low" // Остаток занятий достиг порога
)

// Статусы тикета уведомления.
const (
	TicketQueued = "queued"
	TicketSent   = "sent"
)

// NotificationTicket одно ожидающее или отправленное напоминание.
// DedupeKey уникален: повторная постановка с тем же ключом невозможна.
type NotificationTicket struct {
	ID             string     // UUID тикета
	MemberUID      string     // Кому
	SubscriptionID string     // По какому абонементу
	Kind           string     // expire_7d или sessions_low
	DedupeKey      string     // kind:subscription:маркер периода
	Email          string     // Адрес получателя на момент постановки
	Subject        string     // Тема письма
	Body           string     // Текст письма
	Status         string     // queued или sent
	QueuedAt       time.Time
	SentAt         *time.Time
	LastError      *string    // Последняя ошибка доставки, если была
}

// ReminderCandidate абонемент, подпадающий под условие напоминания,
// вместе с контактами владельца. Результат выборки планировщика.
type ReminderCandidate struct {
	SubscriptionID   string
	MemberUID        string
	PlanKind         PlanKind
	EndDate          *time.Time
	RemainingClasses *int
	Email            string
	FirstName        string
	LastName         string
}

// FullName возвращает отображаемое имя получателя напоминания.
func (c *ReminderCandidate) FullName() string {
	n := c.FirstName
	if c.LastName != "" {
		if n != "" {
			n += " "
		}
		n += c.LastName
	}
	if n == "" {
		return "Member"
	}
	return n
}

// ReminderSummary итог прогона планировщика напоминаний.
// Форма одинакова для боевого и пробного запуска.
type ReminderSummary struct {
	Queued ReminderQueued `json:"queued"`
	Sent   int            `json:"sent"`
}

// ReminderQueued количество поставленных тикетов по видам.
type ReminderQueued struct {
	Expire7d    int `json:"expire_7d"`
	SessionsLow int `json:"sessions_low"`
}
