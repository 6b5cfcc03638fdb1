// Package models содержит доменные структуры абонементов, членов клуба,
// посещений и уведомлений, а также вспомогательные типы для приёма данных
// из JSON-запросов.
package models

import "time"

// PlanKind форма тарификации абонемента.
type PlanKind string

// Поддерживаемые виды абонементов.
const (
	PlanMonthly     PlanKind = "monthly"       // Календарный месяц
	PlanQuarterly   PlanKind = "quarterly"     // Три календарных месяца
	PlanYearly      PlanKind = "yearly"        // Календарный год
	PlanPayPerClass PlanKind = "pay_per_class" // Пакет занятий без даты окончания
)

// Valid сообщает, известен ли вид абонемента.
func (p PlanKind) Valid() bool {
	switch p {
	case PlanMonthly, PlanQuarterly, PlanYearly, PlanPayPerClass:
		return true
	}
	return false
}

// TimeBounded сообщает, ограничен ли абонемент датой окончания.
func (p PlanKind) TimeBounded() bool {
	return p != PlanPayPerClass
}

// SubscriptionStatus состояние абонемента в машине состояний.
type SubscriptionStatus string

// Состояния абонемента. Active единственное не терминальное.
const (
	StatusActive   SubscriptionStatus = "active"
	StatusExpired  SubscriptionStatus = "expired"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Subscription абонемент члена клуба.
// Инвариант: EndDate задан тогда и только тогда, когда PlanKind ≠ pay_per_class.
// RemainingClasses имеет смысл только для pay_per_class.
type Subscription struct {
	ID               string             `json:"id"`                          // UUID записи
	MemberUID        string             `json:"member_uid"`                  // UUID члена клуба
	PlanKind         PlanKind           `json:"plan_kind"`                   // Вид абонемента
	Status           SubscriptionStatus `json:"status"`                      // Текущее состояние
	StartDate        time.Time          `json:"start_date"`                  // Дата начала действия
	EndDate          *time.Time         `json:"end_date,omitempty"`          // Дата окончания, nil для pay_per_class
	RemainingClasses *int               `json:"remaining_classes,omitempty"` // Остаток занятий, nil для календарных видов
	CreatedAt        time.Time          `json:"created_at"`
	CanceledAt       *time.Time         `json:"canceled_at,omitempty"`
}

// DummySubscription принимает данные абонемента из JSON-запроса.
// Даты приходят строками в формате 2006-01-02 и парсятся вручную.
type DummySubscription struct {
	MemberUID        string `json:"member_uid" validate:"required,uuid"`
	PlanKind         string `json:"plan_kind" validate:"required"`
	RemainingClasses *int   `json:"remaining_classes,omitempty"`
	StartDate        string `json:"start_date,omitempty"`
	EndDate          string `json:"end_date,omitempty"`
}

// SweepSummary итог прогона пакетного истечения абонементов.
type SweepSummary struct {
	TimeExpired     int `json:"time_expired"`     // Сколько календарных абонементов истекло
	SessionsExpired int `json:"sessions_expired"` // Сколько пакетов занятий исчерпано
}
