// Package domain содержит доменные ошибки ядра членства и их стабильные коды.
//
// Каждая ошибка несёт машинно-читаемый код, который обработчики HTTP
// возвращают клиенту без изменений. Сопоставление кода и HTTP-статуса
// определено один раз в таблице statusByCode.
package domain

import (
	"errors"
	"net/http"
)

// Error доменная ошибка со стабильным кодом и необязательной детализацией.
type Error struct {
	Code   string // Машинно-читаемый код, например SUBSCRIPTION_NOT_ACTIVE
	Detail string // Человеко-читаемое пояснение для персонала
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}

// Is сравнивает ошибки по коду, детализация не учитывается.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Сентинелы доменных ошибок. Сравнивать через errors.Is.
var (
	ErrNotAuthenticated      = &Error{Code: "NOT_AUTHENTICATED"}
	ErrForbidden             = &Error{Code: "FORBIDDEN"}
	ErrInvalidPlan           = &Error{Code: "INVALID_PLAN"}
	ErrMissingMember         = &Error{Code: "MISSING_MEMBER"}
	ErrInvalidInput          = &Error{Code: "INVALID_INPUT"}
	ErrNoSubscription        = &Error{Code: "NO_SUBSCRIPTION"}
	ErrSubscriptionNotActive = &Error{Code: "SUBSCRIPTION_NOT_ACTIVE"}
	ErrNotConsumable         = &Error{Code: "NOT_CONSUMABLE"}
	// ErrConflict сигнализирует проигрыш условного обновления хранилища.
	// Внутренний сигнал для повтора чтения, наружу не возвращается.
	ErrConflict = &Error{Code: "CONFLICT"}
)

// WithDetail возвращает копию ошибки с заполненной детализацией.
// Исходный сентинел не изменяется, errors.Is продолжает работать.
func WithDetail(base *Error, detail string) *Error {
	return &Error{Code: base.Code, Detail: detail}
}

var statusByCode = map[string]int{
	"NOT_AUTHENTICATED":       http.StatusUnauthorized,
	"FORBIDDEN":               http.StatusForbidden,
	"INVALID_PLAN":            http.StatusBadRequest,
	"MISSING_MEMBER":          http.StatusBadRequest,
	"INVALID_INPUT":           http.StatusBadRequest,
	"NO_SUBSCRIPTION":         http.StatusNotFound,
	"SUBSCRIPTION_NOT_ACTIVE": http.StatusConflict,
	"NOT_CONSUMABLE":          http.StatusConflict,
}

// HTTPStatus возвращает HTTP-статус для доменной ошибки.
// Для не-доменных ошибок возвращает 500: инфраструктурный сбой.
func HTTPStatus(err error) int {
	var de *Error
	if errors.As(err, &de) {
		if st, ok := statusByCode[de.Code]; ok {
			return st
		}
	}
	return http.StatusInternalServerError
}

// Code возвращает стабильный код ошибки либо SERVER_ERROR для прочих ошибок.
func Code(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "SERVER_ERROR"
}
