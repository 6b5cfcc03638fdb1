// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов, ошибок и сообщений валидации в едином формате.
package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"

	"github.com/sharaf-deen/atom-membership/internal/domain"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Ok — признак успеха запроса.
// Поле Error — машинный код ошибки (опционально, при неуспехе).
// Поле Detail — человеко‑читаемое пояснение ошибки (опционально).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Ok     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Ok     bool   `json:"ok" example:"false"`
	Error  string `json:"error" example:"INVALID_INPUT"`
	Detail string `json:"detail,omitempty" example:"invalid request body"`
}

// OK возвращает успешный Response без данных.
func OK() Response {
	return Response{Ok: true}
}

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Ok:   true,
		Data: data,
	}
}

// Error возвращает ErrorResponse с кодом ошибки и пояснением.
func Error(code, detail string) ErrorResponse {
	return ErrorResponse{
		Ok:     false,
		Error:  code,
		Detail: detail,
	}
}

// DomainError формирует ErrorResponse из доменной ошибки: код берется
// из её таксономии, пояснение из текста ошибки.
func DomainError(err error) ErrorResponse {
	return ErrorResponse{
		Ok:     false,
		Error:  domain.Code(err),
		Detail: err.Error(),
	}
}

// ValidationError формирует ErrorResponse на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		case "datetime=2006-01-02":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only date in format 2006-01-02", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return ErrorResponse{
		Ok:     false,
		Error:  domain.Code(domain.ErrInvalidInput),
		Detail: strings.Join(errsMsgs, ", "),
	}
}
