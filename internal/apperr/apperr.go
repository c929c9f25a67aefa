// Package apperr описывает ошибки бизнес-операций и их категории для внешнего слоя.
package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v3"
)

// Kind - вид ошибки бизнес-операции
type Kind string

const (
	NotFound             Kind = "not_found"
	Forbidden            Kind = "forbidden"
	SelfRequestForbidden Kind = "self_request_forbidden"
	InvalidOffer         Kind = "invalid_offer"
	SelfOfferForbidden   Kind = "self_offer_forbidden"
	NotRedeemable        Kind = "not_redeemable"
	InsufficientPoints   Kind = "insufficient_points"
	DuplicateRequest     Kind = "duplicate_request"
	InvalidState         Kind = "invalid_state"
	BadRequest           Kind = "bad_request"
)

// Error позволяет использовать Kind как цель errors.Is
func (k Kind) Error() string { return string(k) }

// Category - категория ошибки для вызывающей стороны
type Category string

const (
	CategoryNotFound   Category = "not-found"
	CategoryForbidden  Category = "forbidden"
	CategoryConflict   Category = "conflict"
	CategoryBadRequest Category = "bad-request"
)

// Category возвращает категорию вида ошибки
func (k Kind) Category() Category {
	switch k {
	case NotFound:
		return CategoryNotFound
	case Forbidden:
		return CategoryForbidden
	case DuplicateRequest, InvalidState:
		return CategoryConflict
	default:
		return CategoryBadRequest
	}
}

// Error - ошибка бизнес-операции с видом и сообщением для пользователя
type Error struct {
	Kind    Kind
	Message string
}

// New создаёт ошибку заданного вида
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is позволяет сравнивать ошибку с видом: errors.Is(err, apperr.InvalidOffer)
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// KindOf возвращает вид ошибки или пустую строку для инфраструктурных ошибок
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Status возвращает HTTP-статус для ошибки
func Status(err error) int {
	kind := KindOf(err)
	if kind == "" {
		return fiber.StatusInternalServerError
	}
	switch kind.Category() {
	case CategoryNotFound:
		return fiber.StatusNotFound
	case CategoryForbidden:
		return fiber.StatusForbidden
	case CategoryConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusBadRequest
	}
}
