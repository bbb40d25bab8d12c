package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDomainValidation — общий признак нарушения доменного правила; проверяется через errors.Is.
	ErrDomainValidation = errors.New("domain validation failed")
	// Ошибка отрицательной денежной суммы.
	ErrMoneyNegative = errors.New("money amount must be non-negative")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists возвращается при повторном создании заказа с тем же ID.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrRestaurantNotFound возвращается, если ресторан отсутствует в каталоге.
	ErrRestaurantNotFound = errors.New("restaurant not found")
	// ErrUnknownResponseStatus — ответ внешнего сервиса с неизвестным статусом.
	ErrUnknownResponseStatus = errors.New("unknown response status")
	// ErrInvalidResponse — ответ участника саги без обязательных полей.
	ErrInvalidResponse = errors.New("invalid saga response")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ValidationError описывает нарушение инварианта заказа или предусловия операции.
// Такие ошибки не повторяются: они означают несогласованность данных, а не сбой.
type ValidationError struct {
	// Op — операция, которую пытались выполнить (pay, approve, ...).
	Op string
	// OrderID — заказ, на котором произошла ошибка; пустой, если ID ещё не назначен.
	OrderID OrderID
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is позволяет сравнивать любую ValidationError с ErrDomainValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrDomainValidation
}

func newValidationError(op string, orderID OrderID, format string, args ...any) *ValidationError {
	return &ValidationError{
		Op:      op,
		OrderID: orderID,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsDomainValidation проверяет, является ли ошибка нарушением доменного правила.
func IsDomainValidation(err error) bool {
	return errors.Is(err, ErrDomainValidation)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
