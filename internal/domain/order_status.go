package domain

import "fmt"

// OrderStatus описывает жизненный цикл заказа.
// Нулевое значение означает, что заказ ещё не инициализирован.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан и ожидает оплаты.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusPaid — оплата подтверждена, ждём решения ресторана.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusApproved — ресторан принял заказ; конечный статус.
	OrderStatusApproved OrderStatus = "APPROVED"
	// OrderStatusCancelling — ресторан отказал, идёт компенсация оплаты.
	OrderStatusCancelling OrderStatus = "CANCELLING"
	// OrderStatusCancelled — заказ отменён; конечный статус.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusApproved, OrderStatusCancelling, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusApproved || s == OrderStatusCancelled
}

// ParseOrderStatus разбирает статус из хранилища или сообщения.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid order status %q", s)
	}
	return status, nil
}
