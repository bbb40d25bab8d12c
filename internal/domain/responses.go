package domain

import (
	"fmt"
	"time"
)

// OrderApprovalStatus — решение ресторана по заказу.
type OrderApprovalStatus string

const (
	OrderApprovalStatusApproved OrderApprovalStatus = "APPROVED"
	OrderApprovalStatusRejected OrderApprovalStatus = "REJECTED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderApprovalStatus) Valid() bool {
	return s == OrderApprovalStatusApproved || s == OrderApprovalStatusRejected
}

// PaymentStatus — результат обработки оплаты внешним сервисом.
type PaymentStatus string

const (
	// PaymentStatusCompleted — деньги списаны.
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	// PaymentStatusCancelled — оплата возвращена (ответ на компенсацию).
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	// PaymentStatusFailed — провайдер отклонил оплату.
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusCancelled, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// RestaurantApprovalResponse — ответ процесса подтверждения заказа рестораном.
type RestaurantApprovalResponse struct {
	ID                  string              `json:"id"`
	SagaID              string              `json:"saga_id"`
	OrderID             string              `json:"order_id"`
	RestaurantID        string              `json:"restaurant_id"`
	CreatedAt           time.Time           `json:"created_at"`
	OrderApprovalStatus OrderApprovalStatus `json:"order_approval_status"`
	FailureMessages     []string            `json:"failure_messages,omitempty"`
}

// Validate проверяет обязательные поля ответа.
func (r RestaurantApprovalResponse) Validate() error {
	if _, err := ParseOrderID(r.OrderID); err != nil {
		return fmt.Errorf("approval response %q: %w: order_id %q", r.ID, ErrInvalidResponse, r.OrderID)
	}
	if !r.OrderApprovalStatus.Valid() {
		return fmt.Errorf("approval response %q: %w %q", r.ID, ErrUnknownResponseStatus, r.OrderApprovalStatus)
	}
	return nil
}

// PaymentResponse — ответ сервиса оплаты.
type PaymentResponse struct {
	ID              string        `json:"id"`
	SagaID          string        `json:"saga_id"`
	OrderID         string        `json:"order_id"`
	PaymentID       string        `json:"payment_id"`
	CustomerID      string        `json:"customer_id"`
	Price           Money         `json:"price"`
	CreatedAt       time.Time     `json:"created_at"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	FailureMessages []string      `json:"failure_messages,omitempty"`
}

// Validate проверяет обязательные поля ответа.
func (r PaymentResponse) Validate() error {
	if _, err := ParseOrderID(r.OrderID); err != nil {
		return fmt.Errorf("payment response %q: %w: order_id %q", r.ID, ErrInvalidResponse, r.OrderID)
	}
	if !r.PaymentStatus.Valid() {
		return fmt.Errorf("payment response %q: %w %q", r.ID, ErrUnknownResponseStatus, r.PaymentStatus)
	}
	return nil
}
