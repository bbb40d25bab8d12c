package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  OrderID     `json:"order_id"`
	Type     string      `json:"type"`
	Status   OrderStatus `json:"status"`
	Reason   string      `json:"reason,omitempty"`
	Occurred time.Time   `json:"occurred_at"`
}
