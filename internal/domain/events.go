package domain

import "time"

// EventType — тип доменного события заказа.
type EventType string

const (
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderPaid      EventType = "order.paid"
	EventTypeOrderCancelled EventType = "order.cancelled"
)

// OrderEvent — общий интерфейс доменных событий заказа. События не несут поведения.
type OrderEvent interface {
	EventType() EventType
	Order() OrderSnapshot
	OccurredAt() time.Time
}

type orderEvent struct {
	order     OrderSnapshot
	createdAt time.Time
}

func (e orderEvent) Order() OrderSnapshot  { return e.order }
func (e orderEvent) OccurredAt() time.Time { return e.createdAt }

// OrderCreatedEvent — заказ провалидирован и инициализирован; следующий шаг — оплата.
type OrderCreatedEvent struct{ orderEvent }

// OrderPaidEvent — заказ оплачен; следующий шаг — подтверждение рестораном.
type OrderPaidEvent struct{ orderEvent }

// OrderCancelledEvent — запрошена компенсация оплаты.
type OrderCancelledEvent struct{ orderEvent }

func (OrderCreatedEvent) EventType() EventType   { return EventTypeOrderCreated }
func (OrderPaidEvent) EventType() EventType      { return EventTypeOrderPaid }
func (OrderCancelledEvent) EventType() EventType { return EventTypeOrderCancelled }

// NewOrderCreatedEvent фиксирует снимок заказа; время приводится к UTC.
func NewOrderCreatedEvent(order *Order, at time.Time) OrderCreatedEvent {
	return OrderCreatedEvent{orderEvent{order: order.Snapshot(), createdAt: at.UTC()}}
}

func NewOrderPaidEvent(order *Order, at time.Time) OrderPaidEvent {
	return OrderPaidEvent{orderEvent{order: order.Snapshot(), createdAt: at.UTC()}}
}

func NewOrderCancelledEvent(order *Order, at time.Time) OrderCancelledEvent {
	return OrderCancelledEvent{orderEvent{order: order.Snapshot(), createdAt: at.UTC()}}
}

var (
	_ OrderEvent = OrderCreatedEvent{}
	_ OrderEvent = OrderPaidEvent{}
	_ OrderEvent = OrderCancelledEvent{}
)
