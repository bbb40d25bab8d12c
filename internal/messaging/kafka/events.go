package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// Topics для Kafka.
const (
	// TopicPaymentRequests получает OrderCreated (списать) и OrderCancelled (вернуть).
	TopicPaymentRequests = "foodorder.payment.requests"
	// TopicApprovalRequests получает OrderPaid для подтверждения рестораном.
	TopicApprovalRequests = "foodorder.approval.requests"
	// TopicPaymentResponses — ответы сервиса оплаты.
	TopicPaymentResponses = "foodorder.payment.responses"
	// TopicApprovalResponses — ответы ресторанов.
	TopicApprovalResponses = "foodorder.approval.responses"
	// TopicDeadLetterQueue — сообщения, которые не удалось обработать.
	TopicDeadLetterQueue = "foodorder.dlq"
)

// Kafka headers.
const (
	HeaderEventType     = "x-event-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// TopicForEvent возвращает топик запросов, в который уходит доменное событие.
func TopicForEvent(eventType domain.EventType) (string, error) {
	switch eventType {
	case domain.EventTypeOrderCreated, domain.EventTypeOrderCancelled:
		return TopicPaymentRequests, nil
	case domain.EventTypeOrderPaid:
		return TopicApprovalRequests, nil
	default:
		return "", fmt.Errorf("no topic for event type %q", eventType)
	}
}

// OrderEventMessage — сообщение о доменном событии заказа для внешних участников саги.
type OrderEventMessage struct {
	EventID   string               `json:"event_id"`
	SagaID    string               `json:"saga_id"`
	EventType domain.EventType     `json:"event_type"`
	Order     domain.OrderSnapshot `json:"order"`
	CreatedAt time.Time            `json:"created_at"`
}

// NewOrderEventMessage упаковывает доменное событие. SagaID совпадает с идентификатором заказа.
func NewOrderEventMessage(eventID string, event domain.OrderEvent) OrderEventMessage {
	snapshot := event.Order()
	return OrderEventMessage{
		EventID:   eventID,
		SagaID:    snapshot.ID.String(),
		EventType: event.EventType(),
		Order:     snapshot,
		CreatedAt: event.OccurredAt(),
	}
}

// ParseOrderEventMessage разбирает сообщение о событии заказа.
func ParseOrderEventMessage(message *sarama.ConsumerMessage) (OrderEventMessage, error) {
	var event OrderEventMessage
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return OrderEventMessage{}, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return event, nil
}

// ParsePaymentResponse разбирает и проверяет ответ сервиса оплаты.
func ParsePaymentResponse(message *sarama.ConsumerMessage) (domain.PaymentResponse, error) {
	var response domain.PaymentResponse
	if err := json.Unmarshal(message.Value, &response); err != nil {
		return domain.PaymentResponse{}, fmt.Errorf("failed to unmarshal payment response: %w", err)
	}
	if err := response.Validate(); err != nil {
		return domain.PaymentResponse{}, err
	}
	return response, nil
}

// ParseApprovalResponse разбирает и проверяет ответ ресторана.
func ParseApprovalResponse(message *sarama.ConsumerMessage) (domain.RestaurantApprovalResponse, error) {
	var response domain.RestaurantApprovalResponse
	if err := json.Unmarshal(message.Value, &response); err != nil {
		return domain.RestaurantApprovalResponse{}, fmt.Errorf("failed to unmarshal approval response: %w", err)
	}
	if err := response.Validate(); err != nil {
		return domain.RestaurantApprovalResponse{}, err
	}
	return response, nil
}
