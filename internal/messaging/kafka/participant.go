package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// PaymentResponder отвечает на запросы оплаты и возврата.
type PaymentResponder interface {
	Respond(event OrderEventMessage) (domain.PaymentResponse, error)
}

// ApprovalResponder отвечает на запросы подтверждения заказа рестораном.
type ApprovalResponder interface {
	Respond(event OrderEventMessage) (domain.RestaurantApprovalResponse, error)
}

// ResponsePublisher отправляет ответ участника в топик.
type ResponsePublisher interface {
	PublishJSON(ctx context.Context, topic, key string, value any) error
}

// RequestTopics — топики запросов, которые читают участники саги.
var RequestTopics = []string{TopicPaymentRequests, TopicApprovalRequests}

// NewParticipantRouter возвращает MessageHandler для участников саги: разбирает событие заказа,
// получает ответ у симулятора и публикует его в топик ответов с ключом по заказу.
func NewParticipantRouter(payment PaymentResponder, approval ApprovalResponder, publisher ResponsePublisher) MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		event, err := ParseOrderEventMessage(message)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnprocessableMessage, err)
		}
		key := event.Order.ID.String()

		switch message.Topic {
		case TopicPaymentRequests:
			response, err := payment.Respond(event)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUnprocessableMessage, err)
			}
			return publisher.PublishJSON(ctx, TopicPaymentResponses, key, response)
		case TopicApprovalRequests:
			response, err := approval.Respond(event)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUnprocessableMessage, err)
			}
			return publisher.PublishJSON(ctx, TopicApprovalResponses, key, response)
		default:
			return fmt.Errorf("%w: unexpected topic %q", ErrUnprocessableMessage, message.Topic)
		}
	}
}

var _ ResponsePublisher = (*Producer)(nil)
