package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// ResponseHandler принимает ответы участников саги.
type ResponseHandler interface {
	HandlePaymentResponse(ctx context.Context, response domain.PaymentResponse) error
	HandleApprovalResponse(ctx context.Context, response domain.RestaurantApprovalResponse) error
}

// ResponseTopics — топики, которые читает сервис заказов.
var ResponseTopics = []string{TopicPaymentResponses, TopicApprovalResponses}

// NewResponseRouter возвращает MessageHandler, который раскладывает ответы по топикам.
func NewResponseRouter(handler ResponseHandler) MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		switch message.Topic {
		case TopicPaymentResponses:
			response, err := ParsePaymentResponse(message)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUnprocessableMessage, err)
			}
			return classify(handler.HandlePaymentResponse(ctx, response))
		case TopicApprovalResponses:
			response, err := ParseApprovalResponse(message)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUnprocessableMessage, err)
			}
			return classify(handler.HandleApprovalResponse(ctx, response))
		default:
			return fmt.Errorf("%w: unexpected topic %q", ErrUnprocessableMessage, message.Topic)
		}
	}
}

// classify помечает ошибки, которые повторная доставка не исправит:
// нарушение доменного правила или неизвестный заказ.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsDomainValidation(err) || errors.Is(err, domain.ErrOrderNotFound) {
		return fmt.Errorf("%w: %w", ErrUnprocessableMessage, err)
	}
	return err
}
