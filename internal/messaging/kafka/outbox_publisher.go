package kafka

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka.
// Топик берётся из сообщения; fallbackTopic используется, если он не задан.
type OutboxTopicPublisher struct {
	producer      *Producer
	fallbackTopic string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, fallbackTopic string) *OutboxTopicPublisher {
	return &OutboxTopicPublisher{
		producer:      producer,
		fallbackTopic: fallbackTopic,
	}
}

// Publish отправляет payload как есть; ключом служит идентификатор заказа,
// поэтому события одного заказа попадают в одну партицию.
func (p *OutboxTopicPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	topic := msg.Topic
	if topic == "" {
		topic = p.fallbackTopic
	}
	if topic == "" {
		return fmt.Errorf("outbox message %s: topic is not set", msg.ID)
	}

	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}

	headers := map[string]string{
		HeaderEventType: msg.EventType,
		HeaderOutboxID:  msg.ID,
	}
	if err := p.producer.Send(ctx, topic, key, msg.Payload, headers); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOutboxPublish, err)
	}
	return nil
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
