package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodorder/internal/service/outbox"
)

// errNotALetter — запись DLQ не похожа ни на один известный формат.
var errNotALetter = errors.New("unrecognized dead letter")

// letter — сообщение, восстановленное из записи DLQ.
type letter struct {
	// origin — топик, из которого сообщение попало в DLQ.
	origin  string
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

// decodeLetter восстанавливает исходное сообщение из записи DLQ. Бывает два формата:
//   - ответ участника саги, упавший в consumer: заголовок x-original-topic и исходное тело;
//   - событие outbox: JSON outbox.DeadLetter с исходным payload и топиком.
//
// targetTopic, если задан, заменяет исходный топик.
func decodeLetter(msg *sarama.ConsumerMessage, targetTopic string) (letter, error) {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		if h != nil {
			headers[string(h.Key)] = string(h.Value)
		}
	}

	if original := strings.TrimSpace(headers[kafka.HeaderOriginalTopic]); original != "" {
		return letter{
			origin: original,
			topic:  firstNonEmpty(targetTopic, original),
			key:    string(msg.Key),
			value:  msg.Value,
		}, nil
	}

	var dead outbox.DeadLetter
	if err := json.Unmarshal(msg.Value, &dead); err != nil || dead.OutboxID == "" {
		return letter{}, errNotALetter
	}
	if len(dead.Payload) == 0 || string(dead.Payload) == "null" {
		return letter{}, fmt.Errorf("outbox letter %s has no payload", dead.OutboxID)
	}

	origin := strings.TrimSpace(dead.Topic)
	if origin == "" {
		eventTopic, err := kafka.TopicForEvent(domain.EventType(dead.EventType))
		if err != nil {
			return letter{}, fmt.Errorf("outbox letter %s: %w", dead.OutboxID, err)
		}
		origin = eventTopic
	}

	return letter{
		origin: origin,
		topic:  firstNonEmpty(targetTopic, origin),
		key:    firstNonEmpty(dead.AggregateID, dead.OutboxID),
		value:  dead.Payload,
		headers: map[string]string{
			kafka.HeaderEventType: dead.EventType,
			kafka.HeaderOutboxID:  dead.OutboxID,
		},
	}, nil
}

// accepts проверяет фильтры -only-topics и -order-id. Ключ письма — id заказа.
func (cfg config) accepts(l letter) bool {
	if len(cfg.onlyTopics) > 0 && !containsFold(cfg.onlyTopics, l.origin) {
		return false
	}
	return cfg.orderID == "" || strings.EqualFold(cfg.orderID, l.key)
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return ""
}
