package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

type stubPaymentResponder struct {
	events []OrderEventMessage
	err    error
}

func (s *stubPaymentResponder) Respond(event OrderEventMessage) (domain.PaymentResponse, error) {
	s.events = append(s.events, event)
	if s.err != nil {
		return domain.PaymentResponse{}, s.err
	}
	return domain.PaymentResponse{
		ID:            "p-1",
		OrderID:       event.Order.ID.String(),
		PaymentStatus: domain.PaymentStatusCompleted,
	}, nil
}

type stubApprovalResponder struct {
	events []OrderEventMessage
}

func (s *stubApprovalResponder) Respond(event OrderEventMessage) (domain.RestaurantApprovalResponse, error) {
	s.events = append(s.events, event)
	return domain.RestaurantApprovalResponse{
		ID:                  "a-1",
		OrderID:             event.Order.ID.String(),
		OrderApprovalStatus: domain.OrderApprovalStatusApproved,
	}, nil
}

type recordingPublisher struct {
	topics []string
	keys   []string
	values []any
	err    error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, topic, key string, value any) error {
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return p.err
}

func orderEventValue(t *testing.T, orderID domain.OrderID, eventType domain.EventType) []byte {
	t.Helper()
	raw, err := json.Marshal(OrderEventMessage{
		EventID:   uuid.NewString(),
		SagaID:    orderID.String(),
		EventType: eventType,
		Order:     domain.OrderSnapshot{ID: orderID, Price: domain.MustMoney("12.00")},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func TestParticipantRouter(t *testing.T) {
	payment := &stubPaymentResponder{}
	approval := &stubApprovalResponder{}
	publisher := &recordingPublisher{}
	route := NewParticipantRouter(payment, approval, publisher)
	ctx := context.Background()
	orderID := domain.OrderID(uuid.New())

	if err := route(ctx, &sarama.ConsumerMessage{
		Topic: TopicPaymentRequests,
		Value: orderEventValue(t, orderID, domain.EventTypeOrderCreated),
	}); err != nil {
		t.Fatalf("payment request: %v", err)
	}
	if err := route(ctx, &sarama.ConsumerMessage{
		Topic: TopicApprovalRequests,
		Value: orderEventValue(t, orderID, domain.EventTypeOrderPaid),
	}); err != nil {
		t.Fatalf("approval request: %v", err)
	}

	if len(payment.events) != 1 || payment.events[0].EventType != domain.EventTypeOrderCreated {
		t.Fatalf("unexpected payment events %+v", payment.events)
	}
	if len(approval.events) != 1 || approval.events[0].Order.ID != orderID {
		t.Fatalf("unexpected approval events %+v", approval.events)
	}
	if len(publisher.topics) != 2 || publisher.topics[0] != TopicPaymentResponses || publisher.topics[1] != TopicApprovalResponses {
		t.Fatalf("unexpected topics %v", publisher.topics)
	}
	for _, key := range publisher.keys {
		if key != orderID.String() {
			t.Fatalf("expected key %s, got %s", orderID, key)
		}
	}
}

func TestParticipantRouter_Errors(t *testing.T) {
	ctx := context.Background()
	orderID := domain.OrderID(uuid.New())

	tests := []struct {
		name          string
		message       *sarama.ConsumerMessage
		payment       *stubPaymentResponder
		publisher     *recordingPublisher
		unprocessable bool
	}{
		{
			name:          "broken json",
			message:       &sarama.ConsumerMessage{Topic: TopicPaymentRequests, Value: []byte("{")},
			unprocessable: true,
		},
		{
			name:          "unknown topic",
			message:       &sarama.ConsumerMessage{Topic: "foreign", Value: orderEventValue(t, orderID, domain.EventTypeOrderCreated)},
			unprocessable: true,
		},
		{
			name:          "responder rejects event",
			message:       &sarama.ConsumerMessage{Topic: TopicPaymentRequests, Value: orderEventValue(t, orderID, domain.EventTypeOrderPaid)},
			payment:       &stubPaymentResponder{err: errors.New("unexpected event type")},
			unprocessable: true,
		},
		{
			name:      "publish failure is retryable",
			message:   &sarama.ConsumerMessage{Topic: TopicPaymentRequests, Value: orderEventValue(t, orderID, domain.EventTypeOrderCreated)},
			publisher: &recordingPublisher{err: errors.New("broker down")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payment := tt.payment
			if payment == nil {
				payment = &stubPaymentResponder{}
			}
			publisher := tt.publisher
			if publisher == nil {
				publisher = &recordingPublisher{}
			}

			err := NewParticipantRouter(payment, &stubApprovalResponder{}, publisher)(ctx, tt.message)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrUnprocessableMessage); got != tt.unprocessable {
				t.Fatalf("unprocessable=%v, want %v (err=%v)", got, tt.unprocessable, err)
			}
		})
	}
}

func TestParticipantRouter_PublishesThroughProducer(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, log.WithField("component", "participant-test"))
	orderID := domain.OrderID(uuid.New())

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicPaymentResponses {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var response domain.PaymentResponse
		if err := json.Unmarshal(raw, &response); err != nil {
			return err
		}
		if response.OrderID != orderID.String() || response.PaymentStatus != domain.PaymentStatusCompleted {
			return fmt.Errorf("unexpected response %+v", response)
		}
		return nil
	})

	route := NewParticipantRouter(&stubPaymentResponder{}, &stubApprovalResponder{}, producer)
	if err := route(context.Background(), &sarama.ConsumerMessage{
		Topic: TopicPaymentRequests,
		Value: orderEventValue(t, orderID, domain.EventTypeOrderCreated),
	}); err != nil {
		t.Fatalf("route: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}
