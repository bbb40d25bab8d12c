package kafka

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

func TestTopicForEvent(t *testing.T) {
	tests := []struct {
		eventType domain.EventType
		want      string
		wantErr   bool
	}{
		{eventType: domain.EventTypeOrderCreated, want: TopicPaymentRequests},
		{eventType: domain.EventTypeOrderCancelled, want: TopicPaymentRequests},
		{eventType: domain.EventTypeOrderPaid, want: TopicApprovalRequests},
		{eventType: "order.approved", wantErr: true},
	}

	for _, tt := range tests {
		got, err := TopicForEvent(tt.eventType)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: unexpected error %v", tt.eventType, err)
		}
		if got != tt.want {
			t.Fatalf("%s: expected %q, got %q", tt.eventType, tt.want, got)
		}
	}
}

func TestOrderEventMessageRoundTrip(t *testing.T) {
	product := domain.NewOrderProduct(domain.ProductID(uuid.New()), "ramen", domain.MustMoney("9.90"))
	order := domain.NewOrder(domain.OrderParams{
		CustomerID:      domain.CustomerID(uuid.New()),
		RestaurantID:    domain.RestaurantID(uuid.New()),
		DeliveryAddress: domain.StreetAddress{ID: uuid.New(), Street: "Nevsky 1", PostalCode: "191186", City: "Saint Petersburg"},
		Price:           domain.MustMoney("9.90"),
		Items:           []domain.OrderItem{domain.NewOrderItem(product, 1, domain.MustMoney("9.90"), domain.MustMoney("9.90"))},
	})
	if err := order.InitializeOrder(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

	message := NewOrderEventMessage("evt-1", domain.NewOrderCreatedEvent(order, at))
	if message.SagaID != order.ID().String() {
		t.Fatalf("expected saga id %s, got %s", order.ID(), message.SagaID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := ParseOrderEventMessage(&sarama.ConsumerMessage{Value: data})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Order.ID != order.ID() || parsed.EventType != domain.EventTypeOrderCreated {
		t.Fatalf("unexpected message %+v", parsed)
	}
	if !parsed.Order.Price.Equal(domain.MustMoney("9.90")) {
		t.Fatalf("unexpected price %s", parsed.Order.Price)
	}
	if !parsed.CreatedAt.Equal(at) {
		t.Fatalf("unexpected created_at %s", parsed.CreatedAt)
	}
}

func TestParseResponses(t *testing.T) {
	payment, err := ParsePaymentResponse(&sarama.ConsumerMessage{
		Value: []byte(`{"id":"r-1","order_id":"5b0c6a3e-8f57-4d7a-9a3c-0c2b8f6a1e01","price":"10.00","payment_status":"COMPLETED"}`),
	})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if payment.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("unexpected payment status %q", payment.PaymentStatus)
	}

	approval, err := ParseApprovalResponse(&sarama.ConsumerMessage{
		Value: []byte(`{"id":"r-2","order_id":"5b0c6a3e-8f57-4d7a-9a3c-0c2b8f6a1e01","order_approval_status":"REJECTED","failure_messages":["closed"]}`),
	})
	if err != nil {
		t.Fatalf("approval: %v", err)
	}
	if approval.OrderApprovalStatus != domain.OrderApprovalStatusRejected || len(approval.FailureMessages) != 1 {
		t.Fatalf("unexpected approval %+v", approval)
	}

	_, err = ParsePaymentResponse(&sarama.ConsumerMessage{Value: []byte(`{"order_id":"5b0c6a3e-8f57-4d7a-9a3c-0c2b8f6a1e01","payment_status":"LOST"}`)})
	if !errors.Is(err, domain.ErrUnknownResponseStatus) {
		t.Fatalf("expected unknown status error, got %v", err)
	}
	if _, err := ParseApprovalResponse(&sarama.ConsumerMessage{Value: []byte("{")}); err == nil {
		t.Fatal("expected error for broken json")
	}
}
