package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

type recordingHandler struct {
	payments  []domain.PaymentResponse
	approvals []domain.RestaurantApprovalResponse
	err       error
}

func (h *recordingHandler) HandlePaymentResponse(_ context.Context, r domain.PaymentResponse) error {
	h.payments = append(h.payments, r)
	return h.err
}

func (h *recordingHandler) HandleApprovalResponse(_ context.Context, r domain.RestaurantApprovalResponse) error {
	h.approvals = append(h.approvals, r)
	return h.err
}

func TestResponseRouter(t *testing.T) {
	handler := &recordingHandler{}
	route := NewResponseRouter(handler)
	ctx := context.Background()

	payment := &sarama.ConsumerMessage{
		Topic: TopicPaymentResponses,
		Value: []byte(`{"id":"p-1","order_id":"5b0c6a3e-8f57-4d7a-9a3c-0c2b8f6a1e01","payment_status":"FAILED","failure_messages":["no funds"]}`),
	}
	if err := route(ctx, payment); err != nil {
		t.Fatalf("payment route: %v", err)
	}
	approval := &sarama.ConsumerMessage{
		Topic: TopicApprovalResponses,
		Value: []byte(`{"id":"a-1","order_id":"5b0c6a3e-8f57-4d7a-9a3c-0c2b8f6a1e01","order_approval_status":"APPROVED"}`),
	}
	if err := route(ctx, approval); err != nil {
		t.Fatalf("approval route: %v", err)
	}

	if len(handler.payments) != 1 || handler.payments[0].PaymentStatus != domain.PaymentStatusFailed {
		t.Fatalf("unexpected payments %+v", handler.payments)
	}
	if len(handler.approvals) != 1 || handler.approvals[0].OrderApprovalStatus != domain.OrderApprovalStatusApproved {
		t.Fatalf("unexpected approvals %+v", handler.approvals)
	}
}

func TestResponseRouter_Errors(t *testing.T) {
	failing := &recordingHandler{err: errors.New("store unavailable")}
	ctx := context.Background()

	tests := []struct {
		name      string
		message   *sarama.ConsumerMessage
		handler   *recordingHandler
		malformed bool
	}{
		{
			name:      "broken json",
			message:   &sarama.ConsumerMessage{Topic: TopicPaymentResponses, Value: []byte("{")},
			malformed: true,
		},
		{
			name:      "missing order id",
			message:   &sarama.ConsumerMessage{Topic: TopicApprovalResponses, Value: []byte(`{"order_approval_status":"APPROVED"}`)},
			malformed: true,
		},
		{
			name:      "unknown topic",
			message:   &sarama.ConsumerMessage{Topic: "foreign", Value: []byte("{}")},
			malformed: true,
		},
		{
			name:      "unknown order",
			message:   &sarama.ConsumerMessage{Topic: TopicApprovalResponses, Value: []byte(`{"order_id":"5b0c6a3e-8f57-4d7a-9a3c-0c2b8f6a1e01","order_approval_status":"APPROVED"}`)},
			handler:   &recordingHandler{err: domain.ErrOrderNotFound},
			malformed: true,
		},
		{
			name:    "handler failure is retryable",
			message: &sarama.ConsumerMessage{Topic: TopicPaymentResponses, Value: []byte(`{"order_id":"5b0c6a3e-8f57-4d7a-9a3c-0c2b8f6a1e01","payment_status":"COMPLETED"}`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := tt.handler
			if handler == nil {
				handler = failing
			}
			err := NewResponseRouter(handler)(ctx, tt.message)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrUnprocessableMessage); got != tt.malformed {
				t.Fatalf("malformed=%v, got error %v", tt.malformed, err)
			}
		})
	}
}
