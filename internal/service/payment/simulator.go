package payment

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/messaging/kafka"
)

// Simulator — конфигурируемый участник саги на стороне оплаты.
// Списывает деньги на order.created и возвращает их на order.cancelled.
type Simulator struct {
	mu sync.Mutex

	// CreditLimit ограничивает сумму одного заказа. Нулевое значение снимает ограничение.
	CreditLimit domain.Money
	// FailCustomers — покупатели, чьи оплаты всегда отклоняются.
	FailCustomers map[domain.CustomerID]bool
	Clock         domain.Clock

	charges int
	refunds int
}

// NewSimulator возвращает симулятор, который одобряет все оплаты.
func NewSimulator() *Simulator {
	return &Simulator{
		FailCustomers: make(map[domain.CustomerID]bool),
		Clock:         domain.SystemClock{},
	}
}

// Respond формирует ответ сервиса оплаты на событие заказа.
func (s *Simulator) Respond(event kafka.OrderEventMessage) (domain.PaymentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := event.Order
	response := domain.PaymentResponse{
		ID:         uuid.NewString(),
		SagaID:     event.SagaID,
		OrderID:    order.ID.String(),
		PaymentID:  uuid.NewString(),
		CustomerID: order.CustomerID.String(),
		Price:      order.Price,
		CreatedAt:  s.Clock.Now(),
	}

	switch event.EventType {
	case domain.EventTypeOrderCreated:
		s.charges++
		response.PaymentStatus = domain.PaymentStatusCompleted
		if reason := s.rejectReason(order); reason != "" {
			response.PaymentStatus = domain.PaymentStatusFailed
			response.FailureMessages = []string{reason}
		}
	case domain.EventTypeOrderCancelled:
		s.refunds++
		response.PaymentStatus = domain.PaymentStatusCancelled
	default:
		return domain.PaymentResponse{}, fmt.Errorf("payment simulator: unexpected event type %q", event.EventType)
	}
	return response, nil
}

// Calls возвращает число обработанных списаний и возвратов.
func (s *Simulator) Calls() (charges, refunds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.charges, s.refunds
}

func (s *Simulator) rejectReason(order domain.OrderSnapshot) string {
	if s.FailCustomers[order.CustomerID] {
		return fmt.Sprintf("customer %s payment declined", order.CustomerID)
	}
	if s.CreditLimit.IsGreaterThanZero() && order.Price.GreaterThan(s.CreditLimit) {
		return fmt.Sprintf("customer %s has not enough credit for %s", order.CustomerID, order.Price)
	}
	return ""
}

var _ kafka.PaymentResponder = (*Simulator)(nil)
