package approval

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/messaging/kafka"
)

// Simulator — участник саги на стороне ресторана. Подтверждает оплаченные заказы.
type Simulator struct {
	mu sync.Mutex

	// ClosedRestaurants отклоняют все заказы.
	ClosedRestaurants map[domain.RestaurantID]bool
	// MaxItems ограничивает суммарное количество товаров в заказе. 0 снимает ограничение.
	MaxItems int
	Clock    domain.Clock

	approved int
	rejected int
}

// NewSimulator возвращает симулятор, который подтверждает все заказы.
func NewSimulator() *Simulator {
	return &Simulator{
		ClosedRestaurants: make(map[domain.RestaurantID]bool),
		Clock:             domain.SystemClock{},
	}
}

// Respond формирует решение ресторана на order.paid.
func (s *Simulator) Respond(event kafka.OrderEventMessage) (domain.RestaurantApprovalResponse, error) {
	if event.EventType != domain.EventTypeOrderPaid {
		return domain.RestaurantApprovalResponse{}, fmt.Errorf("approval simulator: unexpected event type %q", event.EventType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order := event.Order
	response := domain.RestaurantApprovalResponse{
		ID:                  uuid.NewString(),
		SagaID:              event.SagaID,
		OrderID:             order.ID.String(),
		RestaurantID:        order.RestaurantID.String(),
		CreatedAt:           s.Clock.Now(),
		OrderApprovalStatus: domain.OrderApprovalStatusApproved,
	}
	if reason := s.rejectReason(order); reason != "" {
		s.rejected++
		response.OrderApprovalStatus = domain.OrderApprovalStatusRejected
		response.FailureMessages = []string{reason}
		return response, nil
	}
	s.approved++
	return response, nil
}

// Calls возвращает число подтверждённых и отклонённых заказов.
func (s *Simulator) Calls() (approved, rejected int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approved, s.rejected
}

func (s *Simulator) rejectReason(order domain.OrderSnapshot) string {
	if s.ClosedRestaurants[order.RestaurantID] {
		return fmt.Sprintf("restaurant %s is not accepting orders", order.RestaurantID)
	}
	if s.MaxItems > 0 {
		total := 0
		for _, item := range order.Items {
			total += item.Quantity
		}
		if total > s.MaxItems {
			return fmt.Sprintf("order %s has %d items, restaurant limit is %d", order.ID, total, s.MaxItems)
		}
	}
	return ""
}

var _ kafka.ApprovalResponder = (*Simulator)(nil)
