package saga

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodorder/internal/metrics"
	"github.com/vladislavdragonenkov/foodorder/internal/storage/memory"
)

var (
	pizzaID = domain.ProductID(uuid.MustParse("0b7f4e44-37d0-4c4c-9d8a-5f1b2c3d4e01"))
	colaID  = domain.ProductID(uuid.MustParse("0b7f4e44-37d0-4c4c-9d8a-5f1b2c3d4e02"))
)

// CoordinatorTestSuite проверяет сагу заказа на in-memory хранилищах.
type CoordinatorTestSuite struct {
	suite.Suite

	ctx         context.Context
	orders      domain.OrderRepository
	restaurants *memory.RestaurantRepository
	outbox      *memory.OutboxRepository
	timeline    domain.TimelineRepository
	coordinator *Coordinator
	restaurant  domain.RestaurantID
}

func (s *CoordinatorTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)

	s.ctx = context.Background()
	s.orders = memory.NewOrderRepository()
	s.restaurants = memory.NewRestaurantRepository()
	s.outbox = memory.NewOutboxRepository()
	s.timeline = memory.NewTimelineRepository()
	s.restaurant = domain.RestaurantID(uuid.New())

	s.restaurants.Put(domain.NewRestaurant(s.restaurant, true, []domain.Product{
		domain.NewProduct(pizzaID, "Margherita", domain.MustMoney("8.50"), true),
		domain.NewProduct(colaID, "Cola", domain.MustMoney("1.50"), true),
	}))

	s.coordinator = NewCoordinator(s.orders, s.restaurants, s.outbox,
		WithTimeline(s.timeline),
		WithMetrics(metrics.NewSagaMetricsWithRegisterer(prometheus.NewRegistry())),
		WithLogger(baseLogger.WithField("component", "saga-test")),
	)
}

func (s *CoordinatorTestSuite) command(total string) CreateOrderCommand {
	return CreateOrderCommand{
		CustomerID:   domain.CustomerID(uuid.New()),
		RestaurantID: s.restaurant,
		Price:        domain.MustMoney(total),
		Items: []CreateOrderItem{
			{ProductID: pizzaID, Quantity: 2, Price: domain.MustMoney("8.50"), SubTotal: domain.MustMoney("17.00")},
			{ProductID: colaID, Quantity: 1, Price: domain.MustMoney("1.50"), SubTotal: domain.MustMoney("1.50")},
		},
		Address: domain.StreetAddress{Street: "Arbat 10", PostalCode: "119002", City: "Moscow"},
	}
}

func (s *CoordinatorTestSuite) createOrder() CreateOrderResult {
	result, err := s.coordinator.CreateOrder(s.ctx, s.command("18.50"))
	s.Require().NoError(err)
	return result
}

func (s *CoordinatorTestSuite) pending() []domain.OutboxMessage {
	return s.outbox.AllPending()
}

func (s *CoordinatorTestSuite) status(id domain.OrderID) domain.OrderStatus {
	order, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	return order.Status()
}

func (s *CoordinatorTestSuite) payment(id domain.OrderID, status domain.PaymentStatus, messages ...string) domain.PaymentResponse {
	return domain.PaymentResponse{
		ID:              uuid.NewString(),
		SagaID:          id.String(),
		OrderID:         id.String(),
		PaymentID:       uuid.NewString(),
		Price:           domain.MustMoney("18.50"),
		CreatedAt:       time.Now().UTC(),
		PaymentStatus:   status,
		FailureMessages: messages,
	}
}

func (s *CoordinatorTestSuite) approval(id domain.OrderID, status domain.OrderApprovalStatus, messages ...string) domain.RestaurantApprovalResponse {
	return domain.RestaurantApprovalResponse{
		ID:                  uuid.NewString(),
		SagaID:              id.String(),
		OrderID:             id.String(),
		RestaurantID:        s.restaurant.String(),
		CreatedAt:           time.Now().UTC(),
		OrderApprovalStatus: status,
		FailureMessages:     messages,
	}
}

func (s *CoordinatorTestSuite) TestCreateOrderEnqueuesPaymentRequest() {
	result := s.createOrder()

	s.Equal(domain.OrderStatusPending, result.Status)
	s.False(result.TrackingID.IsZero())

	messages := s.pending()
	s.Require().Len(messages, 1)
	s.Equal(kafka.TopicPaymentRequests, messages[0].Topic)
	s.Equal(string(domain.EventTypeOrderCreated), messages[0].EventType)
	s.Equal(result.OrderID.String(), messages[0].AggregateID)

	var envelope kafka.OrderEventMessage
	s.Require().NoError(json.Unmarshal(messages[0].Payload, &envelope))
	s.Equal(messages[0].ID, envelope.EventID)
	s.Equal(result.OrderID, envelope.Order.ID)
	s.Equal("Margherita", envelope.Order.Items[0].ProductName)
	s.True(envelope.Order.Price.Equal(domain.MustMoney("18.50")))
}

func (s *CoordinatorTestSuite) TestCreateOrderRejections() {
	tests := []struct {
		name    string
		mutate  func(*CreateOrderCommand)
		wantErr error
	}{
		{
			name:    "unknown restaurant",
			mutate:  func(cmd *CreateOrderCommand) { cmd.RestaurantID = domain.RestaurantID(uuid.New()) },
			wantErr: domain.ErrRestaurantNotFound,
		},
		{
			name:    "total does not match items",
			mutate:  func(cmd *CreateOrderCommand) { cmd.Price = domain.MustMoney("20.00") },
			wantErr: domain.ErrDomainValidation,
		},
		{
			name:    "missing address",
			mutate:  func(cmd *CreateOrderCommand) { cmd.Address = domain.StreetAddress{} },
			wantErr: domain.ErrDomainValidation,
		},
		{
			name:    "no items",
			mutate:  func(cmd *CreateOrderCommand) { cmd.Items = nil },
			wantErr: domain.ErrDomainValidation,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			cmd := s.command("18.50")
			tt.mutate(&cmd)

			_, err := s.coordinator.CreateOrder(s.ctx, cmd)
			s.Require().ErrorIs(err, tt.wantErr)
			s.Empty(s.pending())
		})
	}
}

func (s *CoordinatorTestSuite) TestInactiveRestaurant() {
	s.restaurants.Put(domain.NewRestaurant(s.restaurant, false, nil))

	_, err := s.coordinator.CreateOrder(s.ctx, s.command("18.50"))

	var validationErr *domain.ValidationError
	s.Require().ErrorAs(err, &validationErr)
	s.Equal("validate restaurant", validationErr.Op)
}

func (s *CoordinatorTestSuite) TestHappyPath() {
	created := s.createOrder()

	s.Require().NoError(s.coordinator.HandlePaymentResponse(s.ctx, s.payment(created.OrderID, domain.PaymentStatusCompleted)))
	s.Equal(domain.OrderStatusPaid, s.status(created.OrderID))

	messages := s.pending()
	s.Require().Len(messages, 2)
	s.Equal(kafka.TopicApprovalRequests, messages[1].Topic)
	s.Equal(string(domain.EventTypeOrderPaid), messages[1].EventType)

	s.Require().NoError(s.coordinator.HandleApprovalResponse(s.ctx, s.approval(created.OrderID, domain.OrderApprovalStatusApproved)))
	s.Equal(domain.OrderStatusApproved, s.status(created.OrderID))
	s.Len(s.pending(), 2, "approval publishes nothing")

	tracked, err := s.coordinator.TrackOrder(s.ctx, created.TrackingID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusApproved, tracked.Status)

	types := make([]string, 0, len(tracked.Timeline))
	for _, e := range tracked.Timeline {
		types = append(types, e.Type)
	}
	s.Equal([]string{TimelineOrderCreated, TimelineOrderPaid, TimelineOrderApproved}, types)
}

func (s *CoordinatorTestSuite) TestPaymentFailedCancelsOrder() {
	created := s.createOrder()

	err := s.coordinator.HandlePaymentResponse(s.ctx, s.payment(created.OrderID, domain.PaymentStatusFailed, "insufficient funds"))
	s.Require().NoError(err)

	order, err := s.orders.Get(s.ctx, created.OrderID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, order.Status())
	s.Equal([]string{"insufficient funds"}, order.FailureMessages())
	s.Len(s.pending(), 1, "cancellation publishes nothing")
}

func (s *CoordinatorTestSuite) TestRestaurantRejectionCompensatesPayment() {
	created := s.createOrder()
	s.Require().NoError(s.coordinator.HandlePaymentResponse(s.ctx, s.payment(created.OrderID, domain.PaymentStatusCompleted)))

	s.Require().NoError(s.coordinator.HandleApprovalResponse(s.ctx, s.approval(created.OrderID, domain.OrderApprovalStatusRejected, "kitchen closed")))
	s.Equal(domain.OrderStatusCancelling, s.status(created.OrderID))

	messages := s.pending()
	s.Require().Len(messages, 3)
	s.Equal(kafka.TopicPaymentRequests, messages[2].Topic)
	s.Equal(string(domain.EventTypeOrderCancelled), messages[2].EventType)

	s.Require().NoError(s.coordinator.HandlePaymentResponse(s.ctx, s.payment(created.OrderID, domain.PaymentStatusCancelled, "payment refunded")))

	order, err := s.orders.Get(s.ctx, created.OrderID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, order.Status())
	s.Equal([]string{"kitchen closed", "payment refunded"}, order.FailureMessages())
}

func (s *CoordinatorTestSuite) TestDuplicateResponsesAreIgnored() {
	created := s.createOrder()
	completed := s.payment(created.OrderID, domain.PaymentStatusCompleted)

	s.Require().NoError(s.coordinator.HandlePaymentResponse(s.ctx, completed))
	s.Require().NoError(s.coordinator.HandlePaymentResponse(s.ctx, completed))
	s.Len(s.pending(), 2, "duplicate payment must not enqueue a second approval request")

	approved := s.approval(created.OrderID, domain.OrderApprovalStatusApproved)
	s.Require().NoError(s.coordinator.HandleApprovalResponse(s.ctx, approved))
	s.Require().NoError(s.coordinator.HandleApprovalResponse(s.ctx, approved))

	// Поздний отказ после подтверждения тоже не меняет заказ.
	s.Require().NoError(s.coordinator.HandlePaymentResponse(s.ctx, s.payment(created.OrderID, domain.PaymentStatusFailed, "late")))
	s.Equal(domain.OrderStatusApproved, s.status(created.OrderID))
}

func (s *CoordinatorTestSuite) TestResponsesForUnknownOrders() {
	missing := domain.OrderID(uuid.New())

	err := s.coordinator.HandlePaymentResponse(s.ctx, s.payment(missing, domain.PaymentStatusCompleted))
	s.Require().ErrorIs(err, domain.ErrOrderNotFound)

	err = s.coordinator.HandleApprovalResponse(s.ctx, domain.RestaurantApprovalResponse{OrderID: "not-a-uuid", OrderApprovalStatus: domain.OrderApprovalStatusApproved})
	s.Require().ErrorIs(err, domain.ErrInvalidResponse)

	_, err = s.coordinator.TrackOrder(s.ctx, domain.TrackingID(uuid.New()))
	s.Require().ErrorIs(err, domain.ErrOrderNotFound)
}

func TestCoordinatorTestSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorTestSuite))
}

// conflictingOrders отдаёт конфликт версий на первых conflicts сохранениях.
type conflictingOrders struct {
	domain.OrderRepository
	conflicts int
	saves     int
}

func (r *conflictingOrders) Save(ctx context.Context, order *domain.Order) error {
	r.saves++
	if r.saves <= r.conflicts {
		return domain.ErrOrderVersionConflict
	}
	return r.OrderRepository.Save(ctx, order)
}

func TestCoordinatorRetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()
	restaurants := memory.NewRestaurantRepository()
	restaurantID := domain.RestaurantID(uuid.New())
	restaurants.Put(domain.NewRestaurant(restaurantID, true, nil))

	orders := &conflictingOrders{OrderRepository: memory.NewOrderRepository(), conflicts: 2}
	outbox := memory.NewOutboxRepository()
	coordinator := NewCoordinator(orders, restaurants, outbox,
		WithRetryConfig(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}),
	)

	created, err := coordinator.CreateOrder(ctx, CreateOrderCommand{
		CustomerID:   domain.CustomerID(uuid.New()),
		RestaurantID: restaurantID,
		Price:        domain.MustMoney("4.00"),
		Items:        []CreateOrderItem{{ProductID: pizzaID, Quantity: 1, Price: domain.MustMoney("4.00"), SubTotal: domain.MustMoney("4.00")}},
		Address:      domain.StreetAddress{Street: "Lenina 1", PostalCode: "630000", City: "Novosibirsk"},
	})
	require.NoError(t, err)

	err = coordinator.HandlePaymentResponse(ctx, domain.PaymentResponse{
		OrderID:       created.OrderID.String(),
		PaymentStatus: domain.PaymentStatusCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, 3, orders.saves)
	require.Len(t, outbox.AllPending(), 2, "only the successful attempt enqueues OrderPaid")

	orders.conflicts, orders.saves = 10, 0
	err = coordinator.HandleApprovalResponse(ctx, domain.RestaurantApprovalResponse{
		OrderID:             created.OrderID.String(),
		OrderApprovalStatus: domain.OrderApprovalStatusApproved,
	})
	require.True(t, errors.Is(err, domain.ErrOrderVersionConflict), "got %v", err)
	require.Equal(t, 3, orders.saves)
}

type failingTransactor struct{ err error }

func (f failingTransactor) WithinTransaction(context.Context, func(context.Context) error) error {
	return f.err
}

func TestCreateOrderTransactionFailure(t *testing.T) {
	restaurants := memory.NewRestaurantRepository()
	restaurantID := domain.RestaurantID(uuid.New())
	restaurants.Put(domain.NewRestaurant(restaurantID, true, nil))

	txErr := errors.New("connection reset")
	coordinator := NewCoordinator(memory.NewOrderRepository(), restaurants, memory.NewOutboxRepository(),
		WithTransactor(failingTransactor{err: txErr}),
	)

	_, err := coordinator.CreateOrder(context.Background(), CreateOrderCommand{
		CustomerID:   domain.CustomerID(uuid.New()),
		RestaurantID: restaurantID,
		Price:        domain.MustMoney("4.00"),
		Items:        []CreateOrderItem{{ProductID: pizzaID, Quantity: 1, Price: domain.MustMoney("4.00"), SubTotal: domain.MustMoney("4.00")}},
		Address:      domain.StreetAddress{Street: "Lenina 1", PostalCode: "630000", City: "Novosibirsk"},
	})
	require.ErrorIs(t, err, txErr)
}
