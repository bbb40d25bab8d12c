package integration

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodorder/internal/service/approval"
	"github.com/vladislavdragonenkov/foodorder/internal/service/outbox"
	"github.com/vladislavdragonenkov/foodorder/internal/service/payment"
	"github.com/vladislavdragonenkov/foodorder/internal/service/saga"
	"github.com/vladislavdragonenkov/foodorder/internal/storage/memory"
)

var (
	restaurantID = domain.RestaurantID(uuid.MustParse("d215b5f8-0249-4dc5-89a3-51fd148cfb45"))
	burgerID     = domain.ProductID(uuid.MustParse("d215b5f8-0249-4dc5-89a3-51fd148cfb47"))
	friesID      = domain.ProductID(uuid.MustParse("d215b5f8-0249-4dc5-89a3-51fd148cfb48"))
)

// memoryBus заменяет брокер: хранит сообщения в порядке публикации и отдаёт их по запросу.
type memoryBus struct {
	mu        sync.Mutex
	queue     []*sarama.ConsumerMessage
	failNext  int
	duplicate bool
	delivered map[string]int
}

func newMemoryBus() *memoryBus {
	return &memoryBus{delivered: make(map[string]int)}
}

func (b *memoryBus) Publish(_ context.Context, msg domain.OutboxMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext > 0 {
		b.failNext--
		return errors.New("broker unavailable")
	}
	b.enqueueLocked(msg.Topic, msg.AggregateID, msg.Payload)
	return nil
}

func (b *memoryBus) PublishJSON(_ context.Context, topic, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enqueueLocked(topic, key, raw)
	return nil
}

func (b *memoryBus) enqueueLocked(topic, key string, value []byte) {
	msg := &sarama.ConsumerMessage{Topic: topic, Key: []byte(key), Value: value}
	b.queue = append(b.queue, msg)
	if b.duplicate {
		b.queue = append(b.queue, msg)
	}
}

func (b *memoryBus) next() (*sarama.ConsumerMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil, false
	}
	msg := b.queue[0]
	b.queue = b.queue[1:]
	b.delivered[msg.Topic]++
	return msg, true
}

func (b *memoryBus) deliveredTo(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delivered[topic]
}

// OrderLifecycleTestSuite прогоняет сагу заказа целиком: команда создания, outbox, участники и их ответы.
type OrderLifecycleTestSuite struct {
	suite.Suite

	ctx         context.Context
	coordinator *saga.Coordinator
	orders      domain.OrderRepository
	outboxRepo  *memory.OutboxRepository
	worker      *outbox.Worker
	bus         *memoryBus
	payment     *payment.Simulator
	approval    *approval.Simulator
	requests    kafka.MessageHandler
	responses   kafka.MessageHandler
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	restaurants := memory.NewRestaurantRepository()
	restaurants.Put(domain.NewRestaurant(restaurantID, true, []domain.Product{
		domain.NewProduct(burgerID, "burger", domain.MustMoney("50.00"), true),
		domain.NewProduct(friesID, "fries", domain.MustMoney("12.50"), true),
	}))

	s.ctx = context.Background()
	s.orders = memory.NewOrderRepository()
	s.outboxRepo = memory.NewOutboxRepository()
	s.coordinator = saga.NewCoordinator(s.orders, restaurants, s.outboxRepo,
		saga.WithTimeline(memory.NewTimelineRepository()),
		saga.WithLogger(logger),
	)

	s.bus = newMemoryBus()
	s.worker = outbox.NewWorker(s.outboxRepo, s.bus,
		outbox.WithLogger(logger),
		outbox.WithMaxAttempts(3),
		outbox.WithRetryBaseDelay(0),
	)
	s.payment = payment.NewSimulator()
	s.approval = approval.NewSimulator()
	s.requests = kafka.NewParticipantRouter(s.payment, s.approval, s.bus)
	s.responses = kafka.NewResponseRouter(s.coordinator)
}

func createCommand(customerID domain.CustomerID) saga.CreateOrderCommand {
	return saga.CreateOrderCommand{
		CustomerID:   customerID,
		RestaurantID: restaurantID,
		Price:        domain.MustMoney("75.00"),
		Items: []saga.CreateOrderItem{
			{ProductID: burgerID, Quantity: 1, Price: domain.MustMoney("50.00"), SubTotal: domain.MustMoney("50.00")},
			{ProductID: friesID, Quantity: 2, Price: domain.MustMoney("12.50"), SubTotal: domain.MustMoney("25.00")},
		},
		Address: domain.StreetAddress{
			ID:         uuid.New(),
			Street:     "street_1",
			PostalCode: "1000AB",
			City:       "Amsterdam",
		},
	}
}

func (s *OrderLifecycleTestSuite) createOrder(customerID domain.CustomerID) saga.CreateOrderResult {
	result, err := s.coordinator.CreateOrder(s.ctx, createCommand(customerID))
	s.Require().NoError(err)
	s.Require().Equal(domain.OrderStatusPending, result.Status)
	return result
}

// settle гоняет outbox и доставку сообщений, пока система не успокоится.
func (s *OrderLifecycleTestSuite) settle() {
	for round := 0; round < 20; round++ {
		s.worker.ProcessOnce(s.ctx)

		progressed := false
		for {
			msg, ok := s.bus.next()
			if !ok {
				break
			}
			progressed = true
			switch msg.Topic {
			case kafka.TopicPaymentRequests, kafka.TopicApprovalRequests:
				s.Require().NoError(s.requests(s.ctx, msg))
			case kafka.TopicPaymentResponses, kafka.TopicApprovalResponses:
				s.Require().NoError(s.responses(s.ctx, msg))
			default:
				s.FailNow("unexpected topic " + msg.Topic)
			}
		}

		if !progressed && len(s.outboxRepo.AllPending()) == 0 {
			return
		}
	}
	s.FailNow("saga did not settle")
}

func (s *OrderLifecycleTestSuite) track(result saga.CreateOrderResult) saga.TrackOrderResult {
	tracked, err := s.coordinator.TrackOrder(s.ctx, result.TrackingID)
	s.Require().NoError(err)
	return tracked
}

func timelineTypes(events []domain.TimelineEvent) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func (s *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	result := s.createOrder(domain.CustomerID(uuid.New()))

	s.settle()

	tracked := s.track(result)
	s.Equal(domain.OrderStatusApproved, tracked.Status)
	s.Empty(tracked.FailureMessages)
	s.Equal([]string{
		saga.TimelineOrderCreated,
		saga.TimelineOrderPaid,
		saga.TimelineOrderApproved,
	}, timelineTypes(tracked.Timeline))

	charges, refunds := s.payment.Calls()
	s.Equal(1, charges)
	s.Zero(refunds)
	approved, rejected := s.approval.Calls()
	s.Equal(1, approved)
	s.Zero(rejected)
}

func (s *OrderLifecycleTestSuite) TestPaymentFailureCancelsOrder() {
	customer := domain.CustomerID(uuid.New())
	s.payment.FailCustomers[customer] = true
	result := s.createOrder(customer)

	s.settle()

	tracked := s.track(result)
	s.Equal(domain.OrderStatusCancelled, tracked.Status)
	s.Require().Len(tracked.FailureMessages, 1)
	s.Contains(tracked.FailureMessages[0], "declined")
	s.Zero(s.bus.deliveredTo(kafka.TopicApprovalRequests))
	s.Equal([]string{saga.TimelineOrderCreated, saga.TimelineOrderCancelled}, timelineTypes(tracked.Timeline))
}

func (s *OrderLifecycleTestSuite) TestCreditLimitCancelsOrder() {
	s.payment.CreditLimit = domain.MustMoney("70.00")
	result := s.createOrder(domain.CustomerID(uuid.New()))

	s.settle()

	tracked := s.track(result)
	s.Equal(domain.OrderStatusCancelled, tracked.Status)
	s.Contains(tracked.FailureMessages[0], "not enough credit")
}

func (s *OrderLifecycleTestSuite) TestRestaurantRejectionCompensatesPayment() {
	s.approval.ClosedRestaurants[restaurantID] = true
	result := s.createOrder(domain.CustomerID(uuid.New()))

	s.settle()

	tracked := s.track(result)
	s.Equal(domain.OrderStatusCancelled, tracked.Status)
	s.Require().NotEmpty(tracked.FailureMessages)
	s.Contains(tracked.FailureMessages[0], "not accepting orders")
	s.Equal([]string{
		saga.TimelineOrderCreated,
		saga.TimelineOrderPaid,
		saga.TimelineOrderCancelling,
		saga.TimelineOrderCancelled,
	}, timelineTypes(tracked.Timeline))

	charges, refunds := s.payment.Calls()
	s.Equal(1, charges)
	s.Equal(1, refunds)
}

func (s *OrderLifecycleTestSuite) TestDuplicateDeliveriesAreIgnored() {
	s.bus.duplicate = true
	result := s.createOrder(domain.CustomerID(uuid.New()))

	s.settle()

	tracked := s.track(result)
	s.Equal(domain.OrderStatusApproved, tracked.Status)
	s.Len(tracked.Timeline, 3)
}

func (s *OrderLifecycleTestSuite) TestBrokerOutageIsRetried() {
	s.bus.failNext = 2
	result := s.createOrder(domain.CustomerID(uuid.New()))

	s.settle()

	s.Equal(domain.OrderStatusApproved, s.track(result).Status)
	s.Empty(s.outboxRepo.AllPending())
}

func (s *OrderLifecycleTestSuite) TestConcurrentOrders() {
	const orders = 10
	results := make([]saga.CreateOrderResult, orders)
	errs := make([]error, orders)
	var wg sync.WaitGroup
	for i := range orders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.coordinator.CreateOrder(s.ctx, createCommand(domain.CustomerID(uuid.New())))
		}()
	}
	wg.Wait()
	s.Require().NoError(errors.Join(errs...))

	s.settle()

	for _, result := range results {
		s.Equal(domain.OrderStatusApproved, s.track(result).Status)
	}
	charges, _ := s.payment.Calls()
	s.Equal(orders, charges)
}

func TestOrderLifecycle(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}

func TestUnknownOrderResponseIsUnprocessable(t *testing.T) {
	coordinator := saga.NewCoordinator(
		memory.NewOrderRepository(),
		memory.NewRestaurantRepository(),
		memory.NewOutboxRepository(),
	)
	raw, err := json.Marshal(domain.PaymentResponse{
		ID:            uuid.NewString(),
		OrderID:       uuid.NewString(),
		PaymentStatus: domain.PaymentStatusCompleted,
	})
	require.NoError(t, err)

	err = kafka.NewResponseRouter(coordinator)(context.Background(), &sarama.ConsumerMessage{
		Topic: kafka.TopicPaymentResponses,
		Value: raw,
	})
	require.ErrorIs(t, err, kafka.ErrUnprocessableMessage)
}
