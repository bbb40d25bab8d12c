package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodorder/internal/metrics"
)

// Типы событий timeline.
const (
	TimelineOrderCreated    = "order.created"
	TimelineOrderPaid       = "order.paid"
	TimelineOrderApproved   = "order.approved"
	TimelineOrderCancelling = "order.cancelling"
	TimelineOrderCancelled  = "order.cancelled"
)

const aggregateTypeOrder = "order"

// Coordinator ведёт сагу заказа: создаёт заказ, публикует события через outbox
// и применяет ответы сервиса оплаты и ресторанов.
type Coordinator struct {
	orders      domain.OrderRepository
	restaurants domain.RestaurantRepository
	outbox      domain.OutboxRepository
	tx          domain.Transactor
	timeline    domain.TimelineRepository
	service     *domain.OrderDomainService
	clock       domain.Clock
	ids         domain.IDGenerator
	logger      *log.Entry
	metrics     *metrics.SagaMetrics
	retry       RetryConfig
	locks       *keyedMutex
}

// Option настраивает Coordinator.
type Option func(*Coordinator)

// WithTransactor задаёт границу транзакции для заказа и outbox.
func WithTransactor(tx domain.Transactor) Option {
	return func(c *Coordinator) { c.tx = tx }
}

// WithTimeline включает запись событий жизненного цикла.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(c *Coordinator) { c.timeline = timeline }
}

// WithMetrics включает prometheus-метрики.
func WithMetrics(m *metrics.SagaMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithLogger(logger *log.Entry) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithClock(clock domain.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithIDGenerator(ids domain.IDGenerator) Option {
	return func(c *Coordinator) { c.ids = ids }
}

func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Coordinator) { c.retry = cfg }
}

// NewCoordinator создаёт координатор саги.
func NewCoordinator(
	orders domain.OrderRepository,
	restaurants domain.RestaurantRepository,
	outbox domain.OutboxRepository,
	options ...Option,
) *Coordinator {
	c := &Coordinator{
		orders:      orders,
		restaurants: restaurants,
		outbox:      outbox,
		retry:       DefaultRetryConfig(),
		locks:       newKeyedMutex(),
	}
	for _, option := range options {
		option(c)
	}

	if c.logger == nil {
		c.logger = log.WithField("component", "saga")
	}
	if c.clock == nil {
		c.clock = domain.SystemClock{}
	}
	if c.ids == nil {
		c.ids = domain.UUIDGenerator{}
	}
	if c.tx == nil {
		c.tx = directTransactor{}
	}
	c.retry = c.retry.normalized()
	c.service = domain.NewOrderDomainService(
		domain.WithClock(c.clock),
		domain.WithIDGenerator(c.ids),
		domain.WithLogger(c.logger.WithField("layer", "domain")),
	)
	return c
}

// CreateOrderItem — позиция заказа в запросе клиента.
type CreateOrderItem struct {
	ProductID domain.ProductID `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     domain.Money     `json:"price"`
	SubTotal  domain.Money     `json:"sub_total"`
}

// CreateOrderCommand — запрос клиента на создание заказа.
type CreateOrderCommand struct {
	CustomerID   domain.CustomerID    `json:"customer_id"`
	RestaurantID domain.RestaurantID  `json:"restaurant_id"`
	Price        domain.Money         `json:"price"`
	Items        []CreateOrderItem    `json:"items"`
	Address      domain.StreetAddress `json:"address"`
}

// CreateOrderResult — ответ на создание заказа.
type CreateOrderResult struct {
	OrderID    domain.OrderID     `json:"order_id"`
	TrackingID domain.TrackingID  `json:"order_tracking_id"`
	Status     domain.OrderStatus `json:"order_status"`
	Message    string             `json:"message"`
}

// TrackOrderResult — текущее состояние заказа для клиента.
type TrackOrderResult struct {
	TrackingID      domain.TrackingID      `json:"order_tracking_id"`
	Status          domain.OrderStatus     `json:"order_status"`
	FailureMessages []string               `json:"failure_messages,omitempty"`
	Timeline        []domain.TimelineEvent `json:"timeline,omitempty"`
}

func (cmd CreateOrderCommand) toOrder(ids domain.IDGenerator) *domain.Order {
	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		product := domain.NewOrderProduct(item.ProductID, "", item.Price)
		items = append(items, domain.NewOrderItem(product, item.Quantity, item.Price, item.SubTotal))
	}

	address := cmd.Address
	if address.ID == uuid.Nil {
		address.ID = ids.NewUUID()
	}

	return domain.NewOrder(domain.OrderParams{
		CustomerID:      cmd.CustomerID,
		RestaurantID:    cmd.RestaurantID,
		DeliveryAddress: address,
		Price:           cmd.Price,
		Items:           items,
	})
}

// CreateOrder проверяет заказ по каталогу ресторана, сохраняет его и ставит
// OrderCreated в outbox одной транзакцией.
func (c *Coordinator) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	started := time.Now()
	logger := c.logger.WithFields(log.Fields{
		"customer_id":   cmd.CustomerID.String(),
		"restaurant_id": cmd.RestaurantID.String(),
	})

	restaurant, err := c.restaurants.Get(ctx, cmd.RestaurantID)
	if err != nil {
		logger.WithError(err).Warn("restaurant lookup failed")
		return CreateOrderResult{}, fmt.Errorf("create order: %w", err)
	}

	order := cmd.toOrder(c.ids)
	event, err := c.service.ValidateAndInitiateOrder(order, restaurant)
	if err != nil {
		logger.WithError(err).Warn("order rejected")
		return CreateOrderResult{}, err
	}

	err = c.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := c.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("persist order: %w", err)
		}
		return c.enqueue(ctx, event)
	})
	if err != nil {
		c.recordFailure()
		logger.WithError(err).Error("create order failed")
		return CreateOrderResult{}, err
	}

	c.appendTimeline(ctx, order, TimelineOrderCreated, "", event.OccurredAt())
	if c.metrics != nil {
		c.metrics.RecordSagaStarted()
		c.metrics.RecordStepDuration(string(domain.SagaStepCreate), time.Since(started))
	}
	logger.WithFields(log.Fields{
		"order_id":    order.ID().String(),
		"tracking_id": order.TrackingID().String(),
	}).Info("order created")

	return CreateOrderResult{
		OrderID:    order.ID(),
		TrackingID: order.TrackingID(),
		Status:     order.Status(),
		Message:    "Order created successfully",
	}, nil
}

// TrackOrder возвращает статус заказа по трекинг-идентификатору.
func (c *Coordinator) TrackOrder(ctx context.Context, trackingID domain.TrackingID) (TrackOrderResult, error) {
	order, err := c.orders.GetByTrackingID(ctx, trackingID)
	if err != nil {
		return TrackOrderResult{}, fmt.Errorf("track order %s: %w", trackingID, err)
	}

	result := TrackOrderResult{
		TrackingID:      order.TrackingID(),
		Status:          order.Status(),
		FailureMessages: order.FailureMessages(),
	}
	if c.timeline != nil {
		events, err := c.timeline.List(ctx, order.ID())
		if err != nil {
			c.logger.WithError(err).WithField("order_id", order.ID().String()).Warn("load timeline failed")
		} else {
			result.Timeline = events
		}
	}
	return result, nil
}

// enqueue ставит доменное событие в outbox с топиком его получателя.
func (c *Coordinator) enqueue(ctx context.Context, event domain.OrderEvent) error {
	topic, err := kafka.TopicForEvent(event.EventType())
	if err != nil {
		return err
	}

	id := c.ids.NewUUID().String()
	payload, err := json.Marshal(kafka.NewOrderEventMessage(id, event))
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType(), err)
	}

	_, err = c.outbox.Enqueue(ctx, domain.OutboxMessage{
		ID:            id,
		AggregateType: aggregateTypeOrder,
		AggregateID:   event.Order().ID.String(),
		EventType:     string(event.EventType()),
		Topic:         topic,
		Payload:       payload,
		CreatedAt:     event.OccurredAt(),
	})
	if err != nil {
		return fmt.Errorf("enqueue %s event: %w", event.EventType(), err)
	}
	if c.metrics != nil {
		c.metrics.RecordOutboxEvent()
	}
	return nil
}

func (c *Coordinator) appendTimeline(ctx context.Context, order *domain.Order, eventType, reason string, at time.Time) {
	if c.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  order.ID(),
		Type:     eventType,
		Status:   order.Status(),
		Reason:   reason,
		Occurred: at,
	}
	if err := c.timeline.Append(ctx, event); err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID().String(),
			"event":    eventType,
		}).Warn("append timeline event failed")
		return
	}
	if c.metrics != nil {
		c.metrics.RecordTimelineEvent()
	}
}

// sagaAge считает возраст саги по первому событию timeline.
func (c *Coordinator) sagaAge(ctx context.Context, orderID domain.OrderID) time.Duration {
	if c.timeline == nil {
		return 0
	}
	events, err := c.timeline.List(ctx, orderID)
	if err != nil || len(events) == 0 {
		return 0
	}
	return c.clock.Now().Sub(events[0].Occurred)
}

func (c *Coordinator) recordFailure() {
	if c.metrics != nil {
		c.metrics.RecordSagaFailed()
	}
}

// directTransactor выполняет fn без транзакции (in-memory хранилище).
type directTransactor struct{}

func (directTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
