package domain

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// OrderDomainService проводит заказ через шаги саги и возвращает события для следующего шага.
// Сервис не хранит состояния: результат зависит только от переданного заказа, ресторана и часов.
type OrderDomainService struct {
	clock  Clock
	ids    IDGenerator
	logger *log.Entry
}

// DomainServiceOption настраивает OrderDomainService.
type DomainServiceOption func(*OrderDomainService)

// WithClock задаёт источник времени для событий.
func WithClock(clock Clock) DomainServiceOption {
	return func(s *OrderDomainService) {
		s.clock = clock
	}
}

// WithIDGenerator задаёт генератор идентификаторов заказа.
func WithIDGenerator(ids IDGenerator) DomainServiceOption {
	return func(s *OrderDomainService) {
		s.ids = ids
	}
}

// WithLogger задаёт logger; без него сервис ничего не пишет.
func WithLogger(logger *log.Entry) DomainServiceOption {
	return func(s *OrderDomainService) {
		s.logger = logger
	}
}

// NewOrderDomainService создаёт доменный сервис.
func NewOrderDomainService(options ...DomainServiceOption) *OrderDomainService {
	s := &OrderDomainService{}
	for _, option := range options {
		option(s)
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.ids == nil {
		s.ids = UUIDGenerator{}
	}
	if s.logger == nil {
		discard := log.New()
		discard.SetOutput(io.Discard)
		s.logger = discard.WithField("component", "order-domain")
	}
	return s
}

// ValidateAndInitiateOrder проверяет ресторан, сверяет позиции с его каталогом,
// валидирует и инициализирует заказ.
func (s *OrderDomainService) ValidateAndInitiateOrder(order *Order, restaurant Restaurant) (OrderCreatedEvent, error) {
	if !restaurant.Active() {
		return OrderCreatedEvent{}, newValidationError("validate restaurant", order.ID(),
			"restaurant with id %s is not active", restaurant.ID())
	}
	// Повторная инициализация не должна трогать позиции уже созданного заказа.
	if !order.canInitialize() {
		return OrderCreatedEvent{}, order.stateError(opInitialize)
	}
	// Сверка с каталогом до валидации: итог проверяется по ценам ресторана.
	order.reconcileWithCatalog(restaurant)

	if err := order.ValidateOrder(); err != nil {
		return OrderCreatedEvent{}, err
	}
	if err := order.InitializeOrderWith(s.ids); err != nil {
		return OrderCreatedEvent{}, err
	}

	s.logger.WithField("order_id", order.ID().String()).Info("order is initiated")
	return NewOrderCreatedEvent(order, s.clock.Now()), nil
}

// PayOrder фиксирует оплату заказа.
func (s *OrderDomainService) PayOrder(order *Order) (OrderPaidEvent, error) {
	if err := order.Pay(); err != nil {
		return OrderPaidEvent{}, err
	}
	s.logger.WithField("order_id", order.ID().String()).Info("order is paid")
	return NewOrderPaidEvent(order, s.clock.Now()), nil
}

// ApproveOrder подтверждает заказ. События нет: финальный статус сообщает вызывающая сторона.
func (s *OrderDomainService) ApproveOrder(order *Order) error {
	if err := order.Approve(); err != nil {
		return err
	}
	s.logger.WithField("order_id", order.ID().String()).Info("order is approved")
	return nil
}

// CancelOrderPayment начинает компенсацию оплаты и возвращает событие для сервиса оплаты.
func (s *OrderDomainService) CancelOrderPayment(order *Order, failureMessages []string) (OrderCancelledEvent, error) {
	if err := order.InitCancelling(failureMessages); err != nil {
		return OrderCancelledEvent{}, err
	}
	s.logger.WithField("order_id", order.ID().String()).Info("order payment is cancelling")
	return NewOrderCancelledEvent(order, s.clock.Now()), nil
}

// CancelOrder окончательно отменяет заказ. Как и ApproveOrder, событие не возвращает.
func (s *OrderDomainService) CancelOrder(order *Order, failureMessages []string) error {
	if err := order.Cancel(failureMessages); err != nil {
		return err
	}
	s.logger.WithField("order_id", order.ID().String()).Info("order is cancelled")
	return nil
}
