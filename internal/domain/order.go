package domain

import (
	"strings"

	"github.com/samber/lo"
)

const (
	opInitialize     = "initialize"
	opValidate       = "validate"
	opPay            = "pay"
	opApprove        = "approve"
	opInitCancelling = "init cancelling"
	opCancel         = "cancel"
)

// OrderParams — данные входящего запроса, из которых собирается неинициализированный заказ.
type OrderParams struct {
	CustomerID      CustomerID
	RestaurantID    RestaurantID
	DeliveryAddress StreetAddress
	Price           Money
	Items           []OrderItem
}

// Order — корень агрегата заказа. Все изменения проходят через методы,
// которые либо применяются целиком, либо возвращают ошибку без изменения состояния.
type Order struct {
	id              OrderID
	customerID      CustomerID
	restaurantID    RestaurantID
	trackingID      TrackingID
	deliveryAddress StreetAddress
	price           Money
	items           []OrderItem
	status          OrderStatus
	failureMessages []string
	version         int64
}

// NewOrder создаёт заказ без статуса и идентификаторов; их назначает InitializeOrder.
func NewOrder(p OrderParams) *Order {
	items := make([]OrderItem, len(p.Items))
	copy(items, p.Items)
	return &Order{
		customerID:      p.CustomerID,
		restaurantID:    p.RestaurantID,
		deliveryAddress: p.DeliveryAddress,
		price:           p.Price,
		items:           items,
	}
}

func (o *Order) ID() OrderID                    { return o.id }
func (o *Order) CustomerID() CustomerID         { return o.customerID }
func (o *Order) RestaurantID() RestaurantID     { return o.restaurantID }
func (o *Order) TrackingID() TrackingID         { return o.trackingID }
func (o *Order) DeliveryAddress() StreetAddress { return o.deliveryAddress }
func (o *Order) Price() Money                   { return o.price }
func (o *Order) Status() OrderStatus            { return o.status }

// Version — версия для optimistic locking в хранилище.
func (o *Order) Version() int64 { return o.version }

// Items возвращает копию позиций заказа.
func (o *Order) Items() []OrderItem {
	items := make([]OrderItem, len(o.items))
	copy(items, o.items)
	return items
}

// FailureMessages возвращает копию накопленных причин отмены.
func (o *Order) FailureMessages() []string {
	msgs := make([]string, len(o.failureMessages))
	copy(msgs, o.failureMessages)
	return msgs
}

// InitializeOrder назначает идентификаторы случайными UUID и переводит заказ в PENDING.
func (o *Order) InitializeOrder() error {
	return o.InitializeOrderWith(UUIDGenerator{})
}

// InitializeOrderWith назначает OrderID, TrackingID и номера позиций и переводит заказ в PENDING.
// Допустима только для заказа без статуса; инварианты цены проверяются до любых изменений.
func (o *Order) InitializeOrderWith(ids IDGenerator) error {
	if !o.canInitialize() {
		return newValidationError(opInitialize, o.id,
			"order %s is not in correct state for initialization", o.id)
	}
	if err := o.checkInvariants(opInitialize); err != nil {
		return err
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}

	o.id = OrderID(ids.NewUUID())
	o.trackingID = TrackingID(ids.NewUUID())
	o.status = OrderStatusPending
	for i := range o.items {
		o.items[i].id = OrderItemID(i + 1)
	}
	return nil
}

// ValidateOrder перепроверяет позиции, подытоги и итоговую сумму заказа. Заказ не меняется.
// Разрешена до инициализации и в статусе PENDING.
func (o *Order) ValidateOrder() error {
	if o.status != "" && o.status != OrderStatusPending {
		return newValidationError(opValidate, o.id,
			"order %s is not in correct state for validation", o.id)
	}
	return o.checkInvariants(opValidate)
}

func (o *Order) checkInvariants(op string) error {
	if len(o.items) == 0 {
		return newValidationError(op, o.id, "order %s must contain at least one item", o.id)
	}
	if errs := o.deliveryAddress.Validate(); len(errs) > 0 {
		return newValidationError(op, o.id, "order %s delivery address is invalid: %v", o.id, errs[0])
	}
	if !o.price.IsGreaterThanZero() {
		return newValidationError(op, o.id, "order %s total price must be greater than zero", o.id)
	}

	itemsTotal := ZeroMoney
	for _, item := range o.items {
		if err := item.validate(op, o.id); err != nil {
			return err
		}
		itemsTotal = itemsTotal.Add(item.subTotal)
	}
	if !itemsTotal.Equal(o.price) {
		return newValidationError(op, o.id,
			"order %s total price %s is not equal to order items total %s", o.id, o.price, itemsTotal)
	}
	return nil
}

// Pay переводит заказ из PENDING в PAID.
func (o *Order) Pay() error {
	if o.status != OrderStatusPending {
		return o.stateError(opPay)
	}
	o.status = OrderStatusPaid
	return nil
}

// Approve переводит заказ из PAID в APPROVED.
func (o *Order) Approve() error {
	if o.status != OrderStatusPaid {
		return o.stateError(opApprove)
	}
	o.status = OrderStatusApproved
	return nil
}

// InitCancelling начинает компенсацию оплаченного заказа: PAID → CANCELLING.
func (o *Order) InitCancelling(failureMessages []string) error {
	if o.status != OrderStatusPaid {
		return o.stateError(opInitCancelling)
	}
	o.status = OrderStatusCancelling
	o.appendFailureMessages(failureMessages)
	return nil
}

// Cancel окончательно отменяет заказ. Допустимо из PENDING (оплаты не было)
// и из CANCELLING (оплата уже компенсирована).
func (o *Order) Cancel(failureMessages []string) error {
	if o.status != OrderStatusPending && o.status != OrderStatusCancelling {
		return o.stateError(opCancel)
	}
	o.status = OrderStatusCancelled
	o.appendFailureMessages(failureMessages)
	return nil
}

func (o *Order) canInitialize() bool {
	return o.status == "" && o.id.IsZero() && o.trackingID.IsZero()
}

func (o *Order) stateError(op string) error {
	return newValidationError(op, o.id,
		"order %s is not in correct state for %s operation (status %q)", o.id, op, o.status)
}

func (o *Order) appendFailureMessages(msgs []string) {
	filtered := lo.Filter(msgs, func(msg string, _ int) bool {
		return strings.TrimSpace(msg) != ""
	})
	o.failureMessages = append(o.failureMessages, filtered...)
}

// reconcileWithCatalog подменяет название и цену товаров данными ресторана.
// Позиции, которых нет в каталоге, не меняются.
func (o *Order) reconcileWithCatalog(restaurant Restaurant) {
	catalog := restaurant.productIndex()
	for i := range o.items {
		confirmed, ok := catalog[o.items[i].product.ID()]
		if !ok {
			continue
		}
		o.items[i].applyConfirmedProduct(confirmed)
	}
}
