package domain

import "fmt"

// OrderItemSnapshot — плоское представление позиции заказа.
type OrderItemSnapshot struct {
	ID          OrderItemID `json:"id"`
	ProductID   ProductID   `json:"product_id"`
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	Price       Money       `json:"price"`
	SubTotal    Money       `json:"sub_total"`
}

// OrderSnapshot — неизменяемая проекция заказа. Используется в событиях и при сохранении в хранилище.
type OrderSnapshot struct {
	ID              OrderID             `json:"order_id"`
	CustomerID      CustomerID          `json:"customer_id"`
	RestaurantID    RestaurantID        `json:"restaurant_id"`
	TrackingID      TrackingID          `json:"tracking_id"`
	DeliveryAddress StreetAddress       `json:"delivery_address"`
	Price           Money               `json:"price"`
	Items           []OrderItemSnapshot `json:"items"`
	Status          OrderStatus         `json:"status"`
	FailureMessages []string            `json:"failure_messages,omitempty"`
	Version         int64               `json:"-"`
}

// Snapshot снимает копию текущего состояния заказа.
func (o *Order) Snapshot() OrderSnapshot {
	items := make([]OrderItemSnapshot, len(o.items))
	for i, item := range o.items {
		items[i] = OrderItemSnapshot{
			ID:          item.id,
			ProductID:   item.product.ID(),
			ProductName: item.product.Name(),
			Quantity:    item.quantity,
			Price:       item.price,
			SubTotal:    item.subTotal,
		}
	}
	return OrderSnapshot{
		ID:              o.id,
		CustomerID:      o.customerID,
		RestaurantID:    o.restaurantID,
		TrackingID:      o.trackingID,
		DeliveryAddress: o.deliveryAddress,
		Price:           o.price,
		Items:           items,
		Status:          o.status,
		FailureMessages: o.FailureMessages(),
		Version:         o.version,
	}
}

// RestoreOrder восстанавливает инициализированный заказ из хранилища.
// Инварианты суммы перепроверяются, чтобы повреждённая запись не попала в сагу.
func RestoreOrder(s OrderSnapshot) (*Order, error) {
	if s.ID.IsZero() || s.TrackingID.IsZero() {
		return nil, fmt.Errorf("restore order: ids are not assigned")
	}
	if !s.Status.Valid() {
		return nil, fmt.Errorf("restore order %s: invalid status %q", s.ID, s.Status)
	}

	items := make([]OrderItem, len(s.Items))
	for i, item := range s.Items {
		items[i] = OrderItem{
			id:       item.ID,
			product:  NewOrderProduct(item.ProductID, item.ProductName, item.Price),
			quantity: item.Quantity,
			price:    item.Price,
			subTotal: item.SubTotal,
		}
	}
	msgs := make([]string, len(s.FailureMessages))
	copy(msgs, s.FailureMessages)

	order := &Order{
		id:              s.ID,
		customerID:      s.CustomerID,
		restaurantID:    s.RestaurantID,
		trackingID:      s.TrackingID,
		deliveryAddress: s.DeliveryAddress,
		price:           s.Price,
		items:           items,
		status:          s.Status,
		failureMessages: msgs,
		version:         s.Version,
	}
	if err := order.checkInvariants("restore"); err != nil {
		return nil, fmt.Errorf("restore order %s: %w", s.ID, err)
	}
	return order, nil
}
