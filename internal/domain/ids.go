package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// OrderID идентифицирует заказ.
type OrderID uuid.UUID

// CustomerID идентифицирует клиента.
type CustomerID uuid.UUID

// RestaurantID идентифицирует ресторан.
type RestaurantID uuid.UUID

// ProductID идентифицирует товар в каталоге ресторана.
type ProductID uuid.UUID

// TrackingID — публичный идентификатор для отслеживания заказа клиентом.
type TrackingID uuid.UUID

// OrderItemID — порядковый номер позиции внутри заказа (начиная с 1).
type OrderItemID int64

func (id OrderID) String() string      { return uuid.UUID(id).String() }
func (id CustomerID) String() string   { return uuid.UUID(id).String() }
func (id RestaurantID) String() string { return uuid.UUID(id).String() }
func (id ProductID) String() string    { return uuid.UUID(id).String() }
func (id TrackingID) String() string   { return uuid.UUID(id).String() }

// IsZero сообщает, что идентификатор ещё не назначен.
func (id OrderID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id CustomerID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RestaurantID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ProductID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TrackingID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

// MarshalText/UnmarshalText сериализуют идентификаторы строкой UUID.
func (id OrderID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id CustomerID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id RestaurantID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ProductID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id TrackingID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *OrderID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CustomerID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RestaurantID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProductID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TrackingID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseOrderID разбирает строковое представление идентификатора заказа.
func ParseOrderID(s string) (OrderID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return OrderID{}, fmt.Errorf("parse order id %q: %w", s, err)
	}
	return OrderID(id), nil
}

// ParseCustomerID разбирает идентификатор клиента.
func ParseCustomerID(s string) (CustomerID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return CustomerID{}, fmt.Errorf("parse customer id %q: %w", s, err)
	}
	return CustomerID(id), nil
}

// ParseRestaurantID разбирает идентификатор ресторана.
func ParseRestaurantID(s string) (RestaurantID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return RestaurantID{}, fmt.Errorf("parse restaurant id %q: %w", s, err)
	}
	return RestaurantID(id), nil
}

// ParseProductID разбирает идентификатор товара.
func ParseProductID(s string) (ProductID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ProductID{}, fmt.Errorf("parse product id %q: %w", s, err)
	}
	return ProductID(id), nil
}

// ParseTrackingID разбирает трекинг-идентификатор.
func ParseTrackingID(s string) (TrackingID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TrackingID{}, fmt.Errorf("parse tracking id %q: %w", s, err)
	}
	return TrackingID(id), nil
}

// IDGenerator выдаёт новые уникальные значения для идентификаторов агрегата.
type IDGenerator interface {
	NewUUID() uuid.UUID
}

// UUIDGenerator генерирует случайные UUID v4.
type UUIDGenerator struct{}

// NewUUID возвращает случайный UUID.
func (UUIDGenerator) NewUUID() uuid.UUID { return uuid.New() }

var _ IDGenerator = UUIDGenerator{}
