package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый инициализированный заказ. Возвращает ErrOrderAlreadyExists, если ID занят.
	Create(ctx context.Context, order *Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id OrderID) (*Order, error)
	// GetByTrackingID ищет заказ по публичному трекинг-идентификатору.
	GetByTrackingID(ctx context.Context, id TrackingID) (*Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order *Order) error
}

// RestaurantRepository отдаёт актуальный снимок ресторана и его каталога.
type RestaurantRepository interface {
	// Get возвращает ресторан или ErrRestaurantNotFound.
	Get(ctx context.Context, id RestaurantID) (Restaurant, error)
}

// Transactor выполняет fn атомарно: изменения заказа и записи outbox фиксируются вместе.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
