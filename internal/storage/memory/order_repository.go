package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
// Хранит снимки заказов, поэтому изменения агрегата вне Save не видны другим читателям.
type orderRepositoryInMemory struct {
	mu         sync.RWMutex
	items      map[domain.OrderID]domain.OrderSnapshot
	byTracking map[domain.TrackingID]domain.OrderID
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:      make(map[domain.OrderID]domain.OrderSnapshot),
		byTracking: make(map[domain.TrackingID]domain.OrderID),
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID()]; exists {
		return domain.ErrOrderAlreadyExists
	}
	snap := order.Snapshot()
	snap.Version = 0
	r.items[snap.ID] = snap
	r.byTracking[snap.TrackingID] = snap.ID
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id domain.OrderID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.restore(id)
}

// GetByTrackingID ищет заказ по трекинг-идентификатору.
func (r *orderRepositoryInMemory) GetByTrackingID(_ context.Context, id domain.TrackingID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.byTracking[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return r.restore(orderID)
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID()]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version() {
		return domain.ErrOrderVersionConflict
	}
	snap := order.Snapshot()
	// Инкрементируем версию перед сохранением.
	snap.Version++
	r.items[snap.ID] = snap
	return nil
}

func (r *orderRepositoryInMemory) restore(id domain.OrderID) (*domain.Order, error) {
	snap, ok := r.items[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return domain.RestoreOrder(snap)
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
