package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// RestaurantRepository — in-memory каталог ресторанов. Put заменяет снимок целиком.
type RestaurantRepository struct {
	mu          sync.RWMutex
	restaurants map[domain.RestaurantID]domain.Restaurant
}

// NewRestaurantRepository создаёт пустой каталог.
func NewRestaurantRepository() *RestaurantRepository {
	return &RestaurantRepository{restaurants: make(map[domain.RestaurantID]domain.Restaurant)}
}

// Put сохраняет или обновляет ресторан.
func (r *RestaurantRepository) Put(restaurant domain.Restaurant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restaurants[restaurant.ID()] = restaurant
}

// Get возвращает ресторан или ErrRestaurantNotFound.
func (r *RestaurantRepository) Get(_ context.Context, id domain.RestaurantID) (domain.Restaurant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	restaurant, ok := r.restaurants[id]
	if !ok {
		return domain.Restaurant{}, domain.ErrRestaurantNotFound
	}
	return restaurant, nil
}

var _ domain.RestaurantRepository = (*RestaurantRepository)(nil)
