package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// timelineStore держит историю каждого заказа отсортированной по Occurred.
type timelineStore struct {
	mu      sync.RWMutex
	byOrder map[domain.OrderID][]domain.TimelineEvent
}

// NewTimelineRepository возвращает in-memory историю заказов.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineStore{byOrder: make(map[domain.OrderID][]domain.TimelineEvent)}
}

// Append вставляет событие после всех событий с тем же или более ранним временем,
// так что одновременные записи сохраняют порядок поступления.
func (s *timelineStore) Append(_ context.Context, event domain.TimelineEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.byOrder[event.OrderID]
	pos := len(history)
	for pos > 0 && history[pos-1].Occurred.After(event.Occurred) {
		pos--
	}
	s.byOrder[event.OrderID] = slices.Insert(history, pos, event)
	return nil
}

func (s *timelineStore) List(_ context.Context, orderID domain.OrderID) ([]domain.TimelineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.byOrder[orderID]
	if len(history) == 0 {
		return []domain.TimelineEvent{}, nil
	}
	return slices.Clone(history), nil
}
