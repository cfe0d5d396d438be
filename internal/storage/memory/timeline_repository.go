package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
)

// TimelineRepository хранит события жизненного цикла заказов в памяти.
type TimelineRepository struct {
	mu     sync.RWMutex
	events map[int64][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию domain.TimelineRepository.
func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{events: make(map[int64][]domain.TimelineEvent)}
}

// Append добавляет событие в хранилище.
func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.OrderNumber] = append(r.events[event.OrderNumber], event)

	sort.Slice(r.events[event.OrderNumber], func(i, j int) bool {
		return r.events[event.OrderNumber][i].Occurred.Before(r.events[event.OrderNumber][j].Occurred)
	})

	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *TimelineRepository) List(orderNumber int64) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[orderNumber]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
