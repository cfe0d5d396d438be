package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
)

// OrderRepository — простая in-memory реализация domain.OrderRepository
// для локальной разработки и тестов.
type OrderRepository struct {
	mu      sync.RWMutex
	items   map[int64]domain.Order
	nextNum int64
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		items:   make(map[int64]domain.Order),
		nextNum: 1,
	}
}

// Create сохраняет новый заказ. Номер присваивается из внутренней
// последовательности, если он не задан (сид тестовых данных задаёт его явно).
func (r *OrderRepository) Create(order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.Number == 0 {
		order.Number = r.nextNum
	}
	if _, exists := r.items[order.Number]; exists {
		return domain.Order{}, domain.ErrVersionConflict
	}
	if order.Number >= r.nextNum {
		r.nextNum = order.Number + 1
	}

	// Сохраняем копию строк, чтобы избежать непредсказуемых мутаций извне.
	order.Lines = cloneLines(order.Lines)
	r.items[order.Number] = order
	return order, nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *OrderRepository) Get(number int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[number]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Lines = cloneLines(order.Lines)
	return order, nil
}

// ListByCustomer возвращает заказы клиента, ограничивая выборку limit (если >0).
func (r *OrderRepository) ListByCustomer(code string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if order.CustomerCode != code {
			continue
		}
		order.Lines = cloneLines(order.Lines)
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Number > result[j].Number
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает заказ и его строки, проверяя версию (optimistic locking).
func (r *OrderRepository) Save(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.Number]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	order.Version++
	order.Lines = cloneLines(order.Lines)
	r.items[order.Number] = order
	return nil
}

// articleCountByCustomer суммирует количество по строкам всех заказов клиента.
// Используется in-memory репозиторием клиентов для агрегирующего запроса.
func (r *OrderRepository) articleCountByCustomer(code string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, order := range r.items {
		if order.CustomerCode != code {
			continue
		}
		total += order.ArticleCount()
	}
	return total
}

func cloneLines(lines []domain.OrderLine) []domain.OrderLine {
	if lines == nil {
		return nil
	}
	result := make([]domain.OrderLine, len(lines))
	copy(result, lines)
	return result
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
