package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
)

// ProductRepository — in-memory реализация domain.ProductRepository.
type ProductRepository struct {
	mu    sync.RWMutex
	items map[int64]domain.Product
}

// NewProductRepository возвращает in-memory репозиторий товаров.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{items: make(map[int64]domain.Product)}
}

// Put сохраняет товар (для сида данных и тестов; ядро товаров не создаёт).
func (r *ProductRepository) Put(product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[product.Ref] = product
}

// Get возвращает товар или ErrProductNotFound, если его нет.
func (r *ProductRepository) Get(ref int64) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[ref]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// Save перезаписывает товар, проверяя версию (optimistic locking).
// Конфликт версий сериализует конкурирующие изменения остатка одного товара.
func (r *ProductRepository) Save(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[product.Ref]
	if !ok {
		return domain.ErrProductNotFound
	}
	if current.Version != product.Version {
		return domain.ErrVersionConflict
	}
	product.Version++
	r.items[product.Ref] = product
	return nil
}

var _ domain.ProductRepository = (*ProductRepository)(nil)
