package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
)

// CustomerRepository — in-memory реализация domain.CustomerRepository.
// Агрегирующий запрос считается по живому хранилищу заказов,
// как SQL-запрос в PostgreSQL-реализации.
type CustomerRepository struct {
	mu     sync.RWMutex
	items  map[string]domain.Customer
	orders *OrderRepository
}

// NewCustomerRepository возвращает in-memory репозиторий клиентов,
// привязанный к хранилищу заказов для подсчёта заказанных артикулов.
func NewCustomerRepository(orders *OrderRepository) *CustomerRepository {
	return &CustomerRepository{
		items:  make(map[string]domain.Customer),
		orders: orders,
	}
}

// Put сохраняет клиента (для сида данных и тестов; ядро клиентов не создаёт).
func (r *CustomerRepository) Put(customer domain.Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[customer.Code] = customer
}

// Get возвращает клиента или ErrCustomerNotFound, если его нет.
func (r *CustomerRepository) Get(code string) (domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	customer, ok := r.items[code]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

// OrderedArticleCount возвращает суммарное количество артикулов по всем заказам клиента.
func (r *CustomerRepository) OrderedArticleCount(code string) (int64, error) {
	r.mu.RLock()
	_, ok := r.items[code]
	r.mu.RUnlock()
	if !ok {
		return 0, domain.ErrCustomerNotFound
	}

	return r.orders.articleCountByCustomer(code), nil
}

var _ domain.CustomerRepository = (*CustomerRepository)(nil)
