package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
)

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{db: store.DB()}
}

func (r *customerRepository) Get(code string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var customer domain.Customer
	err := r.db.QueryRowContext(ctx, `
		SELECT code, company, address
		FROM customers
		WHERE code = $1
	`, code).Scan(&customer.Code, &customer.Company, &customer.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}

	return customer, nil
}

// OrderedArticleCount агрегирует количество артикулов по всем заказам клиента.
func (r *customerRepository) OrderedArticleCount(code string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM customers WHERE code = $1)
	`, code).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check customer exists: %w", err)
	}
	if !exists {
		return 0, domain.ErrCustomerNotFound
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(l.quantity), 0)
		FROM order_lines l
		JOIN orders o ON o.number = l.order_number
		WHERE o.customer_code = $1
	`, code).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum ordered articles: %w", err)
	}

	return total, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
