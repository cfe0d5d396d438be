package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Get(ref int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT ref, name, units_in_stock, units_on_order, version
		FROM products
		WHERE ref = $1
	`, ref).Scan(&product.Ref, &product.Name, &product.UnitsInStock, &product.UnitsOnOrder, &product.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

// Save сохраняет товар с проверкой версии (optimistic locking).
func (r *productRepository) Save(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1,
		    units_in_stock = $2,
		    units_on_order = $3,
		    version = version + 1
		WHERE ref = $4
		  AND version = $5
	`,
		product.Name, product.UnitsInStock, product.UnitsOnOrder,
		product.Ref, product.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var found int64
		err := r.db.QueryRowContext(ctx, `SELECT ref FROM products WHERE ref = $1`, product.Ref).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("check product exists: %w", err)
		}
		return domain.ErrVersionConflict
	}

	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
