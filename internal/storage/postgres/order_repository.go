package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if order.Number == 0 {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO orders (
				customer_code, delivery_address, discount, shipped_at, version, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING number
		`,
			order.CustomerCode, order.DeliveryAddress, order.Discount,
			order.ShippedAt, order.Version, order.CreatedAt, order.UpdatedAt,
		).Scan(&order.Number)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (
				number, customer_code, delivery_address, discount, shipped_at, version, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			order.Number, order.CustomerCode, order.DeliveryAddress, order.Discount,
			order.ShippedAt, order.Version, order.CreatedAt, order.UpdatedAt,
		)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, domain.ErrVersionConflict
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_number, product_ref, quantity, created_at
			) VALUES ($1,$2,$3,$4,$5)
		`,
			line.ID, order.Number, line.ProductRef, line.Quantity, line.CreatedAt,
		); err != nil {
			return domain.Order{}, fmt.Errorf("insert order line: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit create order: %w", err)
	}

	return order, nil
}

func (r *orderRepository) Get(number int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var order domain.Order

	err := r.db.QueryRowContext(ctx, `
		SELECT number, customer_code, delivery_address, discount, shipped_at, version, created_at, updated_at
		FROM orders
		WHERE number = $1
	`, number).Scan(
		&order.Number, &order.CustomerCode, &order.DeliveryAddress, &order.Discount,
		&order.ShippedAt, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	lines, err := r.loadLines(ctx, order.Number)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) ListByCustomer(code string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT number, customer_code, delivery_address, discount, shipped_at, version, created_at, updated_at
		FROM orders
		WHERE customer_code = $1
		ORDER BY created_at DESC, number DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", code, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, code)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.Number, &order.CustomerCode, &order.DeliveryAddress, &order.Discount,
			&order.ShippedAt, &order.Version, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}

		lines, err := r.loadLines(ctx, order.Number)
		if err != nil {
			return nil, err
		}
		order.Lines = lines
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// Save перезаписывает заказ и его строки с проверкой версии.
func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET customer_code = $1,
		    delivery_address = $2,
		    discount = $3,
		    shipped_at = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE number = $6
		  AND version = $7
	`,
		order.CustomerCode,
		order.DeliveryAddress,
		order.Discount,
		order.ShippedAt,
		order.UpdatedAt,
		order.Number,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExistsTx(ctx, tx, order.Number)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrVersionConflict
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_number = $1`, order.Number); err != nil {
		return fmt.Errorf("delete order lines: %w", err)
	}
	for _, line := range order.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_number, product_ref, quantity, created_at
			) VALUES ($1,$2,$3,$4,$5)
		`,
			line.ID, order.Number, line.ProductRef, line.Quantity, line.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save order: %w", err)
	}

	return nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderNumber int64) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_ref, quantity, created_at
		FROM order_lines
		WHERE order_number = $1
		ORDER BY created_at ASC, id ASC
	`, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.ProductRef, &line.Quantity, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) orderExistsTx(ctx context.Context, tx *sql.Tx, number int64) (bool, error) {
	var found int64
	err := tx.QueryRowContext(ctx, `SELECT number FROM orders WHERE number = $1`, number).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
