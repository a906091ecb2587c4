package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderSelectCols = `id, execution_id, symbol, side, order_type, quantity,
	price, status, executed_qty, executed_px, fees, created_at`

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.ExecutionID, &o.Symbol, &o.Side, &o.Type,
			&o.Quantity, &o.Price, &o.Status,
			&o.ExecutedQty, &o.ExecutedPx, &o.Fees, &o.CreatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Create inserts a child order. Replays of the same id are silently skipped
// via ON CONFLICT DO NOTHING.
func (s *OrderStore) Create(ctx context.Context, order domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, execution_id, symbol, side, order_type, quantity,
			price, status, executed_qty, executed_px, fees, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		order.ID, order.ExecutionID, order.Symbol, order.Side, order.Type,
		order.Quantity, order.Price, order.Status,
		order.ExecutedQty, order.ExecutedPx, order.Fees, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert order %s: %w", order.ID, err)
	}
	return nil
}

// ListByExecution returns all child orders for an execution in submission order.
func (s *OrderStore) ListByExecution(ctx context.Context, executionID string) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE execution_id = $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders by execution: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders by execution: %w", err)
	}
	return orders, nil
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
