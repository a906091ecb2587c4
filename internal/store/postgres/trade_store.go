package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, execution_id, signal_id, symbol, side, price,
	quantity, fees, slippage, timestamp, profit`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.ExecutionID, &t.SignalID, &t.Symbol, &t.Side,
			&t.Price, &t.Quantity, &t.Fees, &t.Slippage,
			&t.Timestamp, &t.Profit,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Create inserts a realized fill. Replays of the same id are silently skipped
// via ON CONFLICT DO NOTHING.
func (s *TradeStore) Create(ctx context.Context, trade domain.Trade) error {
	const query = `
		INSERT INTO trades (
			id, execution_id, signal_id, symbol, side, price,
			quantity, fees, slippage, timestamp, profit
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		trade.ID, trade.ExecutionID, trade.SignalID, trade.Symbol, trade.Side,
		trade.Price, trade.Quantity, trade.Fees, trade.Slippage,
		trade.Timestamp, trade.Profit,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", trade.ID, err)
	}
	return nil
}

// ListByExecution returns all fills for an execution in time order.
func (s *TradeStore) ListByExecution(ctx context.Context, executionID string) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE execution_id = $1 ORDER BY timestamp ASC`

	rows, err := s.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by execution: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by execution: %w", err)
	}
	return trades, nil
}

// ListBySymbol returns trades for a symbol with pagination and optional time
// filtering, newest first.
func (s *TradeStore) ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE symbol = $1`
	args := []any{symbol}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY timestamp DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by symbol: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by symbol: %w", err)
	}
	return trades, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
