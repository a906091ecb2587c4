package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore backed by the given pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const executionSelectCols = `id, symbol, side, algorithm, quantity,
	filled_quantity, avg_fill_price, slippage_pct, status, started_at, ended_at`

func scanExecutionRow(row pgx.Row) (domain.ExecutionSummary, error) {
	var e domain.ExecutionSummary
	err := row.Scan(
		&e.ID, &e.Symbol, &e.Side, &e.Algorithm, &e.Quantity,
		&e.FilledQuantity, &e.AvgFillPrice, &e.SlippagePct,
		&e.Status, &e.StartedAt, &e.EndedAt,
	)
	return e, err
}

// Create upserts a terminal execution summary. Re-persisting the same id
// overwrites the previous snapshot.
func (s *ExecutionStore) Create(ctx context.Context, summary domain.ExecutionSummary) error {
	const query = `
		INSERT INTO executions (
			id, symbol, side, algorithm, quantity,
			filled_quantity, avg_fill_price, slippage_pct, status, started_at, ended_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11
		) ON CONFLICT (id) DO UPDATE SET
			filled_quantity = EXCLUDED.filled_quantity,
			avg_fill_price = EXCLUDED.avg_fill_price,
			slippage_pct = EXCLUDED.slippage_pct,
			status = EXCLUDED.status,
			ended_at = EXCLUDED.ended_at`

	_, err := s.pool.Exec(ctx, query,
		summary.ID, summary.Symbol, summary.Side, summary.Algorithm, summary.Quantity,
		summary.FilledQuantity, summary.AvgFillPrice, summary.SlippagePct,
		summary.Status, summary.StartedAt, summary.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert execution %s: %w", summary.ID, err)
	}
	return nil
}

// GetByID returns one execution summary. It returns domain.ErrNotFound when
// the id does not exist.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.ExecutionSummary, error) {
	query := `SELECT ` + executionSelectCols + ` FROM executions WHERE id = $1`

	summary, err := scanExecutionRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionSummary{}, domain.ErrNotFound
		}
		return domain.ExecutionSummary{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	return summary, nil
}

// ListRecent returns the most recently started executions, newest first.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + executionSelectCols + ` FROM executions ORDER BY started_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent executions: %w", err)
	}
	defer rows.Close()

	var summaries []domain.ExecutionSummary
	for rows.Next() {
		var e domain.ExecutionSummary
		if err := rows.Scan(
			&e.ID, &e.Symbol, &e.Side, &e.Algorithm, &e.Quantity,
			&e.FilledQuantity, &e.AvgFillPrice, &e.SlippagePct,
			&e.Status, &e.StartedAt, &e.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan execution row: %w", err)
		}
		summaries = append(summaries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent executions: %w", err)
	}
	return summaries, nil
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)
