package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/utils"
)

// DatabasePool defines the interface for database pool operations.
// Both *pgxpool.Pool and pgxmock pools satisfy it.
type DatabasePool interface {
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	// Begin starts a transaction.
	Begin(ctx context.Context) (pgx.Tx, error)
}

const createBarsTable = `
	CREATE TABLE IF NOT EXISTS ohlcv_bars (
		symbol   TEXT             NOT NULL,
		bar_date DATE             NOT NULL,
		open     DOUBLE PRECISION NOT NULL,
		high     DOUBLE PRECISION NOT NULL,
		low      DOUBLE PRECISION NOT NULL,
		close    DOUBLE PRECISION NOT NULL,
		volume   BIGINT           NOT NULL DEFAULT 0,
		PRIMARY KEY (symbol, bar_date)
	)`

const selectBars = `
	SELECT bar_date, open, high, low, close, volume
	FROM ohlcv_bars
	WHERE symbol = $1
	ORDER BY bar_date DESC
	LIMIT $2`

const upsertBar = `
	INSERT INTO ohlcv_bars (symbol, bar_date, open, high, low, close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (symbol, bar_date)
	DO UPDATE SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
		close = EXCLUDED.close, volume = EXCLUDED.volume`

// BarRepository stores daily bars in Postgres.
type BarRepository struct {
	pool DatabasePool
}

// NewBarRepository creates a new bar repository.
func NewBarRepository(pool DatabasePool) *BarRepository {
	return &BarRepository{
		pool: pool,
	}
}

// Name implements interfaces.BarSource.
func (r *BarRepository) Name() string { return "postgres" }

// EnsureSchema creates the bars table when it does not exist.
func (r *BarRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createBarsTable); err != nil {
		return fmt.Errorf("failed to create ohlcv_bars: %w", err)
	}
	return nil
}

// GetBars returns up to limit of the newest bars for symbol, oldest first.
func (r *BarRepository) GetBars(ctx context.Context, symbol string, limit int) (models.BarSeries, error) {
	symbol = models.NormalizeSymbol(symbol)
	rows, err := r.pool.Query(ctx, selectBars, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var newestFirst models.BarSeries
	for rows.Next() {
		var (
			bar  models.Bar
			date time.Time
		)
		if err := rows.Scan(&date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar for %s: %w", symbol, err)
		}
		bar.Date = models.TruncateDate(date)
		newestFirst = append(newestFirst, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bars for %s: %w", symbol, err)
	}
	if len(newestFirst) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, utils.ErrNoBars)
	}

	series := make(models.BarSeries, len(newestFirst))
	for i, bar := range newestFirst {
		series[len(newestFirst)-1-i] = bar
	}
	return series, nil
}

// SaveBars upserts every bar of series in one transaction.
func (r *BarRepository) SaveBars(ctx context.Context, symbol string, series models.BarSeries) error {
	symbol = models.NormalizeSymbol(symbol)
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, bar := range series {
		if _, err := tx.Exec(ctx, upsertBar,
			symbol, models.TruncateDate(bar.Date), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to save bar %s for %s: %w", bar.Date.Format(models.DateLayout), symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bars for %s: %w", symbol, err)
	}
	return nil
}
