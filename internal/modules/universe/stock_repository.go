package universe

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// StockRepository handles stocks table database operations
type StockRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *sql.DB, log zerolog.Logger) *StockRepository {
	return &StockRepository{
		db:  db,
		log: log.With().Str("repo", "stock").Logger(),
	}
}

// InsertMany inserts a batch of stocks in a single transaction. Symbols that
// already exist are left untouched, so re-loading the same CSVs is a no-op.
func (r *StockRepository) InsertMany(stocks []Stock) (int, error) {
	if len(stocks) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin stock transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO stocks (symbol, company_name, industry, isin)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare stock insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, stock := range stocks {
		res, err := stmt.Exec(stock.Symbol, stock.CompanyName, stock.Industry, stock.ISIN)
		if err != nil {
			return 0, fmt.Errorf("failed to insert stock %s: %w", stock.Symbol, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit stock batch: %w", err)
	}

	r.log.Debug().Int("total", len(stocks)).Int("inserted", inserted).Msg("Inserted stocks")
	return inserted, nil
}

// GetAllSymbols returns every symbol in the universe, ordered
func (r *StockRepository) GetAllSymbols() ([]string, error) {
	rows, err := r.db.Query("SELECT symbol FROM stocks ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

// Count returns the number of stocks in the universe
func (r *StockRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM stocks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count stocks: %w", err)
	}
	return count, nil
}
