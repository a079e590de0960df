package valuation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ReferenceRepository handles valuation_reference database operations
type ReferenceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewReferenceRepository creates a new reference repository
func NewReferenceRepository(db *sql.DB, log zerolog.Logger) *ReferenceRepository {
	return &ReferenceRepository{
		db:  db,
		log: log.With().Str("repo", "reference").Logger(),
	}
}

// UpsertMany writes a batch of references in a single transaction. Existing
// rows are overwritten, so re-running a reference refresh is idempotent. The
// stored threshold is rewritten from the reference on every upsert, keeping
// rows in sync with current configuration.
func (r *ReferenceRepository) UpsertMany(refs []ValuationReference) error {
	if len(refs) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin reference transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO valuation_reference (symbol, avg_5y_pe, discount_threshold_pct, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			avg_5y_pe = excluded.avg_5y_pe,
			discount_threshold_pct = excluded.discount_threshold_pct,
			last_updated = excluded.last_updated
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare reference upsert: %w", err)
	}
	defer stmt.Close()

	for _, ref := range refs {
		_, err := stmt.Exec(ref.Symbol, ref.Avg5YPE, ref.DiscountThresholdPct,
			ref.LastUpdated.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to upsert reference for %s: %w", ref.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reference batch: %w", err)
	}

	r.log.Debug().Int("count", len(refs)).Msg("Upserted valuation references")
	return nil
}

// GetAll returns all valuation references
func (r *ReferenceRepository) GetAll() ([]ValuationReference, error) {
	return r.query(`
		SELECT symbol, avg_5y_pe, discount_threshold_pct, last_updated
		FROM valuation_reference ORDER BY symbol
	`)
}

// GetWithAverage returns references that have a defined historical average.
// Symbols without one are not screenable and are excluded here.
func (r *ReferenceRepository) GetWithAverage() ([]ValuationReference, error) {
	return r.query(`
		SELECT symbol, avg_5y_pe, discount_threshold_pct, last_updated
		FROM valuation_reference WHERE avg_5y_pe IS NOT NULL ORDER BY symbol
	`)
}

func (r *ReferenceRepository) query(query string) ([]ValuationReference, error) {
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query references: %w", err)
	}
	defer rows.Close()

	var refs []ValuationReference
	for rows.Next() {
		var ref ValuationReference
		var avgPE sql.NullFloat64
		var lastUpdated string

		if err := rows.Scan(&ref.Symbol, &avgPE, &ref.DiscountThresholdPct, &lastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}

		if avgPE.Valid {
			ref.Avg5YPE = &avgPE.Float64
		}
		if ts, err := time.Parse(time.RFC3339, lastUpdated); err == nil {
			ref.LastUpdated = ts
		}

		refs = append(refs, ref)
	}

	return refs, rows.Err()
}
