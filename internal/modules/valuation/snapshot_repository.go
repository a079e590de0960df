package valuation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotRepository handles valuation_snapshots database operations.
// Snapshots are append-only; there is no update path.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshot").Logger(),
	}
}

// SnapshotFilter narrows List results. Zero values mean no filtering.
type SnapshotFilter struct {
	Date           string // snapshot date in YYYY-MM-DD form
	DiscountedOnly bool
}

// InsertMany appends a batch of snapshots in a single transaction
func (r *SnapshotRepository) InsertMany(snapshots []ValuationSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO valuation_snapshots
			(symbol, snapshot_date, current_price, current_pe, discount_vs_5y_avg, is_discounted)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range snapshots {
		_, err := stmt.Exec(s.Symbol, s.SnapshotDate.UTC().Format("2006-01-02"),
			s.CurrentPrice, s.CurrentPE, s.DiscountVs5YAvg, s.IsDiscounted)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot for %s: %w", s.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot batch: %w", err)
	}

	r.log.Debug().Int("count", len(snapshots)).Msg("Inserted valuation snapshots")
	return nil
}

// List returns snapshots matching the filter, most recent first
func (r *SnapshotRepository) List(filter SnapshotFilter) ([]ValuationSnapshot, error) {
	query := `
		SELECT id, symbol, snapshot_date, current_price, current_pe, discount_vs_5y_avg, is_discounted
		FROM valuation_snapshots WHERE 1=1
	`
	var args []interface{}

	if filter.Date != "" {
		query += " AND snapshot_date = ?"
		args = append(args, filter.Date)
	}
	if filter.DiscountedOnly {
		query += " AND is_discounted = 1"
	}

	query += " ORDER BY snapshot_date DESC, symbol"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []ValuationSnapshot
	for rows.Next() {
		var s ValuationSnapshot
		var date string

		err := rows.Scan(&s.ID, &s.Symbol, &date, &s.CurrentPrice, &s.CurrentPE,
			&s.DiscountVs5YAvg, &s.IsDiscounted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		if ts, err := time.Parse("2006-01-02", date); err == nil {
			s.SnapshotDate = ts
		}

		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// CountForDate returns how many snapshots exist for a given date
func (r *SnapshotRepository) CountForDate(date string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM valuation_snapshots WHERE snapshot_date = ?", date,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}
