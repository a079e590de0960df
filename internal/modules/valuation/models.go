package valuation

import "time"

// ValuationReference is the per-symbol historical valuation baseline.
// Avg5YPE is nil when no defined average could be computed for the symbol.
type ValuationReference struct {
	Symbol               string    `json:"symbol"`
	Avg5YPE              *float64  `json:"avg_5y_pe"`
	DiscountThresholdPct float64   `json:"discount_threshold_pct"`
	LastUpdated          time.Time `json:"last_updated"`
}

// ValuationSnapshot is one screening observation for a symbol. Snapshots are
// append-only; repeated runs on the same day produce additional rows.
type ValuationSnapshot struct {
	ID              int64     `json:"id"`
	Symbol          string    `json:"symbol"`
	SnapshotDate    time.Time `json:"snapshot_date"`
	CurrentPrice    float64   `json:"current_price"`
	CurrentPE       float64   `json:"current_pe"`
	DiscountVs5YAvg float64   `json:"discount_vs_5y_avg"`
	IsDiscounted    bool      `json:"is_discounted"`
}

// RunResult summarizes a batch run over the stock universe
type RunResult struct {
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
}
