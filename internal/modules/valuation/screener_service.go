package valuation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ScreenerService takes discount snapshots of the market against the stored
// valuation references.
//
// A run only considers symbols with a defined historical average. Each symbol
// is compared against the threshold stored on its own reference row, not the
// live configuration, so a run is consistent even across config changes.
type ScreenerService struct {
	marketData MarketDataSource
	refs       *ReferenceRepository
	snapshots  *SnapshotRepository
	log        zerolog.Logger
}

// NewScreenerService creates a new screener service
func NewScreenerService(
	marketData MarketDataSource,
	refs *ReferenceRepository,
	snapshots *SnapshotRepository,
	log zerolog.Logger,
) *ScreenerService {
	return &ScreenerService{
		marketData: marketData,
		refs:       refs,
		snapshots:  snapshots,
		log:        log.With().Str("service", "screener").Logger(),
	}
}

// Screen snapshots every screenable symbol and appends the results in one
// batch. Per-symbol quote failures skip that symbol; only persistence
// failures abort the run.
func (s *ScreenerService) Screen() (*RunResult, error) {
	runID := uuid.New().String()
	start := time.Now()

	refs, err := s.refs.GetWithAverage()
	if err != nil {
		return nil, fmt.Errorf("failed to load references: %w", err)
	}

	s.log.Info().
		Str("run_id", runID).
		Int("screenable", len(refs)).
		Msg("Starting valuation screen")

	today := time.Now().UTC()
	snapshots := make([]ValuationSnapshot, 0, len(refs))
	discounted := 0

	for _, ref := range refs {
		snapshot := s.snapshotSymbol(ref, today)
		if snapshot == nil {
			continue
		}

		if snapshot.IsDiscounted {
			discounted++
		}
		snapshots = append(snapshots, *snapshot)
	}

	if err := s.snapshots.InsertMany(snapshots); err != nil {
		return nil, fmt.Errorf("failed to persist snapshots: %w", err)
	}

	s.log.Info().
		Str("run_id", runID).
		Int("screened", len(snapshots)).
		Int("discounted", discounted).
		Dur("elapsed", time.Since(start)).
		Msg("Valuation screen complete")

	return &RunResult{
		RunID:     runID,
		Total:     len(refs),
		Processed: len(snapshots),
		Skipped:   len(refs) - len(snapshots),
	}, nil
}

// snapshotSymbol builds one snapshot, or nil when the symbol's quote is
// unusable this run.
func (s *ScreenerService) snapshotSymbol(ref ValuationReference, date time.Time) *ValuationSnapshot {
	quote, err := s.marketData.GetQuote(ref.Symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", ref.Symbol).Msg("Failed to fetch quote, skipping")
		return nil
	}

	if quote.Price == nil || quote.TrailingPE == nil || *quote.TrailingPE <= 0 {
		s.log.Debug().Str("symbol", ref.Symbol).Msg("Quote missing price or P/E, skipping")
		return nil
	}

	discount := DiscountPct(*ref.Avg5YPE, *quote.TrailingPE)

	return &ValuationSnapshot{
		Symbol:          ref.Symbol,
		SnapshotDate:    date,
		CurrentPrice:    *quote.Price,
		CurrentPE:       *quote.TrailingPE,
		DiscountVs5YAvg: discount,
		IsDiscounted:    discount >= ref.DiscountThresholdPct,
	}
}
