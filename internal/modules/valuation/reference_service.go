package valuation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrEmptyUniverse is returned when a reference run finds no stocks to
// process. The universe has to be populated first.
var ErrEmptyUniverse = errors.New("no stocks in universe")

// ReferenceService rebuilds the per-symbol valuation baselines.
//
// Each run walks the full stock universe, fetches history and the current
// multiple for every symbol, and upserts the references in a single batch.
// Only symbols with a defined average get a row; the rest are skipped until
// a later run can compute one.
type ReferenceService struct {
	symbols      SymbolLister
	marketData   MarketDataSource
	calculator   *Calculator
	repo         *ReferenceRepository
	thresholdPct float64
	log          zerolog.Logger
}

// NewReferenceService creates a new reference service
func NewReferenceService(
	symbols SymbolLister,
	marketData MarketDataSource,
	calculator *Calculator,
	repo *ReferenceRepository,
	thresholdPct float64,
	log zerolog.Logger,
) *ReferenceService {
	return &ReferenceService{
		symbols:      symbols,
		marketData:   marketData,
		calculator:   calculator,
		repo:         repo,
		thresholdPct: thresholdPct,
		log:          log.With().Str("service", "reference").Logger(),
	}
}

// Refresh recomputes references for every symbol in the universe.
//
// Per-symbol data failures skip that symbol; only an empty universe or a
// persistence failure aborts the run.
func (s *ReferenceService) Refresh() (*RunResult, error) {
	runID := uuid.New().String()
	start := time.Now()

	symbols, err := s.symbols.GetAllSymbols()
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil, ErrEmptyUniverse
	}

	s.log.Info().
		Str("run_id", runID).
		Int("symbols", len(symbols)).
		Msg("Starting reference refresh")

	now := time.Now().UTC()
	refs := make([]ValuationReference, 0, len(symbols))

	for _, symbol := range symbols {
		avg := s.computeAverage(symbol)
		if avg == nil {
			continue
		}

		refs = append(refs, ValuationReference{
			Symbol:               symbol,
			Avg5YPE:              avg,
			DiscountThresholdPct: s.thresholdPct,
			LastUpdated:          now,
		})
	}

	if err := s.repo.UpsertMany(refs); err != nil {
		return nil, fmt.Errorf("failed to persist references: %w", err)
	}

	s.log.Info().
		Str("run_id", runID).
		Int("total", len(symbols)).
		Int("computed", len(refs)).
		Dur("elapsed", time.Since(start)).
		Msg("Reference refresh complete")

	return &RunResult{
		RunID:     runID,
		Total:     len(symbols),
		Processed: len(refs),
		Skipped:   len(symbols) - len(refs),
	}, nil
}

// computeAverage fetches inputs and computes one symbol's average, absorbing
// any data-source failure into a nil result.
func (s *ReferenceService) computeAverage(symbol string) *float64 {
	history, err := s.marketData.GetPriceHistory(symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch price history")
		return nil
	}

	currentPE, err := s.marketData.GetCurrentPE(symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch current P/E")
		return nil
	}

	return s.calculator.AveragePE(history, currentPE)
}
