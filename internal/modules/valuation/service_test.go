package valuation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashani/stock-screener/internal/clients/yahoo"
)

// fakeMarketData is a canned-response MarketDataSource for service tests
type fakeMarketData struct {
	histories map[string][]yahoo.PricePoint
	pes       map[string]*float64
	quotes    map[string]*yahoo.Quote
	errs      map[string]error
}

func (f *fakeMarketData) GetPriceHistory(symbol string) ([]yahoo.PricePoint, error) {
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.histories[symbol], nil
}

func (f *fakeMarketData) GetCurrentPE(symbol string) (*float64, error) {
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.pes[symbol], nil
}

func (f *fakeMarketData) GetQuote(symbol string) (*yahoo.Quote, error) {
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	if q, ok := f.quotes[symbol]; ok {
		return q, nil
	}
	return &yahoo.Quote{}, nil
}

type fakeSymbolLister struct {
	symbols []string
	err     error
}

func (f *fakeSymbolLister) GetAllSymbols() ([]string, error) {
	return f.symbols, f.err
}

func historyWithYearlyCloses(closes map[int]float64) []yahoo.PricePoint {
	var points []yahoo.PricePoint
	years := []int{2021, 2022, 2023, 2024, 2025}
	for _, year := range years {
		if close, ok := closes[year]; ok {
			points = append(points, yahoo.PricePoint{
				Date:  time.Date(year, 6, 15, 0, 0, 0, 0, time.UTC),
				Year:  year,
				Close: close,
			})
		}
	}
	return points
}

func fp(f float64) *float64 { return &f }

func TestReferenceService_Refresh(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReferenceRepository(db, testLog())

	market := &fakeMarketData{
		histories: map[string][]yahoo.PricePoint{
			"RELIANCE": historyWithYearlyCloses(map[int]float64{2021: 100, 2022: 110, 2023: 121}),
		},
		pes: map[string]*float64{"RELIANCE": fp(11.0)},
	}
	lister := &fakeSymbolLister{symbols: []string{"RELIANCE", "NODATA"}}

	svc := NewReferenceService(lister, market, NewCalculator(5), repo, 30, testLog())

	result, err := svc.Refresh()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	assert.NotEmpty(t, result.RunID)

	// Only RELIANCE has a defined average; NODATA gets no row
	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)

	assert.Equal(t, "RELIANCE", all[0].Symbol)
	require.NotNil(t, all[0].Avg5YPE)
	assert.Equal(t, 10.03, *all[0].Avg5YPE)
	assert.Equal(t, 30.0, all[0].DiscountThresholdPct)
}

func TestReferenceService_AbsorbsPerSymbolFailures(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReferenceRepository(db, testLog())

	market := &fakeMarketData{
		histories: map[string][]yahoo.PricePoint{
			"GOOD": historyWithYearlyCloses(map[int]float64{2022: 110, 2023: 121}),
		},
		pes:  map[string]*float64{"GOOD": fp(11.0)},
		errs: map[string]error{"BROKEN": errors.New("quote API error")},
	}
	lister := &fakeSymbolLister{symbols: []string{"BROKEN", "GOOD"}}

	svc := NewReferenceService(lister, market, NewCalculator(5), repo, 30, testLog())

	result, err := svc.Refresh()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "GOOD", all[0].Symbol)
}

func TestReferenceService_SymbolListingFailureAborts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReferenceRepository(db, testLog())

	lister := &fakeSymbolLister{err: errors.New("db locked")}
	svc := NewReferenceService(lister, &fakeMarketData{}, NewCalculator(5), repo, 30, testLog())

	_, err := svc.Refresh()
	assert.Error(t, err)
}

func TestReferenceService_EmptyUniverse(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReferenceRepository(db, testLog())

	svc := NewReferenceService(&fakeSymbolLister{}, &fakeMarketData{}, NewCalculator(5), repo, 30, testLog())

	_, err := svc.Refresh()
	assert.ErrorIs(t, err, ErrEmptyUniverse)
}

func TestScreenerService_Screen(t *testing.T) {
	db := setupTestDB(t)
	refRepo := NewReferenceRepository(db, testLog())
	snapRepo := NewSnapshotRepository(db, testLog())

	now := time.Now().UTC()
	require.NoError(t, refRepo.UpsertMany([]ValuationReference{
		{Symbol: "DEEPDISC", Avg5YPE: fp(20.0), DiscountThresholdPct: 30, LastUpdated: now},
		{Symbol: "SHALLOW", Avg5YPE: fp(20.0), DiscountThresholdPct: 30, LastUpdated: now},
		{Symbol: "NODATA", Avg5YPE: nil, DiscountThresholdPct: 30, LastUpdated: now},
	}))

	market := &fakeMarketData{
		quotes: map[string]*yahoo.Quote{
			// 35% below average -> discounted at a 30% threshold
			"DEEPDISC": {Price: fp(1300), TrailingPE: fp(13.0)},
			// 20% below average -> not discounted
			"SHALLOW": {Price: fp(1600), TrailingPE: fp(16.0)},
		},
	}

	svc := NewScreenerService(market, refRepo, snapRepo, testLog())

	result, err := svc.Screen()
	require.NoError(t, err)

	// NODATA has no average and never reaches the market data source
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Processed)

	snapshots, err := snapRepo.List(SnapshotFilter{})
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	byName := map[string]ValuationSnapshot{}
	for _, s := range snapshots {
		byName[s.Symbol] = s
	}

	deep := byName["DEEPDISC"]
	assert.Equal(t, 35.0, deep.DiscountVs5YAvg)
	assert.True(t, deep.IsDiscounted)

	shallow := byName["SHALLOW"]
	assert.Equal(t, 20.0, shallow.DiscountVs5YAvg)
	assert.False(t, shallow.IsDiscounted)
}

func TestScreenerService_SkipsFailingSymbols(t *testing.T) {
	db := setupTestDB(t)
	refRepo := NewReferenceRepository(db, testLog())
	snapRepo := NewSnapshotRepository(db, testLog())

	now := time.Now().UTC()
	require.NoError(t, refRepo.UpsertMany([]ValuationReference{
		{Symbol: "GOOD", Avg5YPE: fp(20.0), DiscountThresholdPct: 30, LastUpdated: now},
		{Symbol: "BROKEN", Avg5YPE: fp(20.0), DiscountThresholdPct: 30, LastUpdated: now},
		{Symbol: "NOQUOTE", Avg5YPE: fp(20.0), DiscountThresholdPct: 30, LastUpdated: now},
	}))

	market := &fakeMarketData{
		quotes: map[string]*yahoo.Quote{
			"GOOD": {Price: fp(1300), TrailingPE: fp(13.0)},
			// NOQUOTE resolves to an empty quote and is skipped
		},
		errs: map[string]error{"BROKEN": errors.New("upstream down")},
	}

	svc := NewScreenerService(market, refRepo, snapRepo, testLog())

	result, err := svc.Screen()
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 2, result.Skipped)

	snapshots, err := snapRepo.List(SnapshotFilter{})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "GOOD", snapshots[0].Symbol)
}

func TestScreenerService_UsesPerRowThreshold(t *testing.T) {
	db := setupTestDB(t)
	refRepo := NewReferenceRepository(db, testLog())
	snapRepo := NewSnapshotRepository(db, testLog())

	now := time.Now().UTC()
	// Row carries a stricter threshold than the 35% discount on offer
	require.NoError(t, refRepo.UpsertMany([]ValuationReference{
		{Symbol: "STRICT", Avg5YPE: fp(20.0), DiscountThresholdPct: 40, LastUpdated: now},
	}))

	market := &fakeMarketData{
		quotes: map[string]*yahoo.Quote{
			"STRICT": {Price: fp(1300), TrailingPE: fp(13.0)},
		},
	}

	svc := NewScreenerService(market, refRepo, snapRepo, testLog())
	_, err := svc.Screen()
	require.NoError(t, err)

	snapshots, err := snapRepo.List(SnapshotFilter{})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 35.0, snapshots[0].DiscountVs5YAvg)
	assert.False(t, snapshots[0].IsDiscounted)
}
