package valuation

import (
	"sort"

	"github.com/ashani/stock-screener/internal/clients/yahoo"
	"github.com/ashani/stock-screener/pkg/formulas"
)

// Calculator derives historical average P/E multiples from price history.
//
// The trailing P/E quote only covers the latest twelve months of earnings, so
// historical P/Es are approximated with a constant-earnings proxy: EPS is
// backed out of the latest close and the current multiple, then applied to
// each year's mean close.
type Calculator struct {
	windowYears int
}

// NewCalculator creates a calculator over the given trailing window
func NewCalculator(windowYears int) *Calculator {
	return &Calculator{windowYears: windowYears}
}

// AveragePE computes the historical average P/E for a symbol, rounded to two
// decimals. Returns nil when no defined average exists: empty history, missing
// or non-positive current P/E, or a non-positive latest close.
func (c *Calculator) AveragePE(history []yahoo.PricePoint, currentPE *float64) *float64 {
	if len(history) == 0 || currentPE == nil || *currentPE <= 0 {
		return nil
	}

	latestClose := history[len(history)-1].Close
	if latestClose <= 0 {
		return nil
	}

	epsProxy := latestClose / *currentPE

	yearlyMeans := c.yearlyMeanCloses(history)
	if len(yearlyMeans) == 0 {
		return nil
	}

	impliedPEs := make([]float64, 0, len(yearlyMeans))
	for _, mean := range yearlyMeans {
		impliedPEs = append(impliedPEs, mean/epsProxy)
	}

	avg := formulas.Round(formulas.Mean(impliedPEs), 2)
	return &avg
}

// yearlyMeanCloses groups closes by calendar year and returns the mean close
// of each of the most recent windowYears years, oldest first.
func (c *Calculator) yearlyMeanCloses(history []yahoo.PricePoint) []float64 {
	byYear := make(map[int][]float64)
	for _, point := range history {
		byYear[point.Year] = append(byYear[point.Year], point.Close)
	}

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	// Keep only the most recent window
	if len(years) > c.windowYears {
		years = years[len(years)-c.windowYears:]
	}

	means := make([]float64, 0, len(years))
	for _, year := range years {
		means = append(means, formulas.Mean(byYear[year]))
	}
	return means
}

// DiscountPct computes how far the current multiple sits below the historical
// average, as a percentage of the average, rounded to two decimals. Negative
// values mean the current multiple is above the average.
func DiscountPct(avgPE, currentPE float64) float64 {
	return formulas.Round((avgPE-currentPE)/avgPE*100, 2)
}
