package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashani/stock-screener/internal/clients/yahoo"
)

// pointsForYears builds one PricePoint per (year, close) pair, in order.
func pointsForYears(pairs ...struct {
	Year  int
	Close float64
}) []yahoo.PricePoint {
	var points []yahoo.PricePoint
	for _, p := range pairs {
		points = append(points, yahoo.PricePoint{
			Date:  time.Date(p.Year, 6, 15, 0, 0, 0, 0, time.UTC),
			Year:  p.Year,
			Close: p.Close,
		})
	}
	return points
}

func yc(year int, close float64) struct {
	Year  int
	Close float64
} {
	return struct {
		Year  int
		Close float64
	}{year, close}
}

func TestAveragePE(t *testing.T) {
	calc := NewCalculator(5)

	// Yearly means 100, 110, 121 with current PE 11 and latest close 121:
	// EPS proxy = 11, implied P/Es 9.0909, 10, 11, average 10.0303.
	history := pointsForYears(yc(2021, 100), yc(2022, 110), yc(2023, 121))
	pe := 11.0

	avg := calc.AveragePE(history, &pe)
	require.NotNil(t, avg)
	assert.Equal(t, 10.03, *avg)
}

func TestAveragePE_AveragesWithinEachYear(t *testing.T) {
	calc := NewCalculator(5)

	// Two closes in 2022 averaging 110
	history := pointsForYears(yc(2021, 100), yc(2022, 100), yc(2022, 120), yc(2023, 121))
	pe := 11.0

	avg := calc.AveragePE(history, &pe)
	require.NotNil(t, avg)
	assert.Equal(t, 10.03, *avg)
}

func TestAveragePE_TruncatesToTrailingWindow(t *testing.T) {
	calc := NewCalculator(2)

	// 2019 and 2021 fall outside a 2-year window ending at 2023; only
	// 2022 and 2023 contribute.
	history := pointsForYears(yc(2019, 10), yc(2021, 50), yc(2022, 110), yc(2023, 121))
	pe := 11.0

	avg := calc.AveragePE(history, &pe)
	require.NotNil(t, avg)
	// Implied P/Es: 10, 11 -> average 10.5
	assert.Equal(t, 10.5, *avg)
}

func TestAveragePE_Undefined(t *testing.T) {
	calc := NewCalculator(5)
	history := pointsForYears(yc(2022, 100), yc(2023, 110))
	pe := 11.0
	negPE := -5.0
	zeroPE := 0.0

	tests := []struct {
		name      string
		history   []yahoo.PricePoint
		currentPE *float64
	}{
		{"empty history", nil, &pe},
		{"missing current PE", history, nil},
		{"negative current PE", history, &negPE},
		{"zero current PE", history, &zeroPE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, calc.AveragePE(tt.history, tt.currentPE))
		})
	}
}

func TestDiscountPct(t *testing.T) {
	// Current multiple 35% below the historical average
	assert.Equal(t, 35.0, DiscountPct(20.0, 13.0))

	// Current multiple above the average yields a negative discount
	assert.Equal(t, -10.0, DiscountPct(20.0, 22.0))

	// Rounded to two decimals
	assert.Equal(t, 33.33, DiscountPct(15.0, 10.0))
}
