package yahoo

import "time"

// PricePoint is a single daily closing price, tagged with its calendar year.
// A price history is an ordered sequence of PricePoints spanning the trailing
// window, oldest first.
type PricePoint struct {
	Date  time.Time
	Year  int
	Close float64
}

// Quote is a point-in-time price and trailing P/E for a symbol.
// Either field may be nil when the upstream has no value.
type Quote struct {
	Price      *float64
	TrailingPE *float64
}
