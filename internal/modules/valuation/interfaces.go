package valuation

import "github.com/ashani/stock-screener/internal/clients/yahoo"

// MarketDataSource provides the market data the valuation services need.
// Implemented by the Yahoo Finance client; tests substitute fakes.
type MarketDataSource interface {
	// GetPriceHistory returns daily closes over the trailing window, tagged
	// with their calendar year. An empty result means no data, not failure.
	GetPriceHistory(symbol string) ([]yahoo.PricePoint, error)

	// GetCurrentPE returns the currently quoted trailing P/E, or nil when
	// the upstream has no usable value.
	GetCurrentPE(symbol string) (*float64, error)

	// GetQuote returns the current price and trailing P/E together.
	GetQuote(symbol string) (*yahoo.Quote, error)
}

// SymbolLister supplies the stock universe to iterate over
type SymbolLister interface {
	GetAllSymbols() ([]string, error)
}
