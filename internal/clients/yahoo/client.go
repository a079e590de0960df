package yahoo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// exchangeSuffix is appended at this boundary only; symbols are stored bare.
// NSE listings carry a .NS suffix on Yahoo Finance.
const exchangeSuffix = ".NS"

// maxAttempts is the total attempt budget for a rate-limited history fetch.
const maxAttempts = 3

// Client is a Yahoo Finance API client
type Client struct {
	client      *http.Client
	baseURL     string
	windowYears int
	cooldown    time.Duration // pause between rate-limited attempts
	log         zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(windowYears int, cooldown time.Duration, log zerolog.Logger) *Client {
	return NewClientWithBaseURL(defaultBaseURL, windowYears, cooldown, log)
}

// NewClientWithBaseURL creates a client against a specific endpoint.
// Used by tests to point the client at a local fixture server.
func NewClientWithBaseURL(baseURL string, windowYears int, cooldown time.Duration, log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     baseURL,
		windowYears: windowYears,
		cooldown:    cooldown,
		log:         log.With().Str("client", "yahoo").Logger(),
	}
}

// yahooSymbol converts a stored symbol to its Yahoo Finance form
func yahooSymbol(symbol string) string {
	return symbol + exchangeSuffix
}

// GetPriceHistory fetches daily closing prices over the trailing window, each
// tagged with its calendar year.
//
// An empty result is a valid "no data" outcome, not an error. Rate-limit
// responses are retried up to maxAttempts with a fixed cooldown between
// attempts; any other failure degrades immediately to no data.
func (c *Client) GetPriceHistory(symbol string) ([]PricePoint, error) {
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%dy",
		c.baseURL, url.QueryEscape(yahooSymbol(symbol)), c.windowYears)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		points, rateLimited := c.fetchChart(symbol, reqURL)
		if !rateLimited {
			return points, nil
		}

		if attempt < maxAttempts-1 {
			c.log.Warn().
				Str("symbol", symbol).
				Int("attempt", attempt+1).
				Dur("cooldown", c.cooldown).
				Msg("Rate limited, pausing before retry")
			time.Sleep(c.cooldown)
		}
	}

	c.log.Warn().Str("symbol", symbol).Msg("Rate limit retry budget exhausted")
	return nil, nil
}

// fetchChart performs a single chart API request. The second return value
// reports whether the upstream rate-limited the request.
func (c *Client) fetchChart(symbol, reqURL string) ([]PricePoint, bool) {
	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to create chart request")
		return nil, false
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Chart request failed")
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().
			Str("symbol", symbol).
			Int("status", resp.StatusCode).
			Msg("Chart request returned non-OK status")
		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read chart response")
		return nil, false
	}

	var result struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []float64 `json:"close"`
					} `json:"quote"`
					AdjClose []struct {
						AdjClose []float64 `json:"adjclose"`
					} `json:"adjclose"`
				} `json:"indicators"`
			} `json:"result"`
			Error interface{} `json:"error"`
		} `json:"chart"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to parse chart response")
		return nil, false
	}

	if result.Chart.Error != nil || len(result.Chart.Result) == 0 {
		c.log.Debug().Str("symbol", symbol).Msg("No historical data returned")
		return nil, false
	}

	chartData := result.Chart.Result[0]
	if len(chartData.Indicators.Quote) == 0 {
		c.log.Debug().Str("symbol", symbol).Msg("No quote data in chart response")
		return nil, false
	}

	closes := chartData.Indicators.Quote[0].Close

	// Prefer adjusted closes when present (matches auto-adjusted history)
	var adjCloses []float64
	if len(chartData.Indicators.AdjClose) > 0 {
		adjCloses = chartData.Indicators.AdjClose[0].AdjClose
	}

	var points []PricePoint
	for i, ts := range chartData.Timestamp {
		if i >= len(closes) {
			continue
		}

		closePrice := closes[i]
		if i < len(adjCloses) && adjCloses[i] != 0 {
			closePrice = adjCloses[i]
		}

		// Yahoo sometimes returns null values, decoded as zero
		if closePrice == 0 {
			continue
		}

		date := time.Unix(ts, 0).UTC()
		points = append(points, PricePoint{
			Date:  date,
			Year:  date.Year(),
			Close: closePrice,
		})
	}

	c.log.Debug().
		Str("symbol", symbol).
		Int("count", len(points)).
		Msg("Fetched price history")

	return points, false
}

// GetCurrentPE returns the currently quoted trailing P/E multiple, or nil
// when the upstream has no value or the value is non-positive.
func (c *Client) GetCurrentPE(symbol string) (*float64, error) {
	info, err := c.getQuoteInfo(symbol, "symbol,trailingPE")
	if err != nil {
		return nil, err
	}

	pe := getFloat64(info, "trailingPE")
	if pe == nil || *pe <= 0 {
		return nil, nil
	}
	return pe, nil
}

// GetQuote returns the current price and trailing P/E in a single call.
// Missing fields come back nil; callers decide whether that is fatal.
func (c *Client) GetQuote(symbol string) (*Quote, error) {
	info, err := c.getQuoteInfo(symbol, "symbol,currentPrice,regularMarketPrice,trailingPE")
	if err != nil {
		return nil, err
	}

	quote := &Quote{}

	// Try currentPrice first, then regularMarketPrice
	if price := getFloat64(info, "currentPrice"); price != nil && *price > 0 {
		quote.Price = price
	} else if price := getFloat64(info, "regularMarketPrice"); price != nil && *price > 0 {
		quote.Price = price
	}

	if pe := getFloat64(info, "trailingPE"); pe != nil && *pe > 0 {
		quote.TrailingPE = pe
	}

	return quote, nil
}

// yahooQuoteResponse represents the response from Yahoo Finance quote API
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteResponse"`
}

// getQuoteInfo fetches quote information from Yahoo Finance API
func (c *Client) getQuoteInfo(symbol, fields string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Add("symbols", yahooSymbol(symbol))
	params.Add("fields", fields)

	reqURL := c.baseURL + "/v7/finance/quote?" + params.Encode()

	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("quote API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result yahooQuoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote API error: %v", result.QuoteResponse.Error)
	}

	if len(result.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data returned for symbol %s", symbol)
	}

	return result.QuoteResponse.Result[0], nil
}

// getFloat64 safely extracts a numeric value from a decoded quote map
func getFloat64(m map[string]interface{}, key string) *float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		}
	}
	return nil
}
