package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNoCSVFiles is returned when the CSV directory has nothing to load.
// Constituent CSVs have to be downloaded first.
var ErrNoCSVFiles = errors.New("no CSV files found")

// CSVLoader reads index-constituent CSV files into the stock universe.
//
// Every NSE index export carries the same header row (Company Name, Industry,
// Symbol, ISIN Code); constituents shared between indexes are deduplicated by
// symbol before hitting the database.
type CSVLoader struct {
	dir  string
	repo *StockRepository
	log  zerolog.Logger
}

// NewCSVLoader creates a loader over a directory of CSV files
func NewCSVLoader(dir string, repo *StockRepository, log zerolog.Logger) *CSVLoader {
	return &CSVLoader{
		dir:  dir,
		repo: repo,
		log:  log.With().Str("service", "csv_loader").Logger(),
	}
}

// LoadAll parses every CSV in the directory and inserts the combined,
// deduplicated constituents. Returns the number of newly inserted stocks.
// A malformed file is skipped; only persistence failures propagate.
func (l *CSVLoader) LoadAll() (int, error) {
	paths, err := filepath.Glob(filepath.Join(l.dir, "*.csv"))
	if err != nil {
		return 0, fmt.Errorf("failed to list CSV files: %w", err)
	}

	if len(paths) == 0 {
		return 0, ErrNoCSVFiles
	}

	seen := make(map[string]bool)
	var stocks []Stock

	for _, path := range paths {
		fileStocks, err := l.parseFile(path)
		if err != nil {
			l.log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("Skipping malformed CSV")
			continue
		}

		for _, stock := range fileStocks {
			if seen[stock.Symbol] {
				continue
			}
			seen[stock.Symbol] = true
			stocks = append(stocks, stock)
		}
	}

	inserted, err := l.repo.InsertMany(stocks)
	if err != nil {
		return 0, fmt.Errorf("failed to persist stocks: %w", err)
	}

	l.log.Info().
		Int("files", len(paths)).
		Int("unique", len(stocks)).
		Int("inserted", inserted).
		Msg("Loaded stock universe from CSVs")

	return inserted, nil
}

// parseFile reads one index-constituent CSV, resolving columns by header name
func (l *CSVLoader) parseFile(path string) ([]Stock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // Tolerate trailing columns in some exports

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if len(records) < 2 {
		return nil, nil
	}

	cols := columnIndex(records[0])
	symbolIdx, ok := cols["symbol"]
	if !ok {
		return nil, fmt.Errorf("no Symbol column in %s", path)
	}

	var stocks []Stock
	for _, record := range records[1:] {
		if symbolIdx >= len(record) {
			continue
		}

		symbol := strings.TrimSpace(record[symbolIdx])
		if symbol == "" {
			continue
		}

		stocks = append(stocks, Stock{
			Symbol:      symbol,
			CompanyName: fieldAt(record, cols, "company name"),
			Industry:    fieldAt(record, cols, "industry"),
			ISIN:        fieldAt(record, cols, "isin code"),
		})
	}

	return stocks, nil
}

// columnIndex maps lowercased header names to their positions
func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func fieldAt(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
