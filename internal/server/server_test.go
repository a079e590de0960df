package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashani/stock-screener/internal/clients/yahoo"
	"github.com/ashani/stock-screener/internal/config"
	"github.com/ashani/stock-screener/internal/database"
	"github.com/ashani/stock-screener/internal/modules/universe"
	"github.com/ashani/stock-screener/internal/modules/valuation"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	log := zerolog.New(nil).Level(zerolog.Disabled)

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "screener.db"),
		Name: "screener",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	cfg := &config.Config{
		Port:                 8000,
		CSVDir:               t.TempDir(),
		DiscountThresholdPct: 30,
		TrailingWindowYears:  5,
		DevMode:              true,
	}

	market := yahoo.NewClientWithBaseURL("http://127.0.0.1:0", cfg.TrailingWindowYears,
		time.Millisecond, log)

	stockRepo := universe.NewStockRepository(db.Conn(), log)
	downloader := universe.NewIndexDownloaderWithBaseURL("http://127.0.0.1:0", nil, cfg.CSVDir, log)
	loader := universe.NewCSVLoader(cfg.CSVDir, stockRepo, log)
	universeHandlers := universe.NewUniverseHandlers(downloader, loader, stockRepo, log)

	refRepo := valuation.NewReferenceRepository(db.Conn(), log)
	snapRepo := valuation.NewSnapshotRepository(db.Conn(), log)
	calc := valuation.NewCalculator(cfg.TrailingWindowYears)
	refService := valuation.NewReferenceService(stockRepo, market, calc, refRepo,
		cfg.DiscountThresholdPct, log)
	screenerService := valuation.NewScreenerService(market, refRepo, snapRepo, log)
	valuationHandlers := valuation.NewValuationHandlers(refService, screenerService,
		refRepo, snapRepo, log)

	return New(Config{
		Log:               log,
		DB:                db,
		Config:            cfg,
		UniverseHandlers:  universeHandlers,
		ValuationHandlers: valuationHandlers,
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "stock-screener", body["service"])
}

func TestSystemStatusEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/system/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "uptime_hours")
	assert.Contains(t, body, "database")
}

func TestReferencesEndpoint_EmptyDatabase(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/references", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count      int                            `json:"count"`
		References []valuation.ValuationReference `json:"references"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
	assert.NotNil(t, body.References)
}

func TestSnapshotsEndpoint_EmptyDatabase(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/snapshots?discounted=true", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
}

func TestPopulateStocksEndpoint_NoCSVsIs404(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/populate-stocks", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPopulateReferencesEndpoint_EmptyUniverseIs404(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/populate-valuation-references", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRouteReturns404(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
