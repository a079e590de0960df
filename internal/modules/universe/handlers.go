package universe

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

// UniverseHandlers handles HTTP requests for universe operations
type UniverseHandlers struct {
	downloader *IndexDownloader
	loader     *CSVLoader
	repo       *StockRepository
	log        zerolog.Logger
}

// NewUniverseHandlers creates a new universe handlers instance
func NewUniverseHandlers(
	downloader *IndexDownloader,
	loader *CSVLoader,
	repo *StockRepository,
	log zerolog.Logger,
) *UniverseHandlers {
	return &UniverseHandlers{
		downloader: downloader,
		loader:     loader,
		repo:       repo,
		log:        log.With().Str("module", "universe_handlers").Logger(),
	}
}

// HandleGrabCSVs downloads constituent CSVs for all configured indexes
// POST /api/grab-csvs
func (h *UniverseHandlers) HandleGrabCSVs(w http.ResponseWriter, r *http.Request) {
	downloaded, err := h.downloader.DownloadAll()
	if err != nil {
		h.log.Error().Err(err).Msg("CSV download failed")
		http.Error(w, "Failed to download index CSVs", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"downloaded": downloaded,
	})
}

// HandlePopulateStocks loads downloaded CSVs into the stock universe
// POST /api/populate-stocks
func (h *UniverseHandlers) HandlePopulateStocks(w http.ResponseWriter, r *http.Request) {
	inserted, err := h.loader.LoadAll()
	if errors.Is(err, ErrNoCSVFiles) {
		http.Error(w, "No CSV files found. Run /api/grab-csvs first.", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Stock population failed")
		http.Error(w, "Failed to populate stocks", http.StatusInternalServerError)
		return
	}

	total, err := h.repo.Count()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count stocks")
		http.Error(w, "Failed to count stocks", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"inserted": inserted,
		"total":    total,
	})
}

// writeJSON writes a JSON response
func (h *UniverseHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
