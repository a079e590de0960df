package valuation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

// ValuationHandlers handles HTTP requests for valuation operations
type ValuationHandlers struct {
	refService      *ReferenceService
	screenerService *ScreenerService
	refRepo         *ReferenceRepository
	snapshotRepo    *SnapshotRepository
	log             zerolog.Logger
}

// NewValuationHandlers creates a new valuation handlers instance
func NewValuationHandlers(
	refService *ReferenceService,
	screenerService *ScreenerService,
	refRepo *ReferenceRepository,
	snapshotRepo *SnapshotRepository,
	log zerolog.Logger,
) *ValuationHandlers {
	return &ValuationHandlers{
		refService:      refService,
		screenerService: screenerService,
		refRepo:         refRepo,
		snapshotRepo:    snapshotRepo,
		log:             log.With().Str("module", "valuation_handlers").Logger(),
	}
}

// HandlePopulateReferences rebuilds valuation references for the universe
// POST /api/populate-valuation-references
func (h *ValuationHandlers) HandlePopulateReferences(w http.ResponseWriter, r *http.Request) {
	result, err := h.refService.Refresh()
	if errors.Is(err, ErrEmptyUniverse) {
		http.Error(w, "No stocks found. Run /api/populate-stocks first.", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Reference refresh failed")
		http.Error(w, "Failed to populate valuation references", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"result": result,
	})
}

// HandlePopulateSnapshots runs a discount screen over all screenable symbols
// POST /api/populate-valuation-snapshots
func (h *ValuationHandlers) HandlePopulateSnapshots(w http.ResponseWriter, r *http.Request) {
	result, err := h.screenerService.Screen()
	if err != nil {
		h.log.Error().Err(err).Msg("Valuation screen failed")
		http.Error(w, "Failed to populate valuation snapshots", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"result": result,
	})
}

// HandleGetReferences returns stored valuation references
// GET /api/references
func (h *ValuationHandlers) HandleGetReferences(w http.ResponseWriter, r *http.Request) {
	refs, err := h.refRepo.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch references")
		http.Error(w, "Failed to fetch references", http.StatusInternalServerError)
		return
	}

	if refs == nil {
		refs = []ValuationReference{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(refs),
		"references": refs,
	})
}

// HandleGetSnapshots returns stored screening snapshots. Supports ?date= in
// YYYY-MM-DD form and ?discounted=true.
// GET /api/snapshots
func (h *ValuationHandlers) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	filter := SnapshotFilter{
		Date:           r.URL.Query().Get("date"),
		DiscountedOnly: r.URL.Query().Get("discounted") == "true",
	}

	snapshots, err := h.snapshotRepo.List(filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch snapshots")
		http.Error(w, "Failed to fetch snapshots", http.StatusInternalServerError)
		return
	}

	if snapshots == nil {
		snapshots = []ValuationSnapshot{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(snapshots),
		"snapshots": snapshots,
	})
}

// writeJSON writes a JSON response
func (h *ValuationHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
