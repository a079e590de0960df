package scheduler

import (
	"fmt"

	"github.com/ashani/stock-screener/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// ReferenceRefreshJob periodically rebuilds the valuation references.
// Averages drift slowly, so this runs on a weekly cadence.
type ReferenceRefreshJob struct {
	service *valuation.ReferenceService
	log     zerolog.Logger
}

// NewReferenceRefreshJob creates a new reference refresh job
func NewReferenceRefreshJob(service *valuation.ReferenceService, log zerolog.Logger) *ReferenceRefreshJob {
	return &ReferenceRefreshJob{
		service: service,
		log:     log.With().Str("job", "reference_refresh").Logger(),
	}
}

// Name returns the job name
func (j *ReferenceRefreshJob) Name() string {
	return "reference_refresh"
}

// Run executes the reference refresh
func (j *ReferenceRefreshJob) Run() error {
	result, err := j.service.Refresh()
	if err != nil {
		return fmt.Errorf("reference refresh failed: %w", err)
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Int("total", result.Total).
		Int("computed", result.Processed).
		Msg("Scheduled reference refresh complete")

	return nil
}

// ScreeningJob periodically takes discount snapshots of the market
type ScreeningJob struct {
	service *valuation.ScreenerService
	log     zerolog.Logger
}

// NewScreeningJob creates a new screening job
func NewScreeningJob(service *valuation.ScreenerService, log zerolog.Logger) *ScreeningJob {
	return &ScreeningJob{
		service: service,
		log:     log.With().Str("job", "screening").Logger(),
	}
}

// Name returns the job name
func (j *ScreeningJob) Name() string {
	return "screening"
}

// Run executes the screen
func (j *ScreeningJob) Run() error {
	result, err := j.service.Screen()
	if err != nil {
		return fmt.Errorf("screening failed: %w", err)
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Int("screened", result.Processed).
		Msg("Scheduled screen complete")

	return nil
}
