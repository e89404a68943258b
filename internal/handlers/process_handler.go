package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/queue"
)

// ProcessHandler triggers queue processing passes over HTTP. This is the
// manual counterpart to the scheduler's processing tick and shares the same
// distributed lock with it.
type ProcessHandler struct {
	processor *queue.Processor
	queue     *queue.Service
	logger    arbor.ILogger
}

func NewProcessHandler(processor *queue.Processor, queueService *queue.Service, logger arbor.ILogger) *ProcessHandler {
	return &ProcessHandler{
		processor: processor,
		queue:     queueService,
		logger:    logger,
	}
}

// ProcessJobsHandler runs one processing pass and reports the outcome.
// GET /api/jobs/process?type=process_filing
// The type parameter accepts either a job type or a filing form type; a
// form type (e.g. "10-K") enqueues a filtered feed check first. A pass
// skipped because another instance holds the lock is still a 200; the work
// is being done, just not here.
func (h *ProcessHandler) ProcessJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	raw := r.URL.Query().Get("type")
	typeFilter := models.JobType(raw)

	if raw != "" && !models.ValidJobType(typeFilter) {
		if !models.ValidFilingType(models.FilingType(raw)) {
			WriteError(w, http.StatusBadRequest, "Unknown job or filing type: "+raw)
			return
		}

		// Form type trigger: enqueue a feed check scoped to that form and
		// process check_filings jobs in this pass
		tick := time.Now().UTC().Format("2006-01-02T15:04")
		if _, err := h.queue.Add(r.Context(), queue.AddJobRequest{
			Type:           models.JobTypeCheckFilings,
			Payload:        models.CheckFilingsPayload{FilingType: raw},
			Priority:       models.PriorityHigh,
			IdempotencyKey: "check-filings-" + raw + "-" + tick,
		}); err != nil {
			h.logger.Error().Err(err).Str("filing_type", raw).Msg("Failed to enqueue filtered feed check")
			WriteError(w, http.StatusInternalServerError, "Failed to enqueue feed check")
			return
		}
		typeFilter = models.JobTypeCheckFilings
	}

	result, err := h.processor.ProcessJobs(r.Context(), typeFilter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Processing pass failed")
		WriteError(w, http.StatusInternalServerError, "Processing pass failed")
		return
	}

	message := "Processing pass completed"
	if result.Skipped {
		message = "Processing pass skipped, another instance holds the lock"
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   message,
		"processed": result.Processed,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
		"duration":  result.Duration.String(),
	})
}
