package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/queue"
)

// DeadLetterHandler exposes dead letter queue inspection and recovery.
// When an API key is configured, every endpoint requires it in the
// X-API-Key header.
type DeadLetterHandler struct {
	deadLetter *queue.DeadLetterService
	queue      *queue.Service
	config     *common.ServerConfig
	logger     arbor.ILogger
}

func NewDeadLetterHandler(deadLetter *queue.DeadLetterService, queueService *queue.Service, config *common.ServerConfig, logger arbor.ILogger) *DeadLetterHandler {
	return &DeadLetterHandler{
		deadLetter: deadLetter,
		queue:      queueService,
		config:     config,
		logger:     logger,
	}
}

func (h *DeadLetterHandler) authorized(w http.ResponseWriter, r *http.Request) bool {
	if h.config.APIKey == "" {
		return true
	}
	if r.Header.Get("X-API-Key") != h.config.APIKey {
		WriteError(w, http.StatusUnauthorized, "Invalid or missing API key")
		return false
	}
	return true
}

// ListHandler returns dead letter entries, newest first
// GET /api/dead-letters?limit=50&offset=0&include_reprocessed=true
func (h *DeadLetterHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	if !h.authorized(w, r) {
		return
	}

	limit := QueryInt(r, "limit", 50)
	offset := QueryInt(r, "offset", 0)
	includeReprocessed := r.URL.Query().Get("include_reprocessed") == "true"

	entries, err := h.deadLetter.Entries(r.Context(), limit, offset, includeReprocessed)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list dead letter entries")
		WriteError(w, http.StatusInternalServerError, "Failed to list dead letter entries")
		return
	}

	total, err := h.deadLetter.Count(r.Context(), includeReprocessed)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count dead letter entries")
		total = len(entries)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries":     entries,
		"total_count": total,
		"limit":       limit,
		"offset":      offset,
	})
}

// RequeueHandler re-enqueues a dead letter entry as a fresh job
// POST /api/dead-letters/requeue {"id": "dlq_..."}
func (h *DeadLetterHandler) RequeueHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if !h.authorized(w, r) {
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		WriteError(w, http.StatusBadRequest, "Entry ID is required")
		return
	}

	addJob := func(ctx context.Context, jobType models.JobType, payload json.RawMessage) (string, error) {
		job, err := h.queue.Add(ctx, queue.AddJobRequest{
			Type:     jobType,
			Payload:  payload,
			Priority: models.PriorityNormal,
		})
		if err != nil {
			return "", err
		}
		return job.ID, nil
	}

	newJobID := h.deadLetter.Requeue(r.Context(), req.ID, addJob)
	if newJobID == "" {
		WriteError(w, http.StatusConflict, "Entry not found, already reprocessed, or requeue failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":     "success",
		"new_job_id": newJobID,
	})
}

// CleanupHandler purges reprocessed entries older than the given age
// DELETE /api/dead-letters?older_than_days=30
func (h *DeadLetterHandler) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}
	if !h.authorized(w, r) {
		return
	}

	olderThanDays := QueryInt(r, "older_than_days", 30)
	if olderThanDays <= 0 {
		WriteError(w, http.StatusBadRequest, "older_than_days must be positive")
		return
	}

	deleted := h.deadLetter.CleanupOldEntries(r.Context(), olderThanDays)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"deleted": deleted,
	})
}
