package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// FilingHandler exposes discovered filings and their summaries
type FilingHandler struct {
	filings   interfaces.FilingStorage
	summaries interfaces.SummaryStorage
	companies interfaces.CompanyStorage
	logger    arbor.ILogger
}

func NewFilingHandler(filings interfaces.FilingStorage, summaries interfaces.SummaryStorage, companies interfaces.CompanyStorage, logger arbor.ILogger) *FilingHandler {
	return &FilingHandler{
		filings:   filings,
		summaries: summaries,
		companies: companies,
		logger:    logger,
	}
}

type filingResponse struct {
	*models.Filing
	Summary *models.Summary `json:"summary,omitempty"`
}

// ListFilingsHandler returns recent filings, newest first
// GET /api/filings?limit=20
func (h *FilingHandler) ListFilingsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := QueryInt(r, "limit", 20)
	filings, err := h.filings.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list filings")
		WriteError(w, http.StatusInternalServerError, "Failed to list filings")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"filings": filings,
		"count":   len(filings),
	})
}

// GetFilingHandler returns one filing with its summary when available
// GET /api/filings/{id}
func (h *FilingHandler) GetFilingHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	filingID := strings.TrimPrefix(r.URL.Path, "/api/filings/")
	if filingID == "" || strings.Contains(filingID, "/") {
		WriteError(w, http.StatusBadRequest, "Filing ID is required")
		return
	}

	filing, err := h.filings.GetByID(r.Context(), filingID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Filing not found")
			return
		}
		h.logger.Error().Err(err).Str("filing_id", filingID).Msg("Failed to get filing")
		WriteError(w, http.StatusInternalServerError, "Failed to get filing")
		return
	}

	resp := filingResponse{Filing: filing}
	summary, err := h.summaries.GetByFilingID(r.Context(), filingID)
	if err == nil {
		resp.Summary = summary
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		h.logger.Warn().Err(err).Str("filing_id", filingID).Msg("Failed to load summary")
	}

	WriteJSON(w, http.StatusOK, resp)
}

// ListCompaniesHandler returns the tracked issuers
// GET /api/companies
func (h *FilingHandler) ListCompaniesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	companies, err := h.companies.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list companies")
		WriteError(w, http.StatusInternalServerError, "Failed to list companies")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"companies": companies,
		"count":     len(companies),
	})
}
