package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Jobs
	mux.HandleFunc("/api/jobs/stats", s.app.JobHandler.StatsHandler)
	mux.HandleFunc("/api/jobs/process", s.app.ProcessHandler.ProcessJobsHandler)
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.GetJobHandler) // GET /api/jobs/{id}

	// API routes - Dead letter queue
	mux.HandleFunc("/api/dead-letters/requeue", s.app.DeadLetterHandler.RequeueHandler)
	mux.HandleFunc("/api/dead-letters", s.handleDeadLetterRoutes)

	// API routes - Filings
	mux.HandleFunc("/api/filings", s.app.FilingHandler.ListFilingsHandler)
	mux.HandleFunc("/api/filings/", s.app.FilingHandler.GetFilingHandler) // GET /api/filings/{id}
	mux.HandleFunc("/api/companies", s.app.FilingHandler.ListCompaniesHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleDeadLetterRoutes dispatches /api/dead-letters by method
func (s *Server) handleDeadLetterRoutes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.DeadLetterHandler.ListHandler(w, r)
	case http.MethodDelete:
		s.app.DeadLetterHandler.CleanupHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
