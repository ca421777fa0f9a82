package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Read-only rollups for the dashboard
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/latest-prices", handler.GetLatestPrices).Methods("GET")
	api.HandleFunc("/performance", handler.GetPerformanceSummary).Methods("GET")
	api.HandleFunc("/runs", handler.GetExecutionSummary).Methods("GET")
	api.HandleFunc("/runs/{run_id}/quality", handler.GetRunQuality).Methods("GET")

	return r
}
