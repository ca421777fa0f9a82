package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/stockpipe/stock-etl/internal/database"
)

// Handler holds dependencies for the read-only dashboard API. The
// dashboard only ever pulls; nothing here mutates the store.
type Handler struct {
	db *database.DB
}

// NewHandler creates a new Handler
func NewHandler(db *database.DB) *Handler {
	return &Handler{db: db}
}

// GetLatestPrices handles GET /api/v1/latest-prices
func (h *Handler) GetLatestPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.db.GetLatestPrices()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, prices)
}

// GetPerformanceSummary handles GET /api/v1/performance
func (h *Handler) GetPerformanceSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.db.GetPerformanceSummary()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, summaries)
}

// GetExecutionSummary handles GET /api/v1/runs
func (h *Handler) GetExecutionSummary(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	summaries, err := h.db.GetExecutionSummary(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, summaries)
}

// GetRunQuality handles GET /api/v1/runs/{run_id}/quality
func (h *Handler) GetRunQuality(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID := vars["run_id"]

	results, err := h.db.GetQualityResults(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, results)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
