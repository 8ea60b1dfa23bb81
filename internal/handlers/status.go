package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/symptomly/apiserver/internal/analysis"
)

const statusProbeTimeout = 5 * time.Second

// StatusHandler reports liveness of the service and its dependencies.
type StatusHandler struct {
	db       *sql.DB
	analyzer analysis.Analyzer
}

// NewStatusHandler constructs a handler probing the given dependencies.
func NewStatusHandler(db *sql.DB, analyzer analysis.Analyzer) *StatusHandler {
	return &StatusHandler{db: db, analyzer: analyzer}
}

// Status answers GET /status with per-dependency health.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusProbeTimeout)
	defer cancel()

	dbStatus := "healthy"
	if err := h.db.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	analysisStatus := "healthy"
	if !h.analyzer.Healthy(ctx) {
		analysisStatus = "unhealthy"
	}

	overall := "healthy"
	if dbStatus != "healthy" || analysisStatus != "healthy" {
		overall = "unhealthy"
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    overall,
		Database:  dbStatus,
		Analysis:  analysisStatus,
		Timestamp: time.Now().UTC(),
	})
}

// Root answers GET / with service metadata.
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Symptomly API",
		"version": "1.0.0",
		"status":  "/status",
	})
}

// StatusResponse is the liveness payload.
type StatusResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Analysis  string    `json:"analysis"`
	Timestamp time.Time `json:"timestamp"`
}
