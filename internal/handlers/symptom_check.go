package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/symptomly/apiserver/internal/analysis"
	"github.com/symptomly/apiserver/internal/services"
	"github.com/symptomly/apiserver/types"
)

const (
	minAge         = 1
	maxAge         = 120
	minSeverity    = 1
	maxSeverity    = 10
	minSymptomsLen = 10
	maxSexLen      = 10
	maxDurationLen = 100
)

// SymptomCheckHandler provides the symptom submission and history endpoints.
type SymptomCheckHandler struct {
	checkService *services.SymptomCheckService
}

// NewSymptomCheckHandler constructs a handler with the provided service.
func NewSymptomCheckHandler(checkService *services.SymptomCheckService) *SymptomCheckHandler {
	return &SymptomCheckHandler{checkService: checkService}
}

// SymptomCheckRouter registers symptom-check routes on the given router.
// All routes require API-key authentication.
func SymptomCheckRouter(
	r chi.Router,
	checkService *services.SymptomCheckService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewSymptomCheckHandler(checkService)

	r.With(authMiddleware).Post("/symptom-check", handler.Submit)
	r.With(authMiddleware).Get("/symptom-history", handler.History)
}

// Submit validates the submission, runs it through the analysis
// provider, and returns the created record.
func (h *SymptomCheckHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input types.SymptomInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := validateSymptomInput(&input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	check, err := h.checkService.Submit(r.Context(), user.ID, input)
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrTimeout):
			writeError(w, http.StatusGatewayTimeout, "analysis timed out")
		case errors.Is(err, analysis.ErrUnavailable):
			writeError(w, http.StatusBadGateway, "analysis temporarily unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "failed to process symptom check")
		}
		return
	}

	writeJSON(w, http.StatusCreated, check)
}

// History returns the authenticated user's prior checks, most recent first.
func (h *SymptomCheckHandler) History(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	checks, err := h.checkService.History(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to retrieve symptom history")
		return
	}

	writeJSON(w, http.StatusOK, SymptomHistoryResponse{
		Checks:     checks,
		TotalCount: len(checks),
	})
}

// SymptomHistoryResponse wraps a history listing.
type SymptomHistoryResponse struct {
	Checks     []types.SymptomCheck `json:"checks"`
	TotalCount int                  `json:"total_count"`
}

func validateSymptomInput(input *types.SymptomInput) error {
	input.Sex = strings.TrimSpace(input.Sex)
	input.Symptoms = strings.TrimSpace(input.Symptoms)
	input.Duration = strings.TrimSpace(input.Duration)
	input.AdditionalNotes = strings.TrimSpace(input.AdditionalNotes)

	if input.Age < minAge || input.Age > maxAge {
		return fmt.Errorf("age must be between %d and %d", minAge, maxAge)
	}
	if input.Sex == "" || len(input.Sex) > maxSexLen {
		return errors.New("sex is required")
	}
	if len(input.Symptoms) < minSymptomsLen {
		return fmt.Errorf("symptoms must be at least %d characters", minSymptomsLen)
	}
	if input.Duration == "" || len(input.Duration) > maxDurationLen {
		return errors.New("duration is required")
	}
	if input.Severity < minSeverity || input.Severity > maxSeverity {
		return fmt.Errorf("severity must be between %d and %d", minSeverity, maxSeverity)
	}
	return nil
}
