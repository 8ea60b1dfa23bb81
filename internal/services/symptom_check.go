package services

import (
	"context"
	"fmt"

	"github.com/symptomly/apiserver/internal/analysis"
	"github.com/symptomly/apiserver/internal/logging"
	"github.com/symptomly/apiserver/types"
)

// SymptomCheckRepository defines persistence operations for symptom checks.
type SymptomCheckRepository interface {
	Create(ctx context.Context, check types.SymptomCheck) (types.SymptomCheck, error)
	ListByUser(ctx context.Context, userID int64) ([]types.SymptomCheck, error)
}

// SymptomCheckService runs symptom submissions through the analysis
// provider and keeps per-user history.
type SymptomCheckService struct {
	repo     SymptomCheckRepository
	analyzer analysis.Analyzer
	log      logging.Logger
}

func NewSymptomCheckService(repo SymptomCheckRepository, analyzer analysis.Analyzer, log logging.Logger) *SymptomCheckService {
	return &SymptomCheckService{repo: repo, analyzer: analyzer, log: log}
}

// Submit requests an analysis for the input and persists the outcome
// as a single record. A failed analysis is still recorded, with
// status "failed" and a fallback summary as the analysis text, and the
// analysis error is returned alongside the record so the caller can
// report the failure.
func (s *SymptomCheckService) Submit(ctx context.Context, userID int64, input types.SymptomInput) (types.SymptomCheck, error) {
	check := types.SymptomCheck{
		UserID: userID,
		Input:  input,
	}

	text, analyzeErr := s.analyzer.Analyze(ctx, input)
	if analyzeErr != nil {
		s.log.Error(ctx, "symptom analysis failed", "user_id", userID, "error", analyzeErr)
		check.Analysis = analysis.FallbackSummary()
		check.Status = types.StatusFailed
	} else {
		check.Analysis = text
		check.Status = types.StatusCompleted
	}

	// The record is written exactly once, after the analysis outcome
	// is known, so a failure can never leave a partial row.
	created, err := s.repo.Create(ctx, check)
	if err != nil {
		return types.SymptomCheck{}, fmt.Errorf("persist symptom check: %w", err)
	}

	if analyzeErr != nil {
		return created, analyzeErr
	}
	return created, nil
}

// History returns the user's symptom checks, most recent first.
func (s *SymptomCheckService) History(ctx context.Context, userID int64) ([]types.SymptomCheck, error) {
	return s.repo.ListByUser(ctx, userID)
}
