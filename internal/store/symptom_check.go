package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/symptomly/apiserver/types"
)

// SymptomCheckRepository handles persistence for symptom checks.
type SymptomCheckRepository struct {
	db *sql.DB
}

func NewSymptomCheckRepository(db *sql.DB) *SymptomCheckRepository {
	return &SymptomCheckRepository{db: db}
}

func (r *SymptomCheckRepository) Create(ctx context.Context, check types.SymptomCheck) (types.SymptomCheck, error) {
	now := time.Now()
	check.CreatedAt = now
	check.UpdatedAt = now

	notes := sql.NullString{String: check.Input.AdditionalNotes, Valid: check.Input.AdditionalNotes != ""}

	const query = `
		INSERT INTO symptom_checks (user_id, age, sex, symptoms, duration, severity, additional_notes, analysis, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		check.UserID,
		check.Input.Age,
		check.Input.Sex,
		check.Input.Symptoms,
		check.Input.Duration,
		check.Input.Severity,
		notes,
		check.Analysis,
		check.Status,
		check.CreatedAt,
		check.UpdatedAt,
	).Scan(&check.ID); err != nil {
		return types.SymptomCheck{}, err
	}
	return check, nil
}

// ListByUser returns the user's symptom checks, most recent first.
func (r *SymptomCheckRepository) ListByUser(ctx context.Context, userID int64) ([]types.SymptomCheck, error) {
	const query = `
		SELECT id, user_id, age, sex, symptoms, duration, severity, additional_notes, analysis, status, created_at, updated_at
		FROM symptom_checks
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checks := make([]types.SymptomCheck, 0)
	for rows.Next() {
		var check types.SymptomCheck
		var notes sql.NullString
		if err := rows.Scan(
			&check.ID,
			&check.UserID,
			&check.Input.Age,
			&check.Input.Sex,
			&check.Input.Symptoms,
			&check.Input.Duration,
			&check.Input.Severity,
			&notes,
			&check.Analysis,
			&check.Status,
			&check.CreatedAt,
			&check.UpdatedAt,
		); err != nil {
			return nil, err
		}
		check.Input.AdditionalNotes = notes.String
		checks = append(checks, check)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return checks, nil
}
