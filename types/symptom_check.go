package types

import "time"

// Symptom check statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// SymptomInput is the structured symptom submission a user provides.
type SymptomInput struct {
	// Age is the patient age in years, between 1 and 120.
	Age int `json:"age" db:"age"`

	// Sex is the patient sex as free text (male/female/other).
	Sex string `json:"sex" db:"sex"`

	// Symptoms is the free-text symptom description.
	Symptoms string `json:"symptoms" db:"symptoms"`

	// Duration describes how long the symptoms have been present.
	Duration string `json:"duration" db:"duration"`

	// Severity is the self-reported severity on a 1-10 scale.
	Severity int `json:"severity" db:"severity"`

	// AdditionalNotes carries optional extra context.
	AdditionalNotes string `json:"additional_notes,omitempty" db:"additional_notes"`
}

// SymptomCheck is one persisted symptom submission together with the
// generated analysis. Records are immutable after creation and are
// removed only when the owning user is deleted.
type SymptomCheck struct {
	// ID is the unique identifier of the record.
	ID int64 `json:"id" db:"id"`

	// UserID references the owning user.
	UserID int64 `json:"user_id" db:"user_id"`

	// Input is the structured submission the user provided.
	Input SymptomInput `json:"input"`

	// Analysis is the text returned by the analysis provider, verbatim.
	// For failed checks it holds a short error summary instead.
	Analysis string `json:"analysis" db:"analysis"`

	// Status is "completed" when the analysis call succeeded and
	// "failed" when it did not.
	Status string `json:"status" db:"status"`

	// CreatedAt is the timestamp when the record was created. History
	// listings are ordered by it, most recent first.
	CreatedAt time.Time `json:"timestamp" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the record.
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}
