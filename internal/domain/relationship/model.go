package relationship

import (
	"errors"
	"fmt"
	"time"
)

// MaxExamples caps the number of similar examples returned for one pair.
const MaxExamples = 5

// ErrNotFound is returned when no relationship exists for a pair.
var ErrNotFound = errors.New("relationship not found")

// Source records who established a relationship.
type Source string

const (
	SourceAIGenerated   Source = "ai_generated"
	SourceUserConfirmed Source = "user_confirmed"
	SourceManualCurated Source = "manual_curated"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceAIGenerated, SourceUserConfirmed, SourceManualCurated:
		return true
	}
	return false
}

// Relationship is a stored, validated (diagnosis, procedure) pairing.
type Relationship struct {
	ID                   int64     `json:"id"`
	DiagnosisCode        string    `json:"diagnosis_code"`
	DiagnosisDescription string    `json:"diagnosis_description"`
	DiagnosisCategory    string    `json:"diagnosis_category"`
	ProcedureCode        string    `json:"procedure_code"`
	ProcedureDescription string    `json:"procedure_description"`
	ProcedureCategory    string    `json:"procedure_category"`
	RelationshipText     string    `json:"relationship_text"`
	Confidence           float64   `json:"confidence"`
	CombinedCategoryKey  string    `json:"combined_category_key"`
	Source               Source    `json:"source"`
	CreatedAt            time.Time `json:"created_at"`
}

// CombinedKey builds the "{diagnosis_category}|{procedure_category}" key.
func CombinedKey(diagnosisCategory, procedureCategory string) string {
	return diagnosisCategory + "|" + procedureCategory
}

// Normalize fills derived fields before insert.
func (r *Relationship) Normalize() {
	if r.Source == "" {
		r.Source = SourceAIGenerated
	}
	r.CombinedCategoryKey = CombinedKey(r.DiagnosisCategory, r.ProcedureCategory)
}

// Validate checks the fields required by the store.
func (r *Relationship) Validate() error {
	if r.DiagnosisCode == "" || r.ProcedureCode == "" {
		return fmt.Errorf("diagnosis_code and procedure_code are required")
	}
	if r.RelationshipText == "" {
		return fmt.Errorf("relationship_text is required")
	}
	if r.Confidence < 0 || r.Confidence > 1 || r.Confidence != r.Confidence {
		return fmt.Errorf("confidence must be within [0,1], got %v", r.Confidence)
	}
	if !r.Source.Valid() {
		return fmt.Errorf("unknown relationship source %q", r.Source)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxExamples {
		return MaxExamples
	}
	return limit
}
