// Package verdictlog keeps one reviewable row per validated pair and exports
// the log as a spreadsheet.
package verdictlog

import (
	"errors"
	"math"
	"time"

	"github.com/icdachi/validator/internal/domain/verdict"
)

// ErrNotFound is returned when no entry exists for a pair.
var ErrNotFound = errors.New("verdict log entry not found")

const (
	DecisionValid   = "Valid"
	DecisionInvalid = "Invalid"
)

// Entry is the first determined verdict served for a pair, plus an optional
// reviewer rating.
type Entry struct {
	ID                int64     `json:"id"`
	DiagnosisCode     string    `json:"diagnosis_code"`
	ProcedureCode     string    `json:"procedure_code"`
	Decision          string    `json:"decision"`
	ConfidencePercent float64   `json:"confidence_percent"`
	Reasoning         string    `json:"reasoning"`
	Source            string    `json:"source"`
	LoggedAt          time.Time `json:"logged_at"`
	ReviewerRating    *string   `json:"reviewer_rating,omitempty"`
	ReviewerNotes     *string   `json:"reviewer_notes,omitempty"`
}

// Rated reports whether a reviewer has rated the entry.
func (e *Entry) Rated() bool {
	return e.ReviewerRating != nil && *e.ReviewerRating != ""
}

// FromResult builds the log entry for a served result.
func FromResult(diagnosisCode, procedureCode string, r *verdict.Result) *Entry {
	decision := DecisionInvalid
	if r.IsValid {
		decision = DecisionValid
	}
	return &Entry{
		DiagnosisCode:     diagnosisCode,
		ProcedureCode:     procedureCode,
		Decision:          decision,
		ConfidencePercent: math.Round(r.Confidence*10000) / 100,
		Reasoning:         r.Reasoning,
		Source:            string(r.Source),
	}
}

const (
	defaultListLimit = 100
	maxListLimit     = 10000
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
