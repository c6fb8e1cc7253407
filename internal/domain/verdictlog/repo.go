package verdictlog

import "context"

// Repository stores verdict log entries, unique per pair.
type Repository interface {
	// Record inserts e unless the pair is already logged and reports whether a row was written.
	Record(ctx context.Context, e *Entry) (bool, error)
	// List returns entries in insertion order.
	List(ctx context.Context, limit, offset int) ([]*Entry, error)
	// Rate attaches a reviewer rating and notes to a logged pair.
	Rate(ctx context.Context, diagnosisCode, procedureCode, rating, notes string) error
}

const entryColumns = `id, diagnosis_code, procedure_code, decision, confidence_percent,
	reasoning, source, logged_at, reviewer_rating, reviewer_notes`
