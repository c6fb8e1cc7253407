package relationship

import "context"

// Repository is the relationship store. Relationships are append-only and
// unique on (diagnosis_code, procedure_code).
type Repository interface {
	// GetByPair returns the stored relationship for the exact pair, or ErrNotFound.
	GetByPair(ctx context.Context, diagnosisCode, procedureCode string) (*Relationship, error)
	// SimilarExamples returns at most MaxExamples relationships sharing both
	// categories, ordered by confidence descending then insertion order.
	SimilarExamples(ctx context.Context, diagnosisCategory, procedureCategory string, limit int) ([]*Relationship, error)
	// Insert stores r unless the pair already exists; it reports whether a row was written.
	Insert(ctx context.Context, r *Relationship) (bool, error)
}
