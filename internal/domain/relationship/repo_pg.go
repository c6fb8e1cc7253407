package relationship

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/icdachi/validator/internal/platform/db"
)

const relationshipColumns = `id, diagnosis_code, diagnosis_description, diagnosis_category,
	procedure_code, procedure_description, procedure_category,
	relationship_text, confidence, combined_category_key, source, created_at`

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func scanPG(row pgx.Row) (*Relationship, error) {
	var r Relationship
	var source string
	err := row.Scan(&r.ID, &r.DiagnosisCode, &r.DiagnosisDescription, &r.DiagnosisCategory,
		&r.ProcedureCode, &r.ProcedureDescription, &r.ProcedureCategory,
		&r.RelationshipText, &r.Confidence, &r.CombinedCategoryKey, &source, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Source = Source(source)
	return &r, nil
}

func (r *repoPG) GetByPair(ctx context.Context, diagnosisCode, procedureCode string) (*Relationship, error) {
	rel, err := scanPG(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+relationshipColumns+` FROM relationships
		 WHERE diagnosis_code = $1 AND procedure_code = $2`, diagnosisCode, procedureCode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship: %w", err)
	}
	return rel, nil
}

func (r *repoPG) SimilarExamples(ctx context.Context, diagnosisCategory, procedureCategory string, limit int) ([]*Relationship, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+relationshipColumns+` FROM relationships
		 WHERE diagnosis_category = $1 AND procedure_category = $2
		 ORDER BY confidence DESC, id ASC
		 LIMIT $3`, diagnosisCategory, procedureCategory, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("similar examples: %w", err)
	}
	defer rows.Close()
	var results []*Relationship
	for rows.Next() {
		rel, err := scanPG(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rel)
	}
	return results, rows.Err()
}

func (r *repoPG) Insert(ctx context.Context, rel *Relationship) (bool, error) {
	rel.Normalize()
	if err := rel.Validate(); err != nil {
		return false, err
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO relationships (diagnosis_code, diagnosis_description, diagnosis_category,
		   procedure_code, procedure_description, procedure_category,
		   relationship_text, confidence, combined_category_key, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (diagnosis_code, procedure_code) DO NOTHING
		 RETURNING id, created_at`,
		rel.DiagnosisCode, rel.DiagnosisDescription, rel.DiagnosisCategory,
		rel.ProcedureCode, rel.ProcedureDescription, rel.ProcedureCategory,
		rel.RelationshipText, rel.Confidence, rel.CombinedCategoryKey, string(rel.Source)).
		Scan(&rel.ID, &rel.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert relationship: %w", err)
	}
	return true, nil
}
