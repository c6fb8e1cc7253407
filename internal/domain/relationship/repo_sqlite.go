package relationship

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type repoSQLite struct{ db *sql.DB }

func NewRepoSQLite(db *sql.DB) Repository { return &repoSQLite{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*Relationship, error) {
	var (
		r       Relationship
		source  string
		created string
	)
	err := row.Scan(&r.ID, &r.DiagnosisCode, &r.DiagnosisDescription, &r.DiagnosisCategory,
		&r.ProcedureCode, &r.ProcedureDescription, &r.ProcedureCategory,
		&r.RelationshipText, &r.Confidence, &r.CombinedCategoryKey, &source, &created)
	if err != nil {
		return nil, err
	}
	r.Source = Source(source)
	r.CreatedAt = parseSQLiteTime(created)
	return &r, nil
}

// parseSQLiteTime reads CURRENT_TIMESTAMP ("2006-01-02 15:04:05") or RFC 3339 text.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (r *repoSQLite) GetByPair(ctx context.Context, diagnosisCode, procedureCode string) (*Relationship, error) {
	rel, err := scanSQLite(r.db.QueryRowContext(ctx,
		`SELECT `+relationshipColumns+` FROM relationships
		 WHERE diagnosis_code = ? AND procedure_code = ?`, diagnosisCode, procedureCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship: %w", err)
	}
	return rel, nil
}

func (r *repoSQLite) SimilarExamples(ctx context.Context, diagnosisCategory, procedureCategory string, limit int) ([]*Relationship, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+relationshipColumns+` FROM relationships
		 WHERE diagnosis_category = ? AND procedure_category = ?
		 ORDER BY confidence DESC, id ASC
		 LIMIT ?`, diagnosisCategory, procedureCategory, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("similar examples: %w", err)
	}
	defer rows.Close()
	var results []*Relationship
	for rows.Next() {
		rel, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rel)
	}
	return results, rows.Err()
}

func (r *repoSQLite) Insert(ctx context.Context, rel *Relationship) (bool, error) {
	rel.Normalize()
	if err := rel.Validate(); err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO relationships (diagnosis_code, diagnosis_description, diagnosis_category,
		   procedure_code, procedure_description, procedure_category,
		   relationship_text, confidence, combined_category_key, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rel.DiagnosisCode, rel.DiagnosisDescription, rel.DiagnosisCategory,
		rel.ProcedureCode, rel.ProcedureDescription, rel.ProcedureCategory,
		rel.RelationshipText, rel.Confidence, rel.CombinedCategoryKey, string(rel.Source))
	if err != nil {
		return false, fmt.Errorf("insert relationship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert relationship: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		rel.ID = id
	}
	return true, nil
}
