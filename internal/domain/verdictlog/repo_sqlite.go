package verdictlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type repoSQLite struct{ db *sql.DB }

func NewRepoSQLite(db *sql.DB) Repository { return &repoSQLite{db: db} }

func (r *repoSQLite) Record(ctx context.Context, e *Entry) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO verdict_log (diagnosis_code, procedure_code, decision, confidence_percent, reasoning, source)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.DiagnosisCode, e.ProcedureCode, e.Decision, e.ConfidencePercent, e.Reasoning, e.Source)
	if err != nil {
		return false, fmt.Errorf("record verdict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record verdict: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return true, nil
}

func (r *repoSQLite) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM verdict_log ORDER BY id LIMIT ? OFFSET ?`, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list verdicts: %w", err)
	}
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		var (
			e      Entry
			logged string
			rating sql.NullString
			notes  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.DiagnosisCode, &e.ProcedureCode, &e.Decision, &e.ConfidencePercent,
			&e.Reasoning, &e.Source, &logged, &rating, &notes); err != nil {
			return nil, err
		}
		e.LoggedAt = parseSQLiteTime(logged)
		if rating.Valid {
			e.ReviewerRating = &rating.String
		}
		if notes.Valid {
			e.ReviewerNotes = &notes.String
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *repoSQLite) Rate(ctx context.Context, diagnosisCode, procedureCode, rating, notes string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE verdict_log SET reviewer_rating = ?, reviewer_notes = NULLIF(?, '')
		 WHERE diagnosis_code = ? AND procedure_code = ?`,
		rating, notes, diagnosisCode, procedureCode)
	if err != nil {
		return fmt.Errorf("rate verdict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rate verdict: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
