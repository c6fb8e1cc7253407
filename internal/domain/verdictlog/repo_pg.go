package verdictlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/icdachi/validator/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) Record(ctx context.Context, e *Entry) (bool, error) {
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO verdict_log (diagnosis_code, procedure_code, decision, confidence_percent, reasoning, source)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (diagnosis_code, procedure_code) DO NOTHING
		 RETURNING id, logged_at`,
		e.DiagnosisCode, e.ProcedureCode, e.Decision, e.ConfidencePercent, e.Reasoning, e.Source,
	).Scan(&e.ID, &e.LoggedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record verdict: %w", err)
	}
	return true, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+entryColumns+` FROM verdict_log ORDER BY id LIMIT $1 OFFSET $2`, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list verdicts: %w", err)
	}
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.DiagnosisCode, &e.ProcedureCode, &e.Decision, &e.ConfidencePercent,
			&e.Reasoning, &e.Source, &e.LoggedAt, &e.ReviewerRating, &e.ReviewerNotes); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *repoPG) Rate(ctx context.Context, diagnosisCode, procedureCode, rating, notes string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE verdict_log SET reviewer_rating = $3, reviewer_notes = NULLIF($4, '')
		 WHERE diagnosis_code = $1 AND procedure_code = $2`,
		diagnosisCode, procedureCode, rating, notes)
	if err != nil {
		return fmt.Errorf("rate verdict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
