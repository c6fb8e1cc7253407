package codes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	diagnosisColumnsSQLite = `code, description, COALESCE(category,''), COALESCE(short_description,'')`
	procedureColumnsSQLite = `code, description, COALESCE(category,''), COALESCE(short_description,''),
		main_category_code, sub_category_id`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcedureSQLite(row rowScanner) (*Procedure, error) {
	var (
		p    Procedure
		main sql.NullString
		sub  sql.NullInt64
	)
	if err := row.Scan(&p.Code, &p.Description, &p.Category, &p.ShortDescription, &main, &sub); err != nil {
		return nil, err
	}
	if main.Valid {
		v := main.String
		p.MainCategoryCode = &v
	}
	if sub.Valid {
		v := int(sub.Int64)
		p.SubCategoryID = &v
	}
	p.Category = categoryOrUnknown(p.Category)
	return &p, nil
}

// =========== Diagnosis Repository ===========

type diagnosisRepoSQLite struct{ db *sql.DB }

func NewDiagnosisRepoSQLite(db *sql.DB) DiagnosisRepository {
	return &diagnosisRepoSQLite{db: db}
}

func (r *diagnosisRepoSQLite) Search(ctx context.Context, query string, limit int) ([]*Diagnosis, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+diagnosisColumnsSQLite+` FROM diagnosis_codes
		 WHERE code LIKE ? OR description LIKE ?
		 ORDER BY code LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("diagnosis search: %w", err)
	}
	defer rows.Close()
	var results []*Diagnosis
	for rows.Next() {
		var d Diagnosis
		if err := rows.Scan(&d.Code, &d.Description, &d.Category, &d.ShortDescription); err != nil {
			return nil, err
		}
		d.Category = categoryOrUnknown(d.Category)
		results = append(results, &d)
	}
	return results, rows.Err()
}

func (r *diagnosisRepoSQLite) GetByCode(ctx context.Context, code string) (*Diagnosis, error) {
	var d Diagnosis
	err := r.db.QueryRowContext(ctx,
		`SELECT `+diagnosisColumnsSQLite+` FROM diagnosis_codes WHERE code = ?`, code).
		Scan(&d.Code, &d.Description, &d.Category, &d.ShortDescription)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("diagnosis get: %w", err)
	}
	d.Category = categoryOrUnknown(d.Category)
	return &d, nil
}

// =========== Procedure Repository ===========

type procedureRepoSQLite struct{ db *sql.DB }

func NewProcedureRepoSQLite(db *sql.DB) ProcedureRepository {
	return &procedureRepoSQLite{db: db}
}

func (r *procedureRepoSQLite) Search(ctx context.Context, query string, limit int) ([]*Procedure, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+procedureColumnsSQLite+` FROM procedure_codes
		 WHERE code LIKE ? OR description LIKE ? OR short_description LIKE ?
		 ORDER BY code LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("procedure search: %w", err)
	}
	defer rows.Close()
	var results []*Procedure
	for rows.Next() {
		p, err := scanProcedureSQLite(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (r *procedureRepoSQLite) GetByCode(ctx context.Context, code string) (*Procedure, error) {
	p, err := scanProcedureSQLite(r.db.QueryRowContext(ctx,
		`SELECT `+procedureColumnsSQLite+` FROM procedure_codes WHERE code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("procedure get: %w", err)
	}
	return p, nil
}

// =========== Writer ===========

type writerSQLite struct{ db *sql.DB }

func NewWriterSQLite(db *sql.DB) Writer { return &writerSQLite{db: db} }

func (w *writerSQLite) UpsertDiagnosis(ctx context.Context, d *Diagnosis) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO diagnosis_codes (code, description, short_description, category)
		 VALUES (?, ?, NULLIF(?,''), NULLIF(?,''))
		 ON CONFLICT (code) DO UPDATE SET
		   description = excluded.description,
		   short_description = excluded.short_description,
		   category = excluded.category`,
		d.Code, d.Description, d.ShortDescription, d.Category)
	if err != nil {
		return fmt.Errorf("upsert diagnosis %s: %w", d.Code, err)
	}
	return nil
}

func (w *writerSQLite) UpsertMainCategory(ctx context.Context, m *MainCategory) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO procedure_main_categories (code, name, full_label)
		 VALUES (?, ?, NULLIF(?,''))
		 ON CONFLICT (code) DO UPDATE SET name = excluded.name, full_label = excluded.full_label`,
		m.Code, m.Name, m.FullLabel)
	if err != nil {
		return fmt.Errorf("upsert main category %s: %w", m.Code, err)
	}
	return nil
}

func (w *writerSQLite) UpsertSubCategory(ctx context.Context, s *SubCategory) (int, error) {
	var id int
	err := w.db.QueryRowContext(ctx,
		`INSERT INTO procedure_sub_categories (range_start, range_end, name, main_category_code)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (range_start, range_end) DO UPDATE SET
		   name = excluded.name, main_category_code = excluded.main_category_code
		 RETURNING id`,
		s.RangeStart, s.RangeEnd, s.Name, s.MainCategoryCode).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert sub category %d-%d: %w", s.RangeStart, s.RangeEnd, err)
	}
	s.ID = id
	return id, nil
}

func (w *writerSQLite) UpsertProcedure(ctx context.Context, p *Procedure) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO procedure_codes (code, description, short_description, category, main_category_code, sub_category_id)
		 VALUES (?, ?, NULLIF(?,''), NULLIF(?,''), ?, ?)
		 ON CONFLICT (code) DO UPDATE SET
		   description = excluded.description,
		   short_description = excluded.short_description,
		   category = excluded.category,
		   main_category_code = excluded.main_category_code,
		   sub_category_id = excluded.sub_category_id`,
		p.Code, p.Description, p.ShortDescription, p.Category, p.MainCategoryCode, p.SubCategoryID)
	if err != nil {
		return fmt.Errorf("upsert procedure %s: %w", p.Code, err)
	}
	return nil
}
