package codes

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/icdachi/validator/internal/platform/db"
)

// =========== Diagnosis Repository ===========

type diagnosisRepoPG struct{ pool *pgxpool.Pool }

func NewDiagnosisRepoPG(pool *pgxpool.Pool) DiagnosisRepository {
	return &diagnosisRepoPG{pool: pool}
}

func (r *diagnosisRepoPG) Search(ctx context.Context, query string, limit int) ([]*Diagnosis, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT code, description, COALESCE(category,''), COALESCE(short_description,'')
		 FROM diagnosis_codes
		 WHERE code ILIKE $1 OR description ILIKE $1
		 ORDER BY code LIMIT $2`, pattern, limit)
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

func (r *diagnosisRepoPG) GetByCode(ctx context.Context, code string) (*Diagnosis, error) {
	var d Diagnosis
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT code, description, COALESCE(category,''), COALESCE(short_description,'')
		 FROM diagnosis_codes WHERE code = $1`, code).
		Scan(&d.Code, &d.Description, &d.Category, &d.ShortDescription)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("diagnosis get: %w", err)
	}
	d.Category = categoryOrUnknown(d.Category)
	return &d, nil
}

// =========== Procedure Repository ===========

type procedureRepoPG struct{ pool *pgxpool.Pool }

func NewProcedureRepoPG(pool *pgxpool.Pool) ProcedureRepository {
	return &procedureRepoPG{pool: pool}
}

func (r *procedureRepoPG) Search(ctx context.Context, query string, limit int) ([]*Procedure, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT code, description, COALESCE(category,''), COALESCE(short_description,''),
		        main_category_code, sub_category_id
		 FROM procedure_codes
		 WHERE code ILIKE $1 OR description ILIKE $1 OR short_description ILIKE $1
		 ORDER BY code LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("procedure search: %w", err)
	}
	defer rows.Close()
	var results []*Procedure
	for rows.Next() {
		var p Procedure
		if err := rows.Scan(&p.Code, &p.Description, &p.Category, &p.ShortDescription,
			&p.MainCategoryCode, &p.SubCategoryID); err != nil {
			return nil, err
		}
		p.Category = categoryOrUnknown(p.Category)
		results = append(results, &p)
	}
	return results, rows.Err()
}

func (r *procedureRepoPG) GetByCode(ctx context.Context, code string) (*Procedure, error) {
	var p Procedure
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT code, description, COALESCE(category,''), COALESCE(short_description,''),
		        main_category_code, sub_category_id
		 FROM procedure_codes WHERE code = $1`, code).
		Scan(&p.Code, &p.Description, &p.Category, &p.ShortDescription,
			&p.MainCategoryCode, &p.SubCategoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("procedure get: %w", err)
	}
	p.Category = categoryOrUnknown(p.Category)
	return &p, nil
}

// =========== Writer ===========

type writerPG struct{ pool *pgxpool.Pool }

func NewWriterPG(pool *pgxpool.Pool) Writer { return &writerPG{pool: pool} }

func (w *writerPG) UpsertDiagnosis(ctx context.Context, d *Diagnosis) error {
	_, err := db.Conn(ctx, w.pool).Exec(ctx,
		`INSERT INTO diagnosis_codes (code, description, short_description, category)
		 VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''))
		 ON CONFLICT (code) DO UPDATE SET
		   description = EXCLUDED.description,
		   short_description = EXCLUDED.short_description,
		   category = EXCLUDED.category`,
		d.Code, d.Description, d.ShortDescription, d.Category)
	if err != nil {
		return fmt.Errorf("upsert diagnosis %s: %w", d.Code, err)
	}
	return nil
}

func (w *writerPG) UpsertMainCategory(ctx context.Context, m *MainCategory) error {
	_, err := db.Conn(ctx, w.pool).Exec(ctx,
		`INSERT INTO procedure_main_categories (code, name, full_label)
		 VALUES ($1, $2, NULLIF($3,''))
		 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, full_label = EXCLUDED.full_label`,
		m.Code, m.Name, m.FullLabel)
	if err != nil {
		return fmt.Errorf("upsert main category %s: %w", m.Code, err)
	}
	return nil
}

func (w *writerPG) UpsertSubCategory(ctx context.Context, s *SubCategory) (int, error) {
	var id int
	err := db.Conn(ctx, w.pool).QueryRow(ctx,
		`INSERT INTO procedure_sub_categories (range_start, range_end, name, main_category_code)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (range_start, range_end) DO UPDATE SET
		   name = EXCLUDED.name, main_category_code = EXCLUDED.main_category_code
		 RETURNING id`,
		s.RangeStart, s.RangeEnd, s.Name, s.MainCategoryCode).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert sub category %d-%d: %w", s.RangeStart, s.RangeEnd, err)
	}
	s.ID = id
	return id, nil
}

func (w *writerPG) UpsertProcedure(ctx context.Context, p *Procedure) error {
	_, err := db.Conn(ctx, w.pool).Exec(ctx,
		`INSERT INTO procedure_codes (code, description, short_description, category, main_category_code, sub_category_id)
		 VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), $5, $6)
		 ON CONFLICT (code) DO UPDATE SET
		   description = EXCLUDED.description,
		   short_description = EXCLUDED.short_description,
		   category = EXCLUDED.category,
		   main_category_code = EXCLUDED.main_category_code,
		   sub_category_id = EXCLUDED.sub_category_id`,
		p.Code, p.Description, p.ShortDescription, p.Category, p.MainCategoryCode, p.SubCategoryID)
	if err != nil {
		return fmt.Errorf("upsert procedure %s: %w", p.Code, err)
	}
	return nil
}
