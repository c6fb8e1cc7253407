package hierarchy

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

func (r *repoPG) ChapterName(ctx context.Context, chapterKey string) (string, bool, error) {
	var name string
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT icd_chapter_name FROM category_mappings WHERE icd_chapter = $1 ORDER BY id LIMIT 1`,
		chapterKey).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("chapter name: %w", err)
	}
	return name, true, nil
}

func (r *repoPG) ProcedureHierarchy(ctx context.Context, procedureCode string) (ProcedureHierarchy, error) {
	var h ProcedureHierarchy
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT pm.code, pm.name, ps.name
		 FROM procedure_codes pc
		 LEFT JOIN procedure_main_categories pm ON pc.main_category_code = pm.code
		 LEFT JOIN procedure_sub_categories ps ON pc.sub_category_id = ps.id
		 WHERE pc.code = $1`, procedureCode).
		Scan(&h.MainCategoryCode, &h.MainCategoryName, &h.SubCategoryName)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProcedureHierarchy{}, nil
	}
	if err != nil {
		return ProcedureHierarchy{}, fmt.Errorf("procedure hierarchy: %w", err)
	}
	return h, nil
}

func (r *repoPG) Mapping(ctx context.Context, chapterKey, mainCategoryCode string) (*CategoryMapping, error) {
	var m CategoryMapping
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT icd_chapter, icd_chapter_name, achi_main_category_code, achi_main_category_name,
		        mapping_confidence, COALESCE(notes,'')
		 FROM category_mappings
		 WHERE icd_chapter = $1 AND achi_main_category_code = $2`, chapterKey, mainCategoryCode).
		Scan(&m.Chapter, &m.ChapterName, &m.MainCategoryCode, &m.MainCategoryName, &m.Confidence, &m.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("category mapping: %w", err)
	}
	return &m, nil
}

func (r *repoPG) ReplaceMappings(ctx context.Context, ms []CategoryMapping) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		conn := db.Conn(ctx, r.pool)
		if _, err := conn.Exec(ctx, `DELETE FROM category_mappings`); err != nil {
			return fmt.Errorf("clear category mappings: %w", err)
		}
		for _, m := range ms {
			if _, err := conn.Exec(ctx,
				`INSERT INTO category_mappings (icd_chapter, icd_chapter_name, achi_main_category_code,
				   achi_main_category_name, mapping_confidence, notes)
				 VALUES ($1, $2, $3, $4, $5, NULLIF($6,''))
				 ON CONFLICT (icd_chapter, achi_main_category_code) DO NOTHING`,
				m.Chapter, m.ChapterName, m.MainCategoryCode, m.MainCategoryName, m.Confidence, m.Notes); err != nil {
				return fmt.Errorf("insert category mapping %s/%s: %w", m.Chapter, m.MainCategoryCode, err)
			}
		}
		return nil
	})
}
