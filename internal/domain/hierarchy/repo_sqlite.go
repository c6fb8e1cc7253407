package hierarchy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type repoSQLite struct{ db *sql.DB }

func NewRepoSQLite(db *sql.DB) Repository { return &repoSQLite{db: db} }

func (r *repoSQLite) ChapterName(ctx context.Context, chapterKey string) (string, bool, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT icd_chapter_name FROM category_mappings WHERE icd_chapter = ? ORDER BY id LIMIT 1`,
		chapterKey).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("chapter name: %w", err)
	}
	return name, true, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r *repoSQLite) ProcedureHierarchy(ctx context.Context, procedureCode string) (ProcedureHierarchy, error) {
	var mainCode, mainName, subName sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT pm.code, pm.name, ps.name
		 FROM procedure_codes pc
		 LEFT JOIN procedure_main_categories pm ON pc.main_category_code = pm.code
		 LEFT JOIN procedure_sub_categories ps ON pc.sub_category_id = ps.id
		 WHERE pc.code = ?`, procedureCode).
		Scan(&mainCode, &mainName, &subName)
	if errors.Is(err, sql.ErrNoRows) {
		return ProcedureHierarchy{}, nil
	}
	if err != nil {
		return ProcedureHierarchy{}, fmt.Errorf("procedure hierarchy: %w", err)
	}
	return ProcedureHierarchy{
		MainCategoryCode: nullable(mainCode),
		MainCategoryName: nullable(mainName),
		SubCategoryName:  nullable(subName),
	}, nil
}

func (r *repoSQLite) Mapping(ctx context.Context, chapterKey, mainCategoryCode string) (*CategoryMapping, error) {
	var m CategoryMapping
	err := r.db.QueryRowContext(ctx,
		`SELECT icd_chapter, icd_chapter_name, achi_main_category_code, achi_main_category_name,
		        mapping_confidence, COALESCE(notes,'')
		 FROM category_mappings
		 WHERE icd_chapter = ? AND achi_main_category_code = ?`, chapterKey, mainCategoryCode).
		Scan(&m.Chapter, &m.ChapterName, &m.MainCategoryCode, &m.MainCategoryName, &m.Confidence, &m.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("category mapping: %w", err)
	}
	return &m, nil
}

func (r *repoSQLite) ReplaceMappings(ctx context.Context, ms []CategoryMapping) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM category_mappings`); err != nil {
		return fmt.Errorf("clear category mappings: %w", err)
	}
	for _, m := range ms {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO category_mappings (icd_chapter, icd_chapter_name, achi_main_category_code,
			   achi_main_category_name, mapping_confidence, notes)
			 VALUES (?, ?, ?, ?, ?, NULLIF(?,''))`,
			m.Chapter, m.ChapterName, m.MainCategoryCode, m.MainCategoryName, m.Confidence, m.Notes); err != nil {
			return fmt.Errorf("insert category mapping %s/%s: %w", m.Chapter, m.MainCategoryCode, err)
		}
	}
	return tx.Commit()
}
