package relationship

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/icdachi/validator/internal/domain/codes"
)

// Column headers of a relationship workbook.
const (
	colDiagnosisCode        = "ICD_Code"
	colDiagnosisDescription = "ICD_Description"
	colProcedureCode        = "ACHI_Code"
	colProcedureDescription = "ACHI_Description"
	colRelationship         = "Relationship"
	colConfidencePercent    = "Confidence_Percent"
	colRelationCategory     = "Relation_Category"
)

// ImportStats summarizes one relationship import.
type ImportStats struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	BelowMin   int `json:"below_min_confidence"`
	Skipped    int `json:"skipped"`
}

// Importer bulk-loads curated relationships from a spreadsheet. Categories
// are taken from the code registry when the code is known so imported rows
// line up with the categories used for example lookup; otherwise the row's
// Relation_Category is used for both sides.
type Importer struct {
	repo       Repository
	diagnoses  codes.DiagnosisRepository
	procedures codes.ProcedureRepository
	log        zerolog.Logger

	// MinConfidence drops rows whose confidence (0-1) is below it.
	MinConfidence float64
}

func NewImporter(repo Repository, diagnoses codes.DiagnosisRepository, procedures codes.ProcedureRepository, log zerolog.Logger) *Importer {
	return &Importer{repo: repo, diagnoses: diagnoses, procedures: procedures, log: log}
}

// ImportWorkbook reads the sheet at path. An empty sheet name selects the
// active sheet.
func (i *Importer) ImportWorkbook(ctx context.Context, path, sheet string) (*ImportStats, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return i.ImportRows(ctx, rows)
}

// ImportRows imports already-read rows; the first row is the header. Pairs
// already stored are counted as duplicates and left untouched.
func (i *Importer) ImportRows(ctx context.Context, rows [][]string) (*ImportStats, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("relationship sheet is empty")
	}
	cols := make(map[string]int)
	for idx, h := range rows[0] {
		cols[strings.TrimSpace(h)] = idx
	}
	for _, required := range []string{colDiagnosisCode, colProcedureCode, colRelationship, colConfidencePercent} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("relationship sheet needs a %s column", required)
		}
	}
	get := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	stats := &ImportStats{}
	for n, row := range rows[1:] {
		percent, err := strconv.ParseFloat(get(row, colConfidencePercent), 64)
		if err != nil {
			stats.Skipped++
			continue
		}
		category := get(row, colRelationCategory)
		r := &Relationship{
			DiagnosisCode:        get(row, colDiagnosisCode),
			DiagnosisDescription: get(row, colDiagnosisDescription),
			ProcedureCode:        get(row, colProcedureCode),
			ProcedureDescription: get(row, colProcedureDescription),
			RelationshipText:     get(row, colRelationship),
			Confidence:           percent / 100,
			Source:               SourceManualCurated,
		}
		if r.Confidence < i.MinConfidence {
			stats.BelowMin++
			continue
		}
		if r.DiagnosisCategory, err = i.diagnosisCategory(ctx, r.DiagnosisCode, category); err != nil {
			return stats, err
		}
		if r.ProcedureCategory, err = i.procedureCategory(ctx, r.ProcedureCode, category); err != nil {
			return stats, err
		}
		r.Normalize()
		if err := r.Validate(); err != nil {
			i.log.Debug().Err(err).Int("row", n+2).Msg("skipping relationship row")
			stats.Skipped++
			continue
		}

		inserted, err := i.repo.Insert(ctx, r)
		if err != nil {
			return stats, err
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Duplicates++
		}
	}
	i.log.Info().
		Int("inserted", stats.Inserted).
		Int("duplicates", stats.Duplicates).
		Int("skipped", stats.Skipped).
		Msg("relationship import complete")
	return stats, nil
}

func (i *Importer) diagnosisCategory(ctx context.Context, code, fallback string) (string, error) {
	if i.diagnoses == nil || code == "" {
		return fallback, nil
	}
	d, err := i.diagnoses.GetByCode(ctx, code)
	switch {
	case errors.Is(err, codes.ErrNotFound):
		return fallback, nil
	case err != nil:
		return "", err
	}
	return d.Category, nil
}

func (i *Importer) procedureCategory(ctx context.Context, code, fallback string) (string, error) {
	if i.procedures == nil || code == "" {
		return fallback, nil
	}
	p, err := i.procedures.GetByCode(ctx, code)
	switch {
	case errors.Is(err, codes.ErrNotFound):
		return fallback, nil
	case err != nil:
		return "", err
	}
	return p.Category, nil
}
