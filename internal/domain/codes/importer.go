package codes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// DefaultProcedureSheet is the ACHI workbook sheet holding the hierarchy summary.
const DefaultProcedureSheet = "Procedure Counts Summary"

var (
	mainCategoryRow = regexp.MustCompile(`^(\d{2})\s+([A-Z].*)$`)
	subCategoryRow  = regexp.MustCompile(`^(\d{4})-(\d{4})\s+(.+)$`)
	procedureRow    = regexp.MustCompile(`^(\d{5}-\d{2})\s+(.+)$`)
)

// ImportStats summarizes one spreadsheet import.
type ImportStats struct {
	Diagnoses      int `json:"diagnoses"`
	MainCategories int `json:"main_categories"`
	SubCategories  int `json:"sub_categories"`
	Procedures     int `json:"procedures"`
	Skipped        int `json:"skipped"`
}

// Importer loads code sets from spreadsheets into a Writer.
type Importer struct {
	w   Writer
	log zerolog.Logger
}

// NewImporter creates an importer writing through w.
func NewImporter(w Writer, log zerolog.Logger) *Importer {
	return &Importer{w: w, log: log}
}

func readSheet(path, sheet string) ([][]string, error) {
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
	return rows, nil
}

// ImportDiagnoses reads the ICD-10-AM workbook at path. The sheet must carry
// a header row with ICDCode and ICD_description columns; a Category column is
// optional. An empty sheet name selects the active sheet.
func (i *Importer) ImportDiagnoses(ctx context.Context, path, sheet string) (*ImportStats, error) {
	rows, err := readSheet(path, sheet)
	if err != nil {
		return nil, err
	}
	return i.ImportDiagnosisRows(ctx, rows)
}

// ImportDiagnosisRows imports already-read rows; the first row is the header.
func (i *Importer) ImportDiagnosisRows(ctx context.Context, rows [][]string) (*ImportStats, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("diagnosis sheet is empty")
	}
	codeCol, descCol, catCol := -1, -1, -1
	for idx, h := range rows[0] {
		switch strings.TrimSpace(h) {
		case "ICDCode":
			codeCol = idx
		case "ICD_description":
			descCol = idx
		case "Category":
			catCol = idx
		}
	}
	if codeCol < 0 || descCol < 0 {
		return nil, fmt.Errorf("diagnosis sheet needs ICDCode and ICD_description columns")
	}

	stats := &ImportStats{}
	for _, row := range rows[1:] {
		code := cell(row, codeCol)
		desc := cell(row, descCol)
		if code == "" || desc == "" {
			stats.Skipped++
			continue
		}
		d := &Diagnosis{Record{Code: code, Description: desc, Category: cell(row, catCol)}}
		if err := i.w.UpsertDiagnosis(ctx, d); err != nil {
			return stats, err
		}
		stats.Diagnoses++
	}
	i.log.Info().Int("diagnoses", stats.Diagnoses).Int("skipped", stats.Skipped).Msg("diagnosis import complete")
	return stats, nil
}

// ImportProcedures reads the ACHI hierarchy summary sheet at path. An empty
// sheet name selects DefaultProcedureSheet.
func (i *Importer) ImportProcedures(ctx context.Context, path, sheet string) (*ImportStats, error) {
	if sheet == "" {
		sheet = DefaultProcedureSheet
	}
	rows, err := readSheet(path, sheet)
	if err != nil {
		return nil, err
	}
	return i.ImportProcedureRows(ctx, rows)
}

// ImportProcedureRows walks the first column of rows. Main category rows
// ("08 Procedures on digestive system") and block range rows
// ("0001-0028 Skull, meninges and brain") set the links assigned to the
// procedure rows ("40803-00 Intracranial stereotactic localisation") below
// them. Other rows are skipped.
func (i *Importer) ImportProcedureRows(ctx context.Context, rows [][]string) (*ImportStats, error) {
	stats := &ImportStats{}
	var (
		main *MainCategory
		sub  *SubCategory
	)
	for _, row := range rows {
		label := cell(row, 0)
		if label == "" {
			continue
		}

		switch {
		case mainCategoryRow.MatchString(label):
			m := mainCategoryRow.FindStringSubmatch(label)
			main = &MainCategory{Code: m[1], Name: strings.TrimSpace(m[2]), FullLabel: label}
			sub = nil
			if err := i.w.UpsertMainCategory(ctx, main); err != nil {
				return stats, err
			}
			stats.MainCategories++

		case subCategoryRow.MatchString(label):
			if main == nil {
				stats.Skipped++
				continue
			}
			m := subCategoryRow.FindStringSubmatch(label)
			start, _ := strconv.Atoi(m[1])
			end, _ := strconv.Atoi(m[2])
			sub = &SubCategory{RangeStart: start, RangeEnd: end, Name: strings.TrimSpace(m[3]), MainCategoryCode: main.Code}
			if _, err := i.w.UpsertSubCategory(ctx, sub); err != nil {
				return stats, err
			}
			stats.SubCategories++

		case procedureRow.MatchString(label):
			m := procedureRow.FindStringSubmatch(label)
			p := &Procedure{Record: Record{Code: m[1], Description: strings.TrimSpace(m[2])}}
			if main != nil {
				code := main.Code
				p.MainCategoryCode = &code
				p.Category = main.Name
			}
			if sub != nil {
				id := sub.ID
				p.SubCategoryID = &id
				p.Category = sub.Name
			}
			if err := i.w.UpsertProcedure(ctx, p); err != nil {
				return stats, err
			}
			stats.Procedures++
			if stats.Procedures%500 == 0 {
				i.log.Debug().Int("procedures", stats.Procedures).Msg("procedure import progress")
			}

		default:
			stats.Skipped++
		}
	}
	i.log.Info().
		Int("main_categories", stats.MainCategories).
		Int("sub_categories", stats.SubCategories).
		Int("procedures", stats.Procedures).
		Msg("procedure import complete")
	return stats, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
