package codes

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

type recordingWriter struct {
	diagnoses  []*Diagnosis
	mains      []*MainCategory
	subs       []*SubCategory
	procedures []*Procedure
}

func (w *recordingWriter) UpsertDiagnosis(_ context.Context, d *Diagnosis) error {
	w.diagnoses = append(w.diagnoses, d)
	return nil
}

func (w *recordingWriter) UpsertMainCategory(_ context.Context, m *MainCategory) error {
	w.mains = append(w.mains, m)
	return nil
}

func (w *recordingWriter) UpsertSubCategory(_ context.Context, s *SubCategory) (int, error) {
	s.ID = len(w.subs) + 1
	w.subs = append(w.subs, s)
	return s.ID, nil
}

func (w *recordingWriter) UpsertProcedure(_ context.Context, p *Procedure) error {
	w.procedures = append(w.procedures, p)
	return nil
}

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		f.DeleteSheet("Sheet1")
	}
	for i, row := range rows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			t.Fatalf("set row %d: %v", i, err)
		}
	}
	path := filepath.Join(t.TempDir(), "codes.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestImporter_ImportDiagnoses(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]interface{}{
		{"ICDCode", "ICD_description"},
		{"K02.9", "Dental caries, unspecified"},
		{"I21.9", "Acute myocardial infarction, unspecified"},
		{"", "missing code"},
	})

	w := &recordingWriter{}
	stats, err := NewImporter(w, zerolog.Nop()).ImportDiagnoses(context.Background(), path, "")
	if err != nil {
		t.Fatalf("ImportDiagnoses() error: %v", err)
	}
	if stats.Diagnoses != 2 || stats.Skipped != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(w.diagnoses) != 2 || w.diagnoses[0].Code != "K02.9" {
		t.Errorf("unexpected diagnoses written: %+v", w.diagnoses)
	}
}

func TestImporter_ImportDiagnosisRows_MissingColumns(t *testing.T) {
	_, err := NewImporter(&recordingWriter{}, zerolog.Nop()).ImportDiagnosisRows(context.Background(),
		[][]string{{"Code", "Description"}, {"K02.9", "Dental caries"}})
	if err == nil {
		t.Error("expected error for missing ICDCode/ICD_description columns")
	}
}

func TestImporter_ImportDiagnosisRows_OptionalCategory(t *testing.T) {
	w := &recordingWriter{}
	_, err := NewImporter(w, zerolog.Nop()).ImportDiagnosisRows(context.Background(), [][]string{
		{"Category", "ICDCode", "ICD_description"},
		{"Diseases of oral cavity", "K02.9", "Dental caries"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.diagnoses[0].Category != "Diseases of oral cavity" {
		t.Errorf("expected category from sheet, got %q", w.diagnoses[0].Category)
	}
}

func TestImporter_ImportProcedures(t *testing.T) {
	path := writeWorkbook(t, DefaultProcedureSheet, [][]interface{}{
		{"ACHI 10th Edition"},
		{""},
		{"Procedure counts"},
		{""},
		{"Row Labels", "Count"},
		{"01 Procedures on nervous system", 3},
		{"0001-0028 Skull, meninges and brain", 2},
		{"40803-00 Intracranial stereotactic localisation", 1},
		{"39703-03 Insertion of intracranial shunt", 1},
		{"13 Dental services", 1},
		{"97011-00 Comprehensive oral examination", 1},
		{"Grand Total", 3},
	})

	w := &recordingWriter{}
	stats, err := NewImporter(w, zerolog.Nop()).ImportProcedures(context.Background(), path, "")
	if err != nil {
		t.Fatalf("ImportProcedures() error: %v", err)
	}
	if stats.MainCategories != 2 || stats.SubCategories != 1 || stats.Procedures != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	first := w.procedures[0]
	if first.Code != "40803-00" || first.Description != "Intracranial stereotactic localisation" {
		t.Errorf("unexpected first procedure: %+v", first)
	}
	if first.MainCategoryCode == nil || *first.MainCategoryCode != "01" {
		t.Errorf("expected main category 01, got %v", first.MainCategoryCode)
	}
	if first.SubCategoryID == nil || *first.SubCategoryID != 1 {
		t.Errorf("expected sub category 1, got %v", first.SubCategoryID)
	}
	if first.Category != "Skull, meninges and brain" {
		t.Errorf("expected block name as category, got %q", first.Category)
	}

	// A new main category resets the block link.
	last := w.procedures[2]
	if last.SubCategoryID != nil {
		t.Errorf("expected no sub category after new main category, got %v", *last.SubCategoryID)
	}
	if last.Category != "Dental services" {
		t.Errorf("expected main category name as category, got %q", last.Category)
	}
	if w.subs[0].RangeStart != 1 || w.subs[0].RangeEnd != 28 {
		t.Errorf("unexpected block range %d-%d", w.subs[0].RangeStart, w.subs[0].RangeEnd)
	}
}

func TestImporter_ImportProcedures_MissingSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]interface{}{{"nothing"}})
	_, err := NewImporter(&recordingWriter{}, zerolog.Nop()).ImportProcedures(context.Background(), path, "")
	if err == nil {
		t.Error("expected error when the summary sheet is absent")
	}
}
