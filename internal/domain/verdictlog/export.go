package verdictlog

import (
	"context"
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"
)

const (
	SheetAllResults     = "All Results"
	SheetSummary        = "Summary"
	SheetValid          = "Valid Decisions"
	SheetInvalid        = "Invalid Decisions"
	SheetHighConfidence = "High Confidence"
	SheetLowConfidence  = "Low Confidence"

	highConfidencePercent = 90
	lowConfidencePercent  = 70
)

var entryHeader = []any{
	"ID", "ICD Code", "ACHI Code", "Decision", "Confidence (%)", "Reasoning",
	"Source", "Logged At", "Reviewer Rating", "Reviewer Notes",
}

// Summary aggregates a set of entries.
type Summary struct {
	Total         int
	Valid         int
	Invalid       int
	AvgConfidence float64
	MinConfidence float64
	MaxConfidence float64
	Rated         int
	Unrated       int
}

// Summarize computes the summary sheet figures. Confidence figures are
// rounded to two decimals and zero for an empty log.
func Summarize(entries []*Entry) Summary {
	s := Summary{Total: len(entries)}
	if len(entries) == 0 {
		return s
	}
	s.MinConfidence = math.Inf(1)
	s.MaxConfidence = math.Inf(-1)
	var sum float64
	for _, e := range entries {
		if e.Decision == DecisionValid {
			s.Valid++
		} else {
			s.Invalid++
		}
		if e.Rated() {
			s.Rated++
		} else {
			s.Unrated++
		}
		sum += e.ConfidencePercent
		s.MinConfidence = math.Min(s.MinConfidence, e.ConfidencePercent)
		s.MaxConfidence = math.Max(s.MaxConfidence, e.ConfidencePercent)
	}
	s.AvgConfidence = round2(sum / float64(len(entries)))
	s.MinConfidence = round2(s.MinConfidence)
	s.MaxConfidence = round2(s.MaxConfidence)
	return s
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// LoadAll pages through the whole log.
func LoadAll(ctx context.Context, repo Repository) ([]*Entry, error) {
	var all []*Entry
	for offset := 0; ; offset += maxListLimit {
		page, err := repo.List(ctx, maxListLimit, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < maxListLimit {
			return all, nil
		}
	}
}

// Export writes entries to an .xlsx workbook at path. The decision and
// confidence sheets are only written when they have rows.
func Export(entries []*Entry, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetAllResults); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeEntries(f, SheetAllResults, entries); err != nil {
		return err
	}
	if err := writeSummary(f, Summarize(entries)); err != nil {
		return err
	}

	filtered := []struct {
		sheet string
		keep  func(*Entry) bool
	}{
		{SheetValid, func(e *Entry) bool { return e.Decision == DecisionValid }},
		{SheetInvalid, func(e *Entry) bool { return e.Decision == DecisionInvalid }},
		{SheetHighConfidence, func(e *Entry) bool { return e.ConfidencePercent > highConfidencePercent }},
		{SheetLowConfidence, func(e *Entry) bool { return e.ConfidencePercent < lowConfidencePercent }},
	}
	for _, fs := range filtered {
		var rows []*Entry
		for _, e := range entries {
			if fs.keep(e) {
				rows = append(rows, e)
			}
		}
		if len(rows) == 0 {
			continue
		}
		if _, err := f.NewSheet(fs.sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", fs.sheet, err)
		}
		if err := writeEntries(f, fs.sheet, rows); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeEntries(f *excelize.File, sheet string, entries []*Entry) error {
	if err := setRow(f, sheet, 1, entryHeader); err != nil {
		return err
	}
	for i, e := range entries {
		row := []any{
			e.ID, e.DiagnosisCode, e.ProcedureCode, e.Decision, e.ConfidencePercent, e.Reasoning,
			e.Source, e.LoggedAt.Format("2006-01-02 15:04:05"), deref(e.ReviewerRating), deref(e.ReviewerNotes),
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, s Summary) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetSummary, err)
	}
	rows := [][]any{
		{"Metric", "Value"},
		{"Total Tests", s.Total},
		{"Valid Decisions", s.Valid},
		{"Invalid Decisions", s.Invalid},
		{"Average Confidence (%)", s.AvgConfidence},
		{"Min Confidence (%)", s.MinConfidence},
		{"Max Confidence (%)", s.MaxConfidence},
		{"Tests with Reviewer Rating", s.Rated},
		{"Tests without Reviewer Rating", s.Unrated},
	}
	for i, r := range rows {
		if err := setRow(f, SheetSummary, i+1, r); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
