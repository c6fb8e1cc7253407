package verdictlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/icdachi/validator/internal/domain/verdict"
)

func strPtr(s string) *string { return &s }

func sampleEntries() []*Entry {
	logged := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []*Entry{
		{ID: 1, DiagnosisCode: "K02.9", ProcedureCode: "92209-00", Decision: DecisionInvalid, ConfidencePercent: 98, Reasoning: "a", Source: "inference", LoggedAt: logged, ReviewerRating: strPtr("Correct")},
		{ID: 2, DiagnosisCode: "J45.0", ProcedureCode: "92209-00", Decision: DecisionValid, ConfidencePercent: 95, Reasoning: "b", Source: "examples", LoggedAt: logged},
		{ID: 3, DiagnosisCode: "R10.4", ProcedureCode: "30473-00", Decision: DecisionValid, ConfidencePercent: 62, Reasoning: "c", Source: "hierarchical", LoggedAt: logged},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleEntries())
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Valid)
	assert.Equal(t, 1, s.Invalid)
	assert.Equal(t, 85.0, s.AvgConfidence)
	assert.Equal(t, 62.0, s.MinConfidence)
	assert.Equal(t, 98.0, s.MaxConfidence)
	assert.Equal(t, 1, s.Rated)
	assert.Equal(t, 2, s.Unrated)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestExport_WritesSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdicts.xlsx")
	require.NoError(t, Export(sampleEntries(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetAllResults, SheetSummary, SheetValid, SheetInvalid, SheetHighConfidence, SheetLowConfidence}, f.GetSheetList())

	rows, err := f.GetRows(SheetAllResults)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ICD Code", rows[0][1])
	assert.Equal(t, "K02.9", rows[1][1])
	assert.Equal(t, "Correct", rows[1][8])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Total Tests", "3"}, summary[1])

	low, err := f.GetRows(SheetLowConfidence)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "R10.4", low[1][1])
}

func TestExport_SkipsEmptyFilterSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdicts.xlsx")
	entries := sampleEntries()[1:2]
	require.NoError(t, Export(entries, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetAllResults, SheetSummary, SheetValid, SheetHighConfidence}, f.GetSheetList())
}

func TestFromResult(t *testing.T) {
	e := FromResult("K02.9", "92209-00", &verdict.Result{IsValid: false, Confidence: 0.975, Reasoning: "r", Source: verdict.SourceInference})
	assert.Equal(t, DecisionInvalid, e.Decision)
	assert.Equal(t, 97.5, e.ConfidencePercent)
	assert.Equal(t, "inference", e.Source)

	e = FromResult("J45.0", "92209-00", &verdict.Result{IsValid: true, Confidence: 1, Source: verdict.SourceExactMatch})
	assert.Equal(t, DecisionValid, e.Decision)
	assert.Equal(t, 100.0, e.ConfidencePercent)
}
