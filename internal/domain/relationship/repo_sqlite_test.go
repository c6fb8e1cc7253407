package relationship

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icdachi/validator/internal/platform/db"
	"github.com/icdachi/validator/migrations"
)

var sqliteColumns = []string{"id", "diagnosis_code", "diagnosis_description", "diagnosis_category",
	"procedure_code", "procedure_description", "procedure_category",
	"relationship_text", "confidence", "combined_category_key", "source", "created_at"}

func TestRepoSQLite_GetByPair(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepoSQLite(sqlDB)

	rows := sqlmock.NewRows(sqliteColumns).
		AddRow(7, "K02.9", "Dental caries", "Dental", "52318-00", "Tooth extraction", "Dental",
			"Extraction treats advanced caries", 0.9, "Dental|Dental", "manual_curated", "2026-01-02 03:04:05")
	mock.ExpectQuery(regexp.QuoteMeta("FROM relationships")).
		WithArgs("K02.9", "52318-00").
		WillReturnRows(rows)

	rel, err := repo.GetByPair(context.Background(), "K02.9", "52318-00")
	require.NoError(t, err)
	assert.Equal(t, int64(7), rel.ID)
	assert.Equal(t, SourceManualCurated, rel.Source)
	assert.Equal(t, 0.9, rel.Confidence)
	assert.Equal(t, 2026, rel.CreatedAt.Year())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoSQLite_GetByPair_NotFound(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM relationships")).
		WithArgs("K02.9", "92209-00").
		WillReturnRows(sqlmock.NewRows(sqliteColumns))

	_, err = NewRepoSQLite(sqlDB).GetByPair(context.Background(), "K02.9", "92209-00")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRepoSQLite_GetByPair_StoreError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM relationships")).
		WillReturnError(sql.ErrConnDone)

	_, err = NewRepoSQLite(sqlDB).GetByPair(context.Background(), "K02.9", "52318-00")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, sql.ErrConnDone))
}

func TestRepoSQLite_Insert_DuplicateIgnored(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO relationships")).
		WithArgs("K02.9", "Dental caries", "Dental", "52318-00", "Tooth extraction", "Dental",
			"confirmed", 0.95, "Dental|Dental", "user_confirmed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := NewRepoSQLite(sqlDB).Insert(context.Background(), &Relationship{
		DiagnosisCode: "K02.9", DiagnosisDescription: "Dental caries", DiagnosisCategory: "Dental",
		ProcedureCode: "52318-00", ProcedureDescription: "Tooth extraction", ProcedureCategory: "Dental",
		RelationshipText: "confirmed", Confidence: 0.95, Source: SourceUserConfirmed,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoSQLite_Insert_RejectsBadConfidence(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = NewRepoSQLite(sqlDB).Insert(context.Background(), &Relationship{
		DiagnosisCode: "K02.9", ProcedureCode: "52318-00", RelationshipText: "x", Confidence: 1.5,
	})
	assert.Error(t, err)
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := db.OpenSQLite(context.Background(), ":memory:", migrations.SQLite())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func dental(dx, px string, confidence float64) *Relationship {
	return &Relationship{
		DiagnosisCode: dx, DiagnosisDescription: dx, DiagnosisCategory: "Dental",
		ProcedureCode: px, ProcedureDescription: px, ProcedureCategory: "Dental",
		RelationshipText: dx + " treated by " + px, Confidence: confidence,
	}
}

func TestRepoSQLite_SimilarExamples_OrderAndLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewRepoSQLite(openTestDB(t))

	for _, rel := range []*Relationship{
		dental("K02.1", "97011-00", 0.7),
		dental("K02.2", "97011-00", 0.9),
		dental("K02.3", "97011-00", 0.9),
		dental("K02.4", "97011-00", 0.5),
		dental("K02.5", "97011-00", 0.8),
		dental("K02.6", "97011-00", 0.9),
		dental("K02.7", "97011-00", 0.6),
	} {
		inserted, err := repo.Insert(ctx, rel)
		require.NoError(t, err)
		require.True(t, inserted)
	}
	other := dental("J18.9", "92209-00", 1.0)
	other.DiagnosisCategory = "Respiratory"
	_, err := repo.Insert(ctx, other)
	require.NoError(t, err)

	got, err := repo.SimilarExamples(ctx, "Dental", "Dental", 10)
	require.NoError(t, err)
	require.Len(t, got, MaxExamples)

	var codes []string
	for _, r := range got {
		codes = append(codes, r.DiagnosisCode)
	}
	assert.Equal(t, []string{"K02.2", "K02.3", "K02.6", "K02.5", "K02.1"}, codes)
}

func TestRepoSQLite_InsertThenGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepoSQLite(openTestDB(t))

	rel := dental("K02.9", "52318-00", 0.9)
	inserted, err := repo.Insert(ctx, rel)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, rel.ID)
	assert.Equal(t, "Dental|Dental", rel.CombinedCategoryKey)
	assert.Equal(t, SourceAIGenerated, rel.Source)

	again, err := repo.Insert(ctx, dental("K02.9", "52318-00", 0.2))
	require.NoError(t, err)
	assert.False(t, again, "duplicate pair must be ignored")

	got, err := repo.GetByPair(ctx, "K02.9", "52318-00")
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.Confidence, "first write wins")
}
