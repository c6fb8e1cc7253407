package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/icdachi/validator/internal/config"
	"github.com/icdachi/validator/internal/domain/codes"
	"github.com/icdachi/validator/internal/domain/verdict"
	"github.com/icdachi/validator/internal/platform/db"
	"github.com/icdachi/validator/migrations"
)

// fakeOracle serves chat completions with a fixed verdict and counts calls.
func fakeOracle(t *testing.T, content string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testConfig(t *testing.T, oracleURL string) *config.Config {
	return &config.Config{
		Env:                     "development",
		StoreDriver:             config.StoreSQLite,
		SQLitePath:              filepath.Join(t.TempDir(), "validation.db"),
		CacheBackend:            config.CacheMemory,
		OpenAIAPIKey:            "sk-test",
		OracleBaseURL:           oracleURL + "/",
		OracleModel:             "test-model",
		OracleSeed:              42,
		OracleTimeout:           5 * time.Second,
		OracleMaxTokens:         800,
		HierarchyContextEnabled: true,
		VerdictLogEnabled:       true,
		RateLimitRPS:            100,
		RateLimitBurst:          100,
		RequestTimeout:          10 * time.Second,
		BodyLimit:               "1M",
		CORSOrigins:             []string{"*"},
	}
}

func seedCodes(t *testing.T, st *stores) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.writer.UpsertDiagnosis(ctx, &codes.Diagnosis{Record: codes.Record{
		Code: "K02.9", Description: "Dental caries, unspecified", Category: "Diseases of oral cavity",
	}}))
	require.NoError(t, st.writer.UpsertProcedure(ctx, &codes.Procedure{Record: codes.Record{
		Code: "97022-00", Description: "Comprehensive oral examination", Category: "Dental services",
	}}))
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "migrate", "import", "export", "validate"} {
		assert.Contains(t, names, want)
	}

	imp, _, err := root.Find([]string{"import", "relationships"})
	require.NoError(t, err)
	assert.Equal(t, "relationships", imp.Name())
}

func TestServer_ValidateEndToEnd(t *testing.T) {
	srv, calls := fakeOracle(t, "```json\n"+`{"is_valid":true,"reasoning":"Examination precedes treatment of caries.","confidence":0.82,"certainty_explanation":"Common pairing."}`+"\n```")
	cfg := testConfig(t, srv.URL)
	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	require.NoError(t, err)
	defer st.close()
	seedCodes(t, st)

	pipeline, svc, closePipeline, err := newPipeline(ctx, cfg, st, zerolog.Nop())
	require.NoError(t, err)
	e := newServer(cfg, zerolog.Nop(), st, pipeline, svc)

	post := func() map[string]any {
		body := strings.NewReader(`{"diagnosis_code":"K02.9","procedure_code":"97022-00"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", body)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out
	}

	first := post()
	assert.Equal(t, true, first["is_valid"])
	assert.Equal(t, string(verdict.SourceInference), first["source"])
	assert.Equal(t, false, first["cached"])

	second := post()
	assert.Equal(t, true, second["cached"])
	assert.Equal(t, first["reasoning"], second["reasoning"])
	assert.EqualValues(t, 1, calls.Load())

	closePipeline()
	entries, err := st.verdicts.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "K02.9", entries[0].DiagnosisCode)
	assert.Equal(t, 82.0, entries[0].ConfidencePercent)
}

func TestServer_HealthIsPublic(t *testing.T) {
	srv, _ := fakeOracle(t, `{}`)
	cfg := testConfig(t, srv.URL)
	cfg.Env = "production"
	cfg.AuthSigningKey = strings.Repeat("k", 32)
	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	require.NoError(t, err)
	defer st.close()
	pipeline, svc, closePipeline, err := newPipeline(ctx, cfg, st, zerolog.Nop())
	require.NoError(t, err)
	defer closePipeline()
	e := newServer(cfg, zerolog.Nop(), st, pipeline, svc)

	for _, path := range []string{"/health", "/health/db"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/validate/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidateCommand_UnknownCodeSkipsOracle(t *testing.T) {
	srv, calls := fakeOracle(t, `{}`)
	path := filepath.Join(t.TempDir(), "validation.db")
	t.Setenv("ENV", "test")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ORACLE_BASE_URL", srv.URL)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"validate", "Z99.99", "97022-00"})
	require.NoError(t, root.Execute())

	var res verdict.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, verdict.SourceNotFound, res.Source)
	assert.Contains(t, res.Reasoning, "Z99.99")
	assert.Zero(t, calls.Load())
}

func TestImportRelationshipsCommand_FeedsExactMatch(t *testing.T) {
	srv, calls := fakeOracle(t, `{}`)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "validation.db")
	t.Setenv("ENV", "test")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", dbPath)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ORACLE_BASE_URL", srv.URL)

	st, err := openStores(context.Background(), &config.Config{StoreDriver: config.StoreSQLite, SQLitePath: dbPath})
	require.NoError(t, err)
	seedCodes(t, st)
	st.close()

	wb := excelize.NewFile()
	rows := [][]any{
		{"ICD_Code", "ICD_Description", "ACHI_Code", "ACHI_Description", "Relationship", "Confidence_Percent", "Relation_Category"},
		{"K02.9", "Dental caries", "97022-00", "Oral examination", "Examination precedes caries treatment", 88, "Dental"},
		{"K02.9", "Dental caries", "30571-00", "Appendicectomy", "Unrelated", 20, "Dental"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, wb.SetSheetRow("Sheet1", cell, &row))
	}
	xlsx := filepath.Join(dir, "Valid_Relationships.xlsx")
	require.NoError(t, wb.SaveAs(xlsx))
	wb.Close()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"import", "relationships", xlsx, "--min-confidence", "0.7"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"inserted": 1`)
	assert.Contains(t, out.String(), `"below_min_confidence": 1`)

	root = newRootCmd()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"validate", "K02.9", "97022-00"})
	require.NoError(t, root.Execute())

	var res verdict.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, verdict.SourceExactMatch, res.Source)
	assert.True(t, res.IsValid)
	assert.Equal(t, "Examination precedes caries treatment", res.Reasoning)
	assert.Zero(t, calls.Load())
}

func TestOpenStores_SQLiteAppliesSchema(t *testing.T) {
	cfg := &config.Config{StoreDriver: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "v.db")}
	st, err := openStores(context.Background(), cfg)
	require.NoError(t, err)
	defer st.close()

	require.NoError(t, st.pinger.Ping(context.Background()))
	_, err = st.diagnoses.GetByCode(context.Background(), "A00.0")
	assert.ErrorIs(t, err, codes.ErrNotFound)

	_, err = openStores(context.Background(), &config.Config{StoreDriver: "mysql"})
	assert.Error(t, err)

	// the embedded schema set must be non-empty for both drivers
	pg, err := db.LoadMigrations(migrations.Postgres())
	require.NoError(t, err)
	assert.NotEmpty(t, pg)
}
