package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/icdachi/validator/internal/config"
	"github.com/icdachi/validator/internal/domain/codes"
	"github.com/icdachi/validator/internal/domain/evidence"
	"github.com/icdachi/validator/internal/domain/hierarchy"
	"github.com/icdachi/validator/internal/domain/oracle"
	"github.com/icdachi/validator/internal/domain/relationship"
	"github.com/icdachi/validator/internal/domain/validation"
	"github.com/icdachi/validator/internal/domain/verdictlog"
	"github.com/icdachi/validator/internal/platform/db"
	"github.com/icdachi/validator/internal/platform/llm"
	"github.com/icdachi/validator/migrations"
)

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// stores bundles the repositories of one backing database.
type stores struct {
	diagnoses  codes.DiagnosisRepository
	procedures codes.ProcedureRepository
	writer     codes.Writer
	rels       relationship.Repository
	hierarchy  hierarchy.Repository
	verdicts   verdictlog.Repository
	pinger     db.Pinger
	close      func()
}

// openStores connects to the configured store. SQLite databases get their
// schema applied on open; Postgres relies on `migrate up`.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath, migrations.SQLite())
		if err != nil {
			return nil, err
		}
		return sqliteStores(sqlDB), nil
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &stores{
			diagnoses:  codes.NewDiagnosisRepoPG(pool),
			procedures: codes.NewProcedureRepoPG(pool),
			writer:     codes.NewWriterPG(pool),
			rels:       relationship.NewRepoPG(pool),
			hierarchy:  hierarchy.NewRepoPG(pool),
			verdicts:   verdictlog.NewRepoPG(pool),
			pinger:     pool,
			close:      pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

func sqliteStores(sqlDB *sql.DB) *stores {
	return &stores{
		diagnoses:  codes.NewDiagnosisRepoSQLite(sqlDB),
		procedures: codes.NewProcedureRepoSQLite(sqlDB),
		writer:     codes.NewWriterSQLite(sqlDB),
		rels:       relationship.NewRepoSQLite(sqlDB),
		hierarchy:  hierarchy.NewRepoSQLite(sqlDB),
		verdicts:   verdictlog.NewRepoSQLite(sqlDB),
		pinger:     db.SQLPinger{DB: sqlDB},
		close:      func() { _ = sqlDB.Close() },
	}
}

func newCache(ctx context.Context, cfg *config.Config) (validation.Cache, func(), error) {
	if cfg.CacheBackend == config.CacheRedis {
		rc, err := validation.NewRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { _ = rc.Close() }, nil
	}
	return validation.NewMemoryCache(cfg.CacheTTL), func() {}, nil
}

// newPipeline wires the validation pipeline over st. The returned func
// waits for background log writes and releases the cache.
func newPipeline(ctx context.Context, cfg *config.Config, st *stores, logger zerolog.Logger) (*validation.Pipeline, *codes.Service, func(), error) {
	cache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	seed := cfg.OracleSeed
	client := llm.NewClient(llm.Config{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   strings.TrimRight(cfg.OracleBaseURL, "/"),
		Model:     cfg.OracleModel,
		Seed:      &seed,
		MaxTokens: cfg.OracleMaxTokens,
		Timeout:   cfg.OracleTimeout,
	}, logger)
	adapter, err := oracle.NewAdapter(client, logger)
	if err != nil {
		closeCache()
		return nil, nil, nil, err
	}

	var enricher evidence.ContextSource
	if cfg.HierarchyContextEnabled {
		enricher = hierarchy.NewEnricher(st.hierarchy)
	}

	opts := validation.Options{Cache: cache, Logger: logger}
	if cfg.VerdictLogEnabled {
		opts.VerdictLog = st.verdicts
	}
	if cfg.DegradedModeEnabled {
		opts.Degraded = hierarchy.NewEnricher(st.hierarchy)
	}

	svc := codes.NewService(st.diagnoses, st.procedures)
	p := validation.NewPipeline(svc, evidence.NewAssembler(st.rels, enricher), adapter, st.rels, opts)
	return p, svc, func() {
		p.Close()
		closeCache()
	}, nil
}
