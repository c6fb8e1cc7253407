package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/icdachi/validator/internal/config"
	"github.com/icdachi/validator/internal/domain/codes"
	"github.com/icdachi/validator/internal/domain/hierarchy"
	"github.com/icdachi/validator/internal/domain/relationship"
	"github.com/icdachi/validator/internal/domain/verdictlog"
	"github.com/icdachi/validator/internal/platform/db"
	"github.com/icdachi/validator/migrations"
)

// loadStoreConfig loads config for commands that only need the store.
func loadStoreConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func postgresMigrator(ctx context.Context, cfg *config.Config) (*db.Migrator, func(), error) {
	if cfg.StoreDriver != config.StorePostgres {
		return nil, nil, fmt.Errorf("migrations apply to STORE_DRIVER=%s only; sqlite schemas are applied on open", config.StorePostgres)
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrations.Postgres()), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			cfg, err := loadStoreConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			migrator, closePool, err := postgresMigrator(ctx, cfg)
			if err != nil {
				return err
			}
			defer closePool()

			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			cfg, err := loadStoreConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			migrator, closePool, err := postgresMigrator(ctx, cfg)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Migration status for schema: %s\n", schema)
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load code sets and category mappings into the store",
	}

	run := func(fn func(ctx context.Context, cfg *config.Config, st *stores, path string) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadStoreConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			stats, err := fn(ctx, cfg, st, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
	}

	var icdSheet string
	icdCmd := &cobra.Command{
		Use:   "icd <workbook.xlsx>",
		Short: "Import ICD-10-AM diagnosis codes",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, cfg *config.Config, st *stores, path string) (any, error) {
			return codes.NewImporter(st.writer, newLogger(cfg.Env)).ImportDiagnoses(ctx, path, icdSheet)
		}),
	}
	icdCmd.Flags().StringVar(&icdSheet, "sheet", "", "Sheet name (defaults to the active sheet)")
	cmd.AddCommand(icdCmd)

	var achiSheet string
	achiCmd := &cobra.Command{
		Use:   "achi <workbook.xlsx>",
		Short: "Import the ACHI procedure hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, cfg *config.Config, st *stores, path string) (any, error) {
			return codes.NewImporter(st.writer, newLogger(cfg.Env)).ImportProcedures(ctx, path, achiSheet)
		}),
	}
	achiCmd.Flags().StringVar(&achiSheet, "sheet", codes.DefaultProcedureSheet, "Sheet name")
	cmd.AddCommand(achiCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "mappings <mappings.json>",
		Short: "Replace the chapter to main category mapping table",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, _ *config.Config, st *stores, path string) (any, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			n, err := hierarchy.ImportMappings(ctx, st.hierarchy, f)
			if err != nil {
				return nil, err
			}
			return map[string]int{"mappings": n}, nil
		}),
	})

	var (
		relSheet      string
		minConfidence float64
	)
	relCmd := &cobra.Command{
		Use:   "relationships <workbook.xlsx>",
		Short: "Bulk-load curated diagnosis to procedure relationships",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, cfg *config.Config, st *stores, path string) (any, error) {
			imp := relationship.NewImporter(st.rels, st.diagnoses, st.procedures, newLogger(cfg.Env))
			imp.MinConfidence = minConfidence
			return imp.ImportWorkbook(ctx, path, relSheet)
		}),
	}
	relCmd.Flags().StringVar(&relSheet, "sheet", "", "Sheet name (defaults to the active sheet)")
	relCmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Skip rows below this confidence (0-1)")
	cmd.AddCommand(relCmd)

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored data",
	}

	var out string
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Write the verdict log to an .xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadStoreConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			entries, err := verdictlog.LoadAll(ctx, st.verdicts)
			if err != nil {
				return fmt.Errorf("load verdict log: %w", err)
			}
			if out == "" {
				out = fmt.Sprintf("validation_results_%s.xlsx", time.Now().Format("20060102_150405"))
			}
			if err := verdictlog.Export(entries, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(entries), out)
			return nil
		},
	}
	logCmd.Flags().StringVarP(&out, "output", "o", "", "Output path (defaults to a timestamped file)")
	cmd.AddCommand(logCmd)

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <diagnosis-code> <procedure-code>",
		Short: "Validate one pair and print the result as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadStoreConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateOracle(); err != nil {
				return err
			}
			logger := newLogger(cfg.Env)
			ctx := cmd.Context()

			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			pipeline, _, closePipeline, err := newPipeline(ctx, cfg, st, logger)
			if err != nil {
				return err
			}
			defer closePipeline()

			res, err := pipeline.Validate(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
