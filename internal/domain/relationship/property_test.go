package relationship

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/icdachi/validator/internal/platform/db"
	"github.com/icdachi/validator/migrations"
)

// Confidence levels are drawn from a small set so that ties are common.
func TestSimilarExamples_BoundedSortedStable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("at most five, confidence descending, ties by insertion order", prop.ForAll(
		func(levels []int) bool {
			ctx := context.Background()
			sqlDB, err := db.OpenSQLite(ctx, ":memory:", migrations.SQLite())
			if err != nil {
				return false
			}
			defer sqlDB.Close()
			repo := NewRepoSQLite(sqlDB)

			for i, lvl := range levels {
				if _, err := repo.Insert(ctx, dental(fmt.Sprintf("K%02d.0", i), "97011-00", float64(lvl)/4)); err != nil {
					return false
				}
			}

			got, err := repo.SimilarExamples(ctx, "Dental", "Dental", 0)
			if err != nil || len(got) > MaxExamples {
				return false
			}
			want := len(levels)
			if want > MaxExamples {
				want = MaxExamples
			}
			if len(got) != want {
				return false
			}
			for i := 1; i < len(got); i++ {
				prev, cur := got[i-1], got[i]
				if prev.Confidence < cur.Confidence {
					return false
				}
				if prev.Confidence == cur.Confidence && prev.ID > cur.ID {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}
