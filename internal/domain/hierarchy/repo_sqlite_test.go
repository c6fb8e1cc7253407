package hierarchy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icdachi/validator/internal/domain/codes"
	"github.com/icdachi/validator/internal/platform/db"
	"github.com/icdachi/validator/migrations"
)

func TestRepoSQLite_HierarchyAndMappings(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.OpenSQLite(ctx, ":memory:", migrations.SQLite())
	require.NoError(t, err)
	defer sqlDB.Close()

	w := codes.NewWriterSQLite(sqlDB)
	require.NoError(t, w.UpsertMainCategory(ctx, &codes.MainCategory{Code: "13", Name: "Dental services"}))
	subID, err := w.UpsertSubCategory(ctx, &codes.SubCategory{RangeStart: 450, RangeEnd: 490, Name: "Dental procedures", MainCategoryCode: "13"})
	require.NoError(t, err)
	main := "13"
	require.NoError(t, w.UpsertProcedure(ctx, &codes.Procedure{
		Record: codes.Record{Code: "52318-00", Description: "Tooth extraction"}, MainCategoryCode: &main, SubCategoryID: &subID,
	}))
	require.NoError(t, w.UpsertProcedure(ctx, &codes.Procedure{
		Record: codes.Record{Code: "97011-00", Description: "Oral examination"}, MainCategoryCode: &main,
	}))

	repo := NewRepoSQLite(sqlDB)

	h, err := repo.ProcedureHierarchy(ctx, "52318-00")
	require.NoError(t, err)
	require.NotNil(t, h.MainCategoryName)
	assert.Equal(t, "Dental services", *h.MainCategoryName)
	require.NotNil(t, h.SubCategoryName)
	assert.Equal(t, "Dental procedures", *h.SubCategoryName)

	partial, err := repo.ProcedureHierarchy(ctx, "97011-00")
	require.NoError(t, err)
	assert.True(t, partial.HasMainCategory())
	assert.Nil(t, partial.SubCategoryName, "missing block link yields nil")

	unknown, err := repo.ProcedureHierarchy(ctx, "00000-00")
	require.NoError(t, err)
	assert.False(t, unknown.HasMainCategory())

	require.NoError(t, repo.ReplaceMappings(ctx, []CategoryMapping{
		{Chapter: "K00-K93", ChapterName: "Diseases of the digestive system", MainCategoryCode: "13", MainCategoryName: "Dental services", Confidence: 0.95},
	}))

	name, ok, err := repo.ChapterName(ctx, "K00-K93")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Diseases of the digestive system", name)

	_, ok, err = repo.ChapterName(ctx, "J00-J99")
	require.NoError(t, err)
	assert.False(t, ok)

	m, err := repo.Mapping(ctx, "K00-K93", "13")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 0.95, m.Confidence)

	none, err := repo.Mapping(ctx, "K00-K93", "11")
	require.NoError(t, err)
	assert.Nil(t, none)

	e := NewEnricher(repo)
	hc, err := e.ContextFor(ctx, &codes.Diagnosis{Record: codes.Record{Code: "K02.9"}}, &codes.Procedure{Record: codes.Record{Code: "52318-00"}})
	require.NoError(t, err)
	assert.True(t, hc.MappingFound)
	assert.Equal(t, "Diseases of the digestive system", hc.Chapter.Name)
}
