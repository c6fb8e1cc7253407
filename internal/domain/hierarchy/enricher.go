package hierarchy

import (
	"context"
	"errors"

	"github.com/icdachi/validator/internal/domain/codes"
)

// ErrNoChapter is returned for a blank diagnosis code.
var ErrNoChapter = errors.New("diagnosis code has no chapter")

// Enricher resolves chapter and category context for a code pair.
type Enricher struct {
	repo Repository
}

func NewEnricher(repo Repository) *Enricher {
	return &Enricher{repo: repo}
}

// ChapterOf maps a diagnosis code to its chapter. The name comes from the
// mapping table when present, else "Diseases starting with {L}".
func (e *Enricher) ChapterOf(ctx context.Context, diagnosisCode string) (Chapter, error) {
	key, letter, ok := ChapterKey(diagnosisCode)
	if !ok {
		return Chapter{}, ErrNoChapter
	}
	name, found, err := e.repo.ChapterName(ctx, key)
	if err != nil {
		return Chapter{}, err
	}
	if !found {
		name = DefaultChapterName(letter)
	}
	return Chapter{Key: key, Name: name, Letter: letter}, nil
}

// HierarchyOf resolves the main and sub category of a procedure code.
func (e *Enricher) HierarchyOf(ctx context.Context, procedureCode string) (ProcedureHierarchy, error) {
	return e.repo.ProcedureHierarchy(ctx, procedureCode)
}

// MappingOf looks up the advisory mapping between a chapter and a main category.
func (e *Enricher) MappingOf(ctx context.Context, chapterKey, mainCategoryCode string) (*CategoryMapping, error) {
	return e.repo.Mapping(ctx, chapterKey, mainCategoryCode)
}

// ContextFor gathers the hierarchy evidence for a pair.
func (e *Enricher) ContextFor(ctx context.Context, dx *codes.Diagnosis, px *codes.Procedure) (Context, error) {
	chapter, err := e.ChapterOf(ctx, dx.Code)
	if err != nil {
		return Context{}, err
	}
	h, err := e.HierarchyOf(ctx, px.Code)
	if err != nil {
		return Context{}, err
	}

	hc := Context{Chapter: chapter, Procedure: h}
	if !h.HasMainCategory() {
		return hc, nil
	}
	m, err := e.MappingOf(ctx, chapter.Key, *h.MainCategoryCode)
	if err != nil {
		return Context{}, err
	}
	if m != nil {
		hc.MappingFound = true
		hc.MappingNotes = m.Notes
	}
	return hc, nil
}
