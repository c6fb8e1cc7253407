package evidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/icdachi/validator/internal/domain/codes"
	"github.com/icdachi/validator/internal/domain/hierarchy"
	"github.com/icdachi/validator/internal/domain/relationship"
	"github.com/icdachi/validator/internal/domain/verdict"
)

// ContextSource supplies hierarchy context for a pair.
type ContextSource interface {
	ContextFor(ctx context.Context, dx *codes.Diagnosis, px *codes.Procedure) (hierarchy.Context, error)
}

// Assembler picks the first tier with evidence: exact match, similar
// examples, hierarchy context, then plain inference. It never produces a
// confidence of its own.
type Assembler struct {
	rels     relationship.Repository
	enricher ContextSource
}

// NewAssembler creates an assembler. A nil enricher disables the
// hierarchical tier.
func NewAssembler(rels relationship.Repository, enricher ContextSource) *Assembler {
	return &Assembler{rels: rels, enricher: enricher}
}

// Assemble builds the evidence bundle for p. Store failures are returned
// wrapped in verdict.ErrStoreUnavailable.
func (a *Assembler) Assemble(ctx context.Context, p Pair) (Bundle, error) {
	if p.Diagnosis == nil || p.Procedure == nil {
		return nil, fmt.Errorf("assemble: pair is incomplete")
	}

	rel, err := a.rels.GetByPair(ctx, p.Diagnosis.Code, p.Procedure.Code)
	switch {
	case err == nil:
		return NewExactMatch(p, rel), nil
	case !errors.Is(err, relationship.ErrNotFound):
		return nil, fmt.Errorf("%w: exact match: %w", verdict.ErrStoreUnavailable, err)
	}

	examples, err := a.rels.SimilarExamples(ctx, p.Diagnosis.Category, p.Procedure.Category, relationship.MaxExamples)
	if err != nil {
		return nil, fmt.Errorf("%w: similar examples: %w", verdict.ErrStoreUnavailable, err)
	}
	if len(examples) > relationship.MaxExamples {
		examples = examples[:relationship.MaxExamples]
	}
	if len(examples) > 0 {
		return NewExamples(p, examples), nil
	}

	if a.enricher != nil {
		hc, err := a.enricher.ContextFor(ctx, p.Diagnosis, p.Procedure)
		switch {
		case errors.Is(err, hierarchy.ErrNoChapter):
			return NewInference(p), nil
		case err != nil:
			return nil, fmt.Errorf("%w: hierarchy context: %w", verdict.ErrStoreUnavailable, err)
		}
		if hc.Procedure.HasMainCategory() {
			return NewHierarchical(p, hc), nil
		}
	}

	return NewInference(p), nil
}
