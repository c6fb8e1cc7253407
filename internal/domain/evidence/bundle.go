// Package evidence selects the validation tier for a code pair and gathers
// the evidence passed to the reasoning service.
package evidence

import (
	"github.com/icdachi/validator/internal/domain/codes"
	"github.com/icdachi/validator/internal/domain/hierarchy"
	"github.com/icdachi/validator/internal/domain/relationship"
)

// Tier identifies which evidence a bundle carries.
type Tier int

const (
	TierExactMatch Tier = iota + 1
	TierExamples
	TierHierarchical
	TierInference
)

func (t Tier) String() string {
	switch t {
	case TierExactMatch:
		return "exact_match"
	case TierExamples:
		return "examples"
	case TierHierarchical:
		return "hierarchical"
	case TierInference:
		return "inference"
	}
	return "unknown"
}

// Pair is a resolved (diagnosis, procedure) pair.
type Pair struct {
	Diagnosis *codes.Diagnosis
	Procedure *codes.Procedure
}

// Bundle is one of ExactMatch, Examples, Hierarchical or Inference.
type Bundle interface {
	Tier() Tier
	Pair() Pair
	sealed()
}

type base struct{ pair Pair }

func (b base) Pair() Pair { return b.pair }
func (base) sealed()      {}

// ExactMatch carries the stored relationship for the identical pair.
type ExactMatch struct {
	base
	Relationship *relationship.Relationship
}

func NewExactMatch(p Pair, rel *relationship.Relationship) *ExactMatch {
	return &ExactMatch{base: base{p}, Relationship: rel}
}

func (*ExactMatch) Tier() Tier { return TierExactMatch }

// Examples carries stored relationships sharing both categories with the pair.
type Examples struct {
	base
	Examples []*relationship.Relationship
}

func NewExamples(p Pair, examples []*relationship.Relationship) *Examples {
	return &Examples{base: base{p}, Examples: examples}
}

func (*Examples) Tier() Tier { return TierExamples }

// Hierarchical carries chapter and category context for the pair.
type Hierarchical struct {
	base
	Context hierarchy.Context
}

func NewHierarchical(p Pair, hc hierarchy.Context) *Hierarchical {
	return &Hierarchical{base: base{p}, Context: hc}
}

func (*Hierarchical) Tier() Tier { return TierHierarchical }

// Inference carries only the pair itself.
type Inference struct {
	base
}

func NewInference(p Pair) *Inference {
	return &Inference{base: base{p}}
}

func (*Inference) Tier() Tier { return TierInference }
