// Package oracle turns evidence bundles into validity decisions by asking an
// external reasoning service.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/icdachi/validator/internal/domain/evidence"
	"github.com/icdachi/validator/internal/domain/verdict"
	"github.com/icdachi/validator/internal/platform/llm"
)

const (
	// ExactMatchExplanation is the certainty explanation of stored relationships.
	ExactMatchExplanation = "Exact match found in validated database"

	// ErrorExplanation is the certainty explanation of failed oracle calls.
	ErrorExplanation = "Error calling AI model"
)

const decisionSchemaURL = "https://schemas.icdachi.local/oracle/decision.schema.json"

const decisionSchema = `{
  "type": "object",
  "required": ["is_valid", "reasoning", "confidence", "certainty_explanation"],
  "properties": {
    "is_valid": {"type": "boolean"},
    "reasoning": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "certainty_explanation": {"type": "string"}
  }
}`

// Completer is the reasoning service transport.
type Completer interface {
	CompleteJSON(ctx context.Context, messages []llm.Message) ([]byte, error)
}

// Decision is a validated reply from the reasoning service.
type Decision struct {
	IsValid              bool    `json:"is_valid"`
	Reasoning            string  `json:"reasoning"`
	Confidence           float64 `json:"confidence"`
	CertaintyExplanation string  `json:"certainty_explanation"`
}

// Adapter renders prompts, calls the service and enforces the reply contract.
type Adapter struct {
	client  Completer
	prompts *Prompts
	schema  *jsonschema.Schema
	logger  zerolog.Logger
}

// NewAdapter compiles the reply schema and prompt templates.
func NewAdapter(client Completer, logger zerolog.Logger) (*Adapter, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(decisionSchemaURL, strings.NewReader(decisionSchema)); err != nil {
		return nil, fmt.Errorf("decision schema load failed: %w", err)
	}
	schema, err := c.Compile(decisionSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("decision schema compile failed: %w", err)
	}

	prompts, err := NewPrompts()
	if err != nil {
		return nil, err
	}

	return &Adapter{
		client:  client,
		prompts: prompts,
		schema:  schema,
		logger:  logger.With().Str("component", "oracle").Logger(),
	}, nil
}

// Decide returns the decision for b. Exact matches are answered from the
// stored relationship. Errors wrap verdict.ErrOracleUnavailable or
// verdict.ErrMalformedOracleResponse.
func (a *Adapter) Decide(ctx context.Context, b evidence.Bundle) (*Decision, error) {
	switch v := b.(type) {
	case *evidence.ExactMatch:
		return &Decision{
			IsValid:              true,
			Reasoning:            v.Relationship.RelationshipText,
			Confidence:           1.0,
			CertaintyExplanation: ExactMatchExplanation,
		}, nil
	case *evidence.Examples, *evidence.Hierarchical, *evidence.Inference:
	default:
		return nil, fmt.Errorf("unsupported evidence bundle %T", b)
	}

	prompt, err := a.prompts.Render(b)
	if err != nil {
		return nil, err
	}

	raw, err := a.client.CompleteJSON(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		if errors.Is(err, llm.ErrMalformed) {
			return nil, fmt.Errorf("%w: %v", verdict.ErrMalformedOracleResponse, err)
		}
		return nil, fmt.Errorf("%w: %v", verdict.ErrOracleUnavailable, err)
	}

	return a.parse(raw)
}

func (a *Adapter) parse(raw []byte) (*Decision, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", verdict.ErrMalformedOracleResponse, err)
	}
	if err := a.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", verdict.ErrMalformedOracleResponse, err)
	}

	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", verdict.ErrMalformedOracleResponse, err)
	}
	return &d, nil
}

// Evaluate is Decide with errors folded into an error-source result. It
// never fails.
func (a *Adapter) Evaluate(ctx context.Context, b evidence.Bundle) *verdict.Result {
	d, err := a.Decide(ctx, b)
	if err != nil {
		a.logger.Warn().Err(err).Str("tier", tierOf(b)).Msg("oracle call failed")
		return verdict.Failure(err, ErrorExplanation)
	}

	res := &verdict.Result{
		IsValid:              d.IsValid,
		Reasoning:            d.Reasoning,
		Confidence:           verdict.ClampConfidence(d.Confidence),
		CertaintyExplanation: d.CertaintyExplanation,
	}
	switch v := b.(type) {
	case *evidence.ExactMatch:
		res.Source = verdict.SourceExactMatch
	case *evidence.Examples:
		res.Source = verdict.SourceExamples
		res.SimilarExamplesCount = len(v.Examples)
	case *evidence.Hierarchical:
		res.Source = verdict.SourceHierarchical
	case *evidence.Inference:
		res.Source = verdict.SourceInference
	}
	return res
}

func tierOf(b evidence.Bundle) string {
	if b == nil {
		return "none"
	}
	return b.Tier().String()
}
