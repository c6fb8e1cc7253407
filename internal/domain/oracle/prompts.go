package oracle

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/icdachi/validator/internal/domain/codes"
	"github.com/icdachi/validator/internal/domain/evidence"
	"github.com/icdachi/validator/internal/domain/hierarchy"
	"github.com/icdachi/validator/internal/domain/relationship"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Calibration is one of the fixed worked examples shown with every
// no-evidence prompt.
type Calibration struct {
	Label      string
	Diagnosis  string
	Procedure  string
	IsValid    bool
	Confidence float64
	Reasoning  string
	Certainty  string
}

// ResultJSON renders the worked answer as the model is expected to reply.
func (c Calibration) ResultJSON() string {
	return fmt.Sprintf(`{"is_valid": %t, "confidence": %.2f, "reasoning": %q, "certainty_explanation": %q}`,
		c.IsValid, c.Confidence, c.Reasoning, c.Certainty)
}

// CalibrationSet spans clear mismatches, symptom codes, unspecified codes
// and context-dependent indications.
var CalibrationSet = []Calibration{
	{"INVALID, high confidence", "K02.9 (Dental caries)", "92209-00 (NIV respiratory support)",
		false, 0.98, "Dental condition has no respiratory indication", "Clear category mismatch"},
	{"VALID, high confidence", "J45.0 (Asthma)", "92209-00 (NIV respiratory support)",
		true, 0.95, "Direct indication for respiratory support in severe asthma", "Textbook indication"},
	{"VALID, moderate confidence - symptom code", "R07.3 (Other chest pain)", "92043-00 (Respiratory medication via nebuliser)",
		true, 0.75, "Symptom code allows plausible respiratory cause, but chest pain is non-specific", "Symptom code reduces certainty"},
	{"VALID, moderate confidence - unspecified", "J18.9 (Pneumonia, unspecified)", "55130-00 (Bronchoscopy with lavage)",
		true, 0.80, "Bronchoscopy appropriate for pneumonia workup, but .9 code lacks specificity", "Unspecified diagnosis"},
	{"VALID, moderate-low confidence - context-dependent", "R10.4 (Unspecified abdominal pain)", "30473-00 (Diagnostic laparoscopy)",
		true, 0.72, "Symptom code suggests investigation, but valid only if alarm features present or failed conservative therapy", "Requires clinical context"},
	{"VALID, moderate confidence - context-dependent", "I10 (Essential hypertension)", "13100-00 (Continuous arterial monitoring)",
		true, 0.82, "Appropriate for hypertensive crisis or perioperative monitoring, not routine outpatient", "Context-specific indication"},
	{"VALID, high confidence - preventive", "A00.9 (Cholera, unspecified)", "92498-00 (Vaccination against cholera)",
		true, 0.90, "Direct prophylactic measure for cholera", "Standard prevention"},
	{"INVALID, high confidence - clear mismatch", "A90 (Dengue fever)", "16520-00 (Caesarean section)",
		false, 0.95, "Dengue is viral infection, not obstetric indication for C-section", "Completely unrelated categories"},
}

type responseHints struct {
	Reasoning string
	Certainty string
}

type promptData struct {
	Diagnosis   *codes.Diagnosis
	Procedure   *codes.Procedure
	Examples    []*relationship.Relationship
	Context     hierarchy.Context
	Calibration []Calibration
	Response    responseHints
}

// Prompts renders the three evidence prompts. Rendering is deterministic:
// the same bundle always produces the same text.
type Prompts struct {
	tmpl *template.Template
}

// NewPrompts parses the embedded prompt templates.
func NewPrompts() (*Prompts, error) {
	tmpl, err := template.New("prompts").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	return &Prompts{tmpl: tmpl}, nil
}

// Render builds the prompt for b. Exact-match bundles have no prompt.
func (p *Prompts) Render(b evidence.Bundle) (string, error) {
	pair := b.Pair()
	data := promptData{Diagnosis: pair.Diagnosis, Procedure: pair.Procedure}

	var name string
	switch v := b.(type) {
	case *evidence.Examples:
		name = "examples.tmpl"
		data.Examples = v.Examples
		data.Response = responseHints{"Clinical explanation comparing to examples", "Why this confidence level based on example similarity"}
	case *evidence.Hierarchical:
		name = "hierarchical.tmpl"
		data.Context = v.Context
		data.Response = responseHints{"Detailed clinical explanation using hierarchical context", "Why this confidence level based on medical reasoning"}
	case *evidence.Inference:
		name = "inference.tmpl"
		data.Calibration = CalibrationSet
		data.Response = responseHints{"Detailed clinical explanation", "Why this confidence level"}
	case *evidence.ExactMatch:
		return "", fmt.Errorf("exact match bundles are answered without a prompt")
	default:
		return "", fmt.Errorf("unsupported evidence bundle %T", b)
	}

	var sb strings.Builder
	if err := p.tmpl.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return sb.String(), nil
}
