package verdict

// Source records which tier produced a validation result.
type Source string

const (
	SourceCache        Source = "cache"
	SourceExactMatch   Source = "exact_match"
	SourceExamples     Source = "examples"
	SourceHierarchical Source = "hierarchical"
	SourceInference    Source = "inference"
	SourceNotFound     Source = "not_found"
	SourceError        Source = "error"
)

// Determined reports whether the source carries an actual validity judgment.
// not_found and error mean the pairing could not be assessed.
func (s Source) Determined() bool {
	return s != SourceNotFound && s != SourceError && s != ""
}

// Result is the outcome of validating a (diagnosis, procedure) pair.
type Result struct {
	IsValid              bool    `json:"is_valid"`
	Reasoning            string  `json:"reasoning"`
	Confidence           float64 `json:"confidence"`
	CertaintyExplanation string  `json:"certainty_explanation"`
	Source               Source  `json:"source"`
	SimilarExamplesCount int     `json:"similar_examples_count"`
	DiagnosisDescription string  `json:"diagnosis_description"`
	ProcedureDescription string  `json:"procedure_description"`
}

// Cacheable reports whether the result may be stored in the result cache.
func (r *Result) Cacheable() bool {
	return r != nil && r.Source.Determined()
}

// Clone returns a copy so cached entries are never mutated by callers.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// NotFound builds the result returned when a code is absent from the registry.
func NotFound(reasoning string) *Result {
	return &Result{
		IsValid:              false,
		Reasoning:            reasoning,
		Confidence:           0.0,
		CertaintyExplanation: "Code not found",
		Source:               SourceNotFound,
	}
}

// Failure builds the result returned when validity could not be determined.
func Failure(cause error, explanation string) *Result {
	reasoning := "validation failed"
	if cause != nil {
		reasoning = cause.Error()
	}
	return &Result{
		IsValid:              false,
		Reasoning:            reasoning,
		Confidence:           0.0,
		CertaintyExplanation: explanation,
		Source:               SourceError,
	}
}

// ClampConfidence forces a confidence value into [0,1].
func ClampConfidence(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
