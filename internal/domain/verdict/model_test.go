package verdict

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestSource_Determined(t *testing.T) {
	tests := []struct {
		src  Source
		want bool
	}{
		{SourceCache, true},
		{SourceExactMatch, true},
		{SourceExamples, true},
		{SourceHierarchical, true},
		{SourceInference, true},
		{SourceNotFound, false},
		{SourceError, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.src.Determined(); got != tt.want {
			t.Errorf("%q.Determined() = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestResult_Cacheable(t *testing.T) {
	var nilResult *Result
	if nilResult.Cacheable() {
		t.Error("nil result must not be cacheable")
	}
	if NotFound("missing").Cacheable() {
		t.Error("not_found result must not be cacheable")
	}
	if Failure(errors.New("boom"), "x").Cacheable() {
		t.Error("error result must not be cacheable")
	}
	r := &Result{IsValid: true, Confidence: 0.8, Source: SourceInference}
	if !r.Cacheable() {
		t.Error("inference result should be cacheable")
	}
}

func TestResult_CloneIsIndependent(t *testing.T) {
	r := &Result{Reasoning: "original", Source: SourceExamples}
	c := r.Clone()
	c.Reasoning = "changed"
	if r.Reasoning != "original" {
		t.Errorf("clone mutated original: %q", r.Reasoning)
	}
}

func TestNotFound_Shape(t *testing.T) {
	r := NotFound("ICD code X99 not found")
	if r.IsValid || r.Confidence != 0 || r.Source != SourceNotFound {
		t.Errorf("unexpected not_found result: %+v", r)
	}
}

func TestFailure_CarriesCause(t *testing.T) {
	cause := fmt.Errorf("%w: timeout after 30s", ErrOracleUnavailable)
	r := Failure(cause, "Error calling AI model")
	if r.Source != SourceError || r.IsValid || r.Confidence != 0 {
		t.Errorf("unexpected failure result: %+v", r)
	}
	if r.Reasoning != cause.Error() {
		t.Errorf("expected reasoning %q, got %q", cause.Error(), r.Reasoning)
	}
}

func TestClampConfidence(t *testing.T) {
	cases := map[float64]float64{-0.5: 0, 0: 0, 0.42: 0.42, 1: 1, 1.7: 1}
	for in, want := range cases {
		if got := ClampConfidence(in); got != want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", in, got, want)
		}
	}
	if got := ClampConfidence(math.NaN()); got != 0 {
		t.Errorf("ClampConfidence(NaN) = %v, want 0", got)
	}
}

func TestRecoverable(t *testing.T) {
	if !Recoverable(fmt.Errorf("lookup: %w", ErrCodeNotFound)) {
		t.Error("code not found should be recoverable")
	}
	if !Recoverable(ErrMalformedOracleResponse) || !Recoverable(ErrOracleUnavailable) {
		t.Error("oracle errors should be recoverable")
	}
	if Recoverable(fmt.Errorf("query: %w", ErrStoreUnavailable)) {
		t.Error("store errors must not be recoverable")
	}
}
