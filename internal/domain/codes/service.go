package codes

import (
	"context"
	"fmt"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// Service provides code lookup and autocomplete search.
type Service struct {
	diagnoses  DiagnosisRepository
	procedures ProcedureRepository
}

// NewService creates a new code registry service.
func NewService(diagnoses DiagnosisRepository, procedures ProcedureRepository) *Service {
	return &Service{diagnoses: diagnoses, procedures: procedures}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}

// SearchDiagnoses searches diagnosis codes by code or description fragment.
func (s *Service) SearchDiagnoses(ctx context.Context, query string, limit int) ([]*Diagnosis, error) {
	if query == "" {
		return nil, fmt.Errorf("query parameter is required")
	}
	return s.diagnoses.Search(ctx, query, clampLimit(limit))
}

// LookupDiagnosis returns the diagnosis with exactly this code.
func (s *Service) LookupDiagnosis(ctx context.Context, code string) (*Diagnosis, error) {
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	return s.diagnoses.GetByCode(ctx, code)
}

// SearchProcedures searches procedure codes by code or description fragment.
func (s *Service) SearchProcedures(ctx context.Context, query string, limit int) ([]*Procedure, error) {
	if query == "" {
		return nil, fmt.Errorf("query parameter is required")
	}
	return s.procedures.Search(ctx, query, clampLimit(limit))
}

// LookupProcedure returns the procedure with exactly this code.
func (s *Service) LookupProcedure(ctx context.Context, code string) (*Procedure, error) {
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	return s.procedures.GetByCode(ctx, code)
}
