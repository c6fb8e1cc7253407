package codes

import "context"

// DiagnosisRepository provides access to ICD-10-AM diagnosis codes.
type DiagnosisRepository interface {
	Search(ctx context.Context, query string, limit int) ([]*Diagnosis, error)
	GetByCode(ctx context.Context, code string) (*Diagnosis, error)
}

// ProcedureRepository provides access to ACHI procedure codes.
type ProcedureRepository interface {
	Search(ctx context.Context, query string, limit int) ([]*Procedure, error)
	GetByCode(ctx context.Context, code string) (*Procedure, error)
}

// Writer persists imported code sets. Upserts are keyed on the code.
type Writer interface {
	UpsertDiagnosis(ctx context.Context, d *Diagnosis) error
	UpsertMainCategory(ctx context.Context, m *MainCategory) error
	UpsertSubCategory(ctx context.Context, s *SubCategory) (int, error)
	UpsertProcedure(ctx context.Context, p *Procedure) error
}
