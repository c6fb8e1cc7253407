package hierarchy

import "context"

// Repository reads the static hierarchy and category mapping tables.
type Repository interface {
	// ChapterName returns the chapter display name recorded in the mapping
	// table; ok is false when no row names the chapter.
	ChapterName(ctx context.Context, chapterKey string) (name string, ok bool, err error)
	// ProcedureHierarchy resolves the stored links of a procedure code. Missing
	// links and unknown codes yield nil fields, never an error.
	ProcedureHierarchy(ctx context.Context, procedureCode string) (ProcedureHierarchy, error)
	// Mapping returns the mapping for the pair, or nil when absent.
	Mapping(ctx context.Context, chapterKey, mainCategoryCode string) (*CategoryMapping, error)
	// ReplaceMappings swaps the mapping table contents for ms.
	ReplaceMappings(ctx context.Context, ms []CategoryMapping) error
}
