package hierarchy

import "github.com/icdachi/validator/internal/domain/codes"

// SubCategory is the block range a procedure belongs to.
type SubCategory = codes.SubCategory

// Chapter is the coarse grouping of a diagnosis code.
type Chapter struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Letter string `json:"letter"`
}

// ProcedureHierarchy holds the main and sub category of a procedure. A nil
// field means the stored link is missing.
type ProcedureHierarchy struct {
	MainCategoryCode *string `json:"main_category_code"`
	MainCategoryName *string `json:"main_category_name"`
	SubCategoryName  *string `json:"sub_category_name"`
}

// HasMainCategory reports whether the procedure resolved to a main category.
func (h ProcedureHierarchy) HasMainCategory() bool {
	return h.MainCategoryCode != nil && *h.MainCategoryCode != ""
}

// CategoryMapping is an advisory link between a diagnosis chapter and a
// procedure main category. Its confidence is never used as a verdict.
type CategoryMapping struct {
	Chapter          string  `json:"icd_chapter"`
	ChapterName      string  `json:"icd_chapter_name"`
	MainCategoryCode string  `json:"achi_main_category_code"`
	MainCategoryName string  `json:"achi_main_category_name"`
	Confidence       float64 `json:"mapping_confidence"`
	Notes            string  `json:"notes,omitempty"`
}

// Context is the hierarchy evidence handed to the reasoning service.
type Context struct {
	Chapter      Chapter            `json:"chapter"`
	Procedure    ProcedureHierarchy `json:"procedure"`
	MappingFound bool               `json:"mapping_found"`
	MappingNotes string             `json:"mapping_notes,omitempty"`
}

// MainCategoryLabel returns the main category name or "Unknown".
func (c Context) MainCategoryLabel() string {
	return deref(c.Procedure.MainCategoryName)
}

// SubCategoryLabel returns the sub-category name or "Unknown".
func (c Context) SubCategoryLabel() string {
	return deref(c.Procedure.SubCategoryName)
}

// MainCategoryCodeLabel returns the main category code or "Unknown".
func (c Context) MainCategoryCodeLabel() string {
	return deref(c.Procedure.MainCategoryCode)
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return codes.UnknownCategory
	}
	return *s
}
