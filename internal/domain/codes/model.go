package codes

import "errors"

// UnknownCategory is reported when a code has no stored category.
const UnknownCategory = "Unknown"

// ErrNotFound is returned by repositories when a code is absent.
var ErrNotFound = errors.New("code not found")

// Record holds the fields shared by diagnosis and procedure codes.
type Record struct {
	Code             string `db:"code" json:"code"`
	Description      string `db:"description" json:"description"`
	Category         string `db:"category" json:"category"`
	ShortDescription string `db:"short_description" json:"short_description,omitempty"`
}

// Diagnosis is an ICD-10-AM diagnosis code.
type Diagnosis struct {
	Record
}

// Procedure is an ACHI procedure code. The hierarchy links are nil when the
// code was imported without a main category or block range.
type Procedure struct {
	Record
	MainCategoryCode *string `db:"main_category_code" json:"main_category_code,omitempty"`
	SubCategoryID    *int    `db:"sub_category_id" json:"sub_category_id,omitempty"`
}

// Label returns the short description when present, else the description.
func (p *Procedure) Label() string {
	if p.ShortDescription != "" {
		return p.ShortDescription
	}
	return p.Description
}

func categoryOrUnknown(c string) string {
	if c == "" {
		return UnknownCategory
	}
	return c
}

// MainCategory is a top-level ACHI grouping, e.g. "08 Procedures on digestive system".
type MainCategory struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	FullLabel string `json:"full_label,omitempty"`
}

// SubCategory is an ACHI block range belonging to a main category.
type SubCategory struct {
	ID               int    `json:"id"`
	RangeStart       int    `json:"range_start"`
	RangeEnd         int    `json:"range_end"`
	Name             string `json:"name"`
	MainCategoryCode string `json:"main_category_code"`
}
