package hierarchy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const defaultMappingConfidence = 0.95

// mappingFile is the JSON layout of a chapter-to-category mapping export.
type mappingFile struct {
	Mappings []struct {
		Chapter        string   `json:"icd_chapter"`
		ChapterName    string   `json:"icd_chapter_name"`
		MainCategories []string `json:"achi_main_categories"`
		MainNames      []string `json:"achi_names"`
		Confidence     *float64 `json:"confidence"`
		Examples       []string `json:"examples"`
	} `json:"mappings"`
}

// ParseMappings decodes a mapping export. Each chapter entry expands into one
// CategoryMapping per listed main category; examples become the notes.
func ParseMappings(r io.Reader) ([]CategoryMapping, error) {
	var f mappingFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode mappings: %w", err)
	}

	var out []CategoryMapping
	for _, m := range f.Mappings {
		if m.Chapter == "" {
			return nil, fmt.Errorf("mapping without icd_chapter")
		}
		if len(m.MainCategories) != len(m.MainNames) {
			return nil, fmt.Errorf("chapter %s: %d categories but %d names", m.Chapter, len(m.MainCategories), len(m.MainNames))
		}
		confidence := defaultMappingConfidence
		if m.Confidence != nil {
			confidence = *m.Confidence
		}
		if confidence < 0 || confidence > 1 {
			return nil, fmt.Errorf("chapter %s: confidence %v outside [0,1]", m.Chapter, confidence)
		}
		notes, err := encodeNotes(m.Examples)
		if err != nil {
			return nil, fmt.Errorf("chapter %s: %w", m.Chapter, err)
		}
		for i, code := range m.MainCategories {
			out = append(out, CategoryMapping{
				Chapter:          m.Chapter,
				ChapterName:      m.ChapterName,
				MainCategoryCode: code,
				MainCategoryName: m.MainNames[i],
				Confidence:       confidence,
				Notes:            notes,
			})
		}
	}
	return out, nil
}

// encodeNotes renders examples as a JSON array without HTML escaping, so
// "K35.8 -> 30571-00" stays readable in prompts.
func encodeNotes(examples []string) (string, error) {
	if len(examples) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(examples); err != nil {
		return "", fmt.Errorf("encode examples: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// ImportMappings replaces the stored mappings with the contents of r.
func ImportMappings(ctx context.Context, repo Repository, r io.Reader) (int, error) {
	ms, err := ParseMappings(r)
	if err != nil {
		return 0, err
	}
	if err := repo.ReplaceMappings(ctx, ms); err != nil {
		return 0, err
	}
	return len(ms), nil
}
