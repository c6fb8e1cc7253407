package hierarchy

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// chapterRanges maps the leading letter of an ICD-10-AM code to its chapter range.
var chapterRanges = map[rune]string{
	'A': "A00-B99", 'B': "A00-B99",
	'C': "C00-D48", 'D': "C00-D48",
	'E': "E00-E89",
	'F': "F01-F99",
	'G': "G00-G99",
	'H': "H00-H95",
	'I': "I00-I99",
	'J': "J00-J99",
	'K': "K00-K93",
	'L': "L00-L99",
	'M': "M00-M99",
	'N': "N00-N99",
	'O': "O00-O9A",
	'P': "P00-P96",
	'Q': "Q00-Q99",
	'R': "R00-R94",
	'S': "S00-T98", 'T': "S00-T98",
	'U': "U00-U99",
	'V': "V01-Y98", 'W': "V01-Y98", 'X': "V01-Y98", 'Y': "V01-Y98",
	'Z': "Z00-Z99",
}

// ChapterKey returns the chapter range for a diagnosis code together with the
// upper-cased leading letter. Letters outside the table synthesize
// "{L}00-{L}99"; an invalid UTF-8 lead byte is used as the letter as-is.
// ok is false only for an empty code.
func ChapterKey(code string) (key string, letter string, ok bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", "", false
	}
	r, size := utf8.DecodeRuneInString(code)
	if r == utf8.RuneError && size <= 1 {
		letter = code[:1]
		return fmt.Sprintf("%s00-%s99", letter, letter), letter, true
	}
	r = unicode.ToUpper(r)
	letter = string(r)
	if key, found := chapterRanges[r]; found {
		return key, letter, true
	}
	return fmt.Sprintf("%s00-%s99", letter, letter), letter, true
}

// DefaultChapterName is used when no mapping row names the chapter.
func DefaultChapterName(letter string) string {
	return "Diseases starting with " + letter
}
