package render

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Go's RE2 has no backreferences, so opening tags are found first and each
// is paired with the nearest close tag of the same name, ignoring case.
var openTagPattern = regexp.MustCompile(`<(\w+)>`)

// ResultTag names the section that holds the structured recommendations
const ResultTag = "result"

// Section is one tagged block of model output
type Section struct {
	Tag   string // Tag name as written, e.g. "analysis"
	Title string // Capitalised tag name, empty for untagged output
	Body  string // Trimmed block content
}

// IsResult reports whether the section is the result block
func (s Section) IsResult() bool {
	return strings.EqualFold(s.Tag, ResultTag)
}

// SplitSections splits raw output into <tag>...</tag> sections. Each tag
// name appears once, keeping its first occurrence; the result section comes
// first and the rest keep their order. Text with no tagged blocks becomes a
// single untitled section. Blank input yields no sections.
func SplitSections(raw string) []Section {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var sections []Section
	seen := make(map[string]bool)

	pos := 0
	for pos < len(raw) {
		loc := openTagPattern.FindStringSubmatchIndex(raw[pos:])
		if loc == nil {
			break
		}
		tag := raw[pos+loc[2] : pos+loc[3]]
		bodyStart := pos + loc[1]

		// Tags are ASCII word characters, so lower-casing keeps byte offsets
		closeTag := "</" + strings.ToLower(tag) + ">"
		end := strings.Index(strings.ToLower(raw[bodyStart:]), closeTag)
		if end < 0 {
			// Unclosed tag; keep scanning after it
			pos = bodyStart
			continue
		}

		if key := strings.ToLower(tag); !seen[key] {
			seen[key] = true
			sections = append(sections, Section{
				Tag:   tag,
				Title: capitalize(tag),
				Body:  strings.TrimSpace(raw[bodyStart : bodyStart+end]),
			})
		}
		pos = bodyStart + end + len(closeTag)
	}

	if len(sections) == 0 {
		return []Section{{Body: strings.TrimSpace(raw)}}
	}

	ordered := make([]Section, 0, len(sections))
	for _, s := range sections {
		if s.IsResult() {
			ordered = append(ordered, s)
		}
	}
	for _, s := range sections {
		if !s.IsResult() {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

// capitalize upper-cases the first letter and lower-cases the rest
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
