package recommend

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/dshills/assessment-recommender/pkg/types"
)

var (
	resultBlockPattern = regexp.MustCompile(`(?is)<result>(.*?)</result>`)
	fenceOpenPattern   = regexp.MustCompile("^```[ \\t]*[A-Za-z0-9_+-]*[ \\t]*(\\r?\\n)?")
	fenceClosePattern  = regexp.MustCompile("(\\r?\\n)?[ \\t]*```$")
	markdownURLPattern = regexp.MustCompile(`\((https?://[^)]+)\)`)
	separatorCell      = regexp.MustCompile(`^:?-+:?$`)
)

const (
	colName = iota
	colURL
	colRemote
	colAdaptive
	colDuration
	colTestType
	colDescription
	tableColumns
)

// Parse turns raw model output into a RecommendationSet. Only the first
// <result> block is read. JSON is tried first; a pipe table is accepted as
// a fallback. Unusable input yields the empty set, never an error.
func Parse(raw string) types.RecommendationSet {
	block, ok := ExtractResultBlock(raw)
	if !ok {
		return types.NewRecommendationSet()
	}
	block = stripFences(block)

	if list, ok := decodeAssessments([]byte(block)); ok {
		return types.RecommendationSet{RecommendedAssessments: list}
	}
	if list, ok := decodeAssessments(stripControlChars([]byte(block))); ok {
		return types.RecommendationSet{RecommendedAssessments: list}
	}

	if records := parseTable(block); len(records) > 0 {
		return types.RecommendationSetFromRecords(records)
	}
	return types.NewRecommendationSet()
}

// ExtractResultBlock returns the trimmed body of the first <result> block.
// Tag matching is case-insensitive and the body may span lines.
func ExtractResultBlock(raw string) (string, bool) {
	m := resultBlockPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ExpandTestTypes maps single-letter codes to category names, keeping
// unknown codes and dropping blanks
func ExpandTestTypes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if code = strings.TrimSpace(code); code != "" {
			out = append(out, types.ExpandTestType(code))
		}
	}
	return out
}

// stripFences removes a ``` marker from the first and last line only
func stripFences(block string) string {
	block = fenceOpenPattern.ReplaceAllString(block, "")
	block = fenceClosePattern.ReplaceAllString(block, "")
	return strings.TrimSpace(block)
}

// decodeAssessments strictly decodes data and returns the
// recommended_assessments array with each element's bytes untouched
func decodeAssessments(data []byte) ([]json.RawMessage, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, false
	}
	field, ok := top["recommended_assessments"]
	if !ok {
		return nil, false
	}
	field = bytes.TrimSpace(field)
	if len(field) == 0 || field[0] != '[' {
		return nil, false
	}

	var list []json.RawMessage
	if err := json.Unmarshal(field, &list); err != nil {
		return nil, false
	}
	if list == nil {
		list = []json.RawMessage{}
	}
	return list, true
}

// stripControlChars drops bytes 0-31, which models sometimes emit raw
// inside JSON strings
func stripControlChars(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b >= 0x20 {
			out = append(out, b)
		}
	}
	return out
}

// parseTable reads the legacy pipe table layout:
// name | [link](url) | remote | adaptive | duration | codes | description
// Rows above the first separator row are treated as the header.
func parseTable(block string) []types.RecommendationRecord {
	var rows [][]string
	for _, line := range strings.Split(block, "\n") {
		if cells := splitRow(line); len(cells) > 0 {
			rows = append(rows, cells)
		}
	}

	start := 0
	for i, cells := range rows {
		if isSeparatorRow(cells) {
			start = i + 1
			break
		}
	}

	records := make([]types.RecommendationRecord, 0, len(rows))
	for _, cells := range rows[start:] {
		if len(cells) < tableColumns || isSeparatorRow(cells) {
			continue
		}

		url := ""
		if m := markdownURLPattern.FindStringSubmatch(cells[colURL]); m != nil {
			url = m[1]
		}

		records = append(records, types.RecommendationRecord{
			URL:             url,
			Name:            cells[colName],
			RemoteSupport:   cells[colRemote],
			AdaptiveSupport: cells[colAdaptive],
			Duration:        types.ParseDuration(cells[colDuration]),
			TestType:        ExpandTestTypes(strings.Split(cells[colTestType], ",")),
			Description:     cells[colDescription],
		})
	}
	return records
}

// splitRow splits a table line on | and keeps the non-empty trimmed cells
func splitRow(line string) []string {
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if !separatorCell.MatchString(strings.ReplaceAll(c, " ", "")) {
			return false
		}
	}
	return true
}
