package types

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// TestTypeCodes maps single-letter assessment type codes to their category names
var TestTypeCodes = map[string]string{
	"A": "Ability & Aptitude",
	"B": "Biodata & Situational Judgement",
	"C": "Competencies",
	"D": "Development & 360",
	"E": "Assessment Exercises",
	"K": "Knowledge & Skills",
	"P": "Personality & Behaviour",
	"S": "Simulations",
}

// ExpandTestType returns the category for a code, or the code itself when unknown
func ExpandTestType(code string) string {
	if name, ok := TestTypeCodes[code]; ok {
		return name
	}
	return code
}

// RecommendationRecord is one recommended assessment
type RecommendationRecord struct {
	URL             string   `json:"url"`
	Name            string   `json:"name"`
	AdaptiveSupport string   `json:"adaptive_support"`
	Description     string   `json:"description"`
	Duration        int      `json:"duration"`
	RemoteSupport   string   `json:"remote_support"`
	TestType        []string `json:"test_type"`
}

// RecommendationSet is the structured result of a recommendation query.
//
// Entries are stored as raw JSON so that well-formed model output is returned
// exactly as produced. The slice is never nil.
type RecommendationSet struct {
	RecommendedAssessments []json.RawMessage `json:"recommended_assessments"`
}

// NewRecommendationSet returns an empty set whose list serializes as []
func NewRecommendationSet() RecommendationSet {
	return RecommendationSet{RecommendedAssessments: []json.RawMessage{}}
}

// RecommendationSetFromRecords builds a set from typed records
func RecommendationSetFromRecords(records []RecommendationRecord) RecommendationSet {
	set := NewRecommendationSet()
	for _, rec := range records {
		if rec.TestType == nil {
			rec.TestType = []string{}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		set.RecommendedAssessments = append(set.RecommendedAssessments, data)
	}
	return set
}

// Len returns the number of entries in the set
func (s RecommendationSet) Len() int {
	return len(s.RecommendedAssessments)
}

// MarshalJSON keeps the list present as [] when the set was zero-valued
func (s RecommendationSet) MarshalJSON() ([]byte, error) {
	list := s.RecommendedAssessments
	if list == nil {
		list = []json.RawMessage{}
	}
	return json.Marshal(struct {
		RecommendedAssessments []json.RawMessage `json:"recommended_assessments"`
	}{list})
}

// Records decodes each entry leniently. Missing or mistyped fields become zero
// values; entries that are not JSON objects are skipped.
func (s RecommendationSet) Records() []RecommendationRecord {
	records := make([]RecommendationRecord, 0, len(s.RecommendedAssessments))
	for _, raw := range s.RecommendedAssessments {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		records = append(records, recordFromFields(fields))
	}
	return records
}

// URLs returns the non-empty record URLs in order
func (s RecommendationSet) URLs() []string {
	urls := make([]string, 0, len(s.RecommendedAssessments))
	for _, rec := range s.Records() {
		if rec.URL != "" {
			urls = append(urls, rec.URL)
		}
	}
	return urls
}

var firstIntPattern = regexp.MustCompile(`\d+`)

// ParseDuration returns the first integer found in s, or 0
func ParseDuration(s string) int {
	m := firstIntPattern.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func recordFromFields(fields map[string]any) RecommendationRecord {
	rec := RecommendationRecord{
		URL:             stringField(fields, "url"),
		Name:            stringField(fields, "name"),
		AdaptiveSupport: stringField(fields, "adaptive_support"),
		Description:     stringField(fields, "description"),
		RemoteSupport:   stringField(fields, "remote_support"),
		TestType:        []string{},
	}

	switch d := fields["duration"].(type) {
	case float64:
		if d > 0 {
			rec.Duration = int(d)
		}
	case string:
		rec.Duration = ParseDuration(d)
	}

	switch tt := fields["test_type"].(type) {
	case []any:
		for _, v := range tt {
			if str, ok := v.(string); ok {
				rec.TestType = append(rec.TestType, str)
			}
		}
	case string:
		if tt = strings.TrimSpace(tt); tt != "" {
			rec.TestType = append(rec.TestType, tt)
		}
	}

	return rec
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
