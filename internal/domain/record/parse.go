package record

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ValidationError aggregates every problem found in a source document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// ParseUpload validates and normalizes one uploaded source document. The
// document must be a JSON object with a hospital name and a records mapping
// of category name to payload. On validation failure the record set is empty:
// a document is either accepted completely or rejected completely.
//
// Categories are processed in sorted name order, which fixes the stored
// record order for a given document.
func ParseUpload(content []byte, fileName string) ([]*Record, []string) {
	var data interface{}
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, []string{fmt.Sprintf("Invalid JSON format: %v", err)}
	}

	doc, ok := data.(map[string]interface{})
	if !ok {
		return nil, []string{"JSON must be an object with 'hospital' and 'records' fields"}
	}

	hospital := "Unknown Hospital"
	if h, ok := doc["hospital"].(string); ok {
		hospital = h
	}

	rawRecords, found := doc["records"]
	if !found {
		return nil, []string{"Missing 'records' field in JSON"}
	}
	categories, ok := rawRecords.(map[string]interface{})
	if !ok {
		return nil, []string{"'records' must be an object mapping category names to entries"}
	}

	records := make([]*Record, 0, len(categories))
	for _, category := range sortedKeys(categories) {
		records = append(records, Normalize(hospital, category, categories[category], fileName))
	}
	return records, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
