package record

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed sample_data/*.json
var sampleFS embed.FS

// PatientInfo carries optional demographic hints attached to a sample
// document.
type PatientInfo struct {
	DateOfBirth string `json:"date_of_birth"`
}

// SampleResult is the outcome of loading the bundled demonstration dataset.
type SampleResult struct {
	Records     []*Record
	PatientInfo *PatientInfo
}

// LoadSampleData normalizes the embedded demonstration documents, keeping
// only hospitals and categories named by the filters. An empty filter keeps
// everything the catalog recognizes. Documents are processed in file name
// order and categories in sorted name order, which fixes the record order.
func LoadSampleData(catalog Catalog, hospitals, categories []string) (*SampleResult, error) {
	if len(hospitals) == 0 {
		hospitals = catalog.Hospitals
	}
	if len(categories) == 0 {
		categories = catalog.Categories
	}

	files, err := sampleFS.ReadDir("sample_data")
	if err != nil {
		return nil, fmt.Errorf("reading sample data: %w", err)
	}

	result := &SampleResult{Records: []*Record{}}
	for _, f := range files {
		if !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		content, err := sampleFS.ReadFile("sample_data/" + f.Name())
		if err != nil {
			return nil, fmt.Errorf("reading sample data: %w", err)
		}

		var doc struct {
			Hospital    string                 `json:"hospital"`
			PatientInfo *PatientInfo           `json:"patient_info"`
			Records     map[string]interface{} `json:"records"`
		}
		if err := json.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f.Name(), err)
		}

		if doc.PatientInfo != nil && result.PatientInfo == nil {
			result.PatientInfo = doc.PatientInfo
		}
		if !contains(hospitals, doc.Hospital) {
			continue
		}

		for _, category := range sortedKeys(doc.Records) {
			if !containsFold(categories, category) {
				continue
			}
			result.Records = append(result.Records, Normalize(doc.Hospital, category, doc.Records[category], f.Name()))
		}
	}
	return result, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
