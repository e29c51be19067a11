package record

import (
	"strings"
	"testing"
)

func TestParseUpload_ValidDocument(t *testing.T) {
	content := []byte(`{
		"hospital": "Mercy General",
		"records": {
			"vitals": [{"date": "2024-05-01", "heart_rate": 68}],
			"labs": [{"test_date": "2024-05-02", "a1c": 5.5}]
		}
	}`)

	records, problems := ParseUpload(content, "export.json")
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Category != "labs" || records[1].Category != "vitals" {
		t.Errorf("expected sorted category order, got %s then %s", records[0].Category, records[1].Category)
	}
	for _, r := range records {
		if r.Hospital != "Mercy General" {
			t.Errorf("expected hospital carried onto record, got %s", r.Hospital)
		}
		if r.SourceFile == nil || *r.SourceFile != "export.json" {
			t.Errorf("expected source file recorded, got %v", r.SourceFile)
		}
	}
}

func TestParseUpload_DefaultsHospitalName(t *testing.T) {
	content := []byte(`{"records": {"vitals": []}}`)

	records, problems := ParseUpload(content, "export.json")
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if len(records) != 1 || records[0].Hospital != "Unknown Hospital" {
		t.Errorf("expected Unknown Hospital fallback, got %+v", records)
	}
}

func TestParseUpload_InvalidJSON(t *testing.T) {
	records, problems := ParseUpload([]byte(`{not json`), "export.json")
	if records != nil {
		t.Errorf("expected no records, got %d", len(records))
	}
	if len(problems) != 1 || !strings.HasPrefix(problems[0], "Invalid JSON format:") {
		t.Errorf("unexpected problems: %v", problems)
	}
}

func TestParseUpload_NotAnObject(t *testing.T) {
	_, problems := ParseUpload([]byte(`[1, 2, 3]`), "export.json")
	if len(problems) != 1 || problems[0] != "JSON must be an object with 'hospital' and 'records' fields" {
		t.Errorf("unexpected problems: %v", problems)
	}
}

func TestParseUpload_MissingRecordsField(t *testing.T) {
	_, problems := ParseUpload([]byte(`{"hospital": "Mercy General"}`), "export.json")
	if len(problems) != 1 || problems[0] != "Missing 'records' field in JSON" {
		t.Errorf("unexpected problems: %v", problems)
	}
}

func TestParseUpload_RecordsNotAnObject(t *testing.T) {
	_, problems := ParseUpload([]byte(`{"hospital": "Mercy General", "records": [1]}`), "export.json")
	if len(problems) != 1 || problems[0] != "'records' must be an object mapping category names to entries" {
		t.Errorf("unexpected problems: %v", problems)
	}
}

func TestValidationError_JoinsProblems(t *testing.T) {
	err := &ValidationError{Problems: []string{"first problem", "second problem"}}
	if err.Error() != "first problem; second problem" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
