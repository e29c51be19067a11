package summary

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medagg/medagg/internal/domain/record"
	"github.com/medagg/medagg/internal/platform/narrative"
)

type mockNarrator struct {
	result  *narrative.Result
	err     error
	called  bool
	gotText string
}

func (m *mockNarrator) GenerateSummaries(_ context.Context, recordsText string) (*narrative.Result, error) {
	m.called = true
	m.gotText = recordsText
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func summaryRecord(category, hospital string, entries ...record.Entry) *record.Record {
	return &record.Record{
		Hospital: hospital,
		Category: category,
		Data:     record.Payload{Entries: entries},
	}
}

func flaggedRecords() []*record.Record {
	return []*record.Record{
		summaryRecord("vitals", "Hospital A",
			record.Entry{"date": "2024-01-15", "blood_pressure": "120/80", "bmi": 31.2},
			record.Entry{"date": "2024-02-20", "blood_pressure": "142/90", "bmi": 30.8},
		),
		summaryRecord("labs", "Hospital A",
			record.Entry{"date": "2024-01-20", "a1c": 7.1, "total_cholesterol": 250.0},
		),
		summaryRecord("meds", "Hospital A",
			record.Entry{"date": "2023-11-02", "medication": "Lisinopril"},
			record.Entry{"date": "2024-01-15", "name": "Metformin"},
			record.Entry{"date": "2024-02-01", "medication": "Lisinopril"},
		),
		summaryRecord("encounters", "Hospital A",
			record.Entry{"date": "2024-01-15", "type": "office visit"},
			record.Entry{"date": "2024-02-20", "type": "urgent care"},
		),
	}
}

func TestSynthesize_EmptyRecords(t *testing.T) {
	narrator := &mockNarrator{}
	synth := NewSynthesizer(narrator, zerolog.Nop())

	result := synth.Synthesize(context.Background(), nil)
	if result.ClinicianSummary != "No medical records available for analysis." {
		t.Errorf("unexpected clinician summary: %s", result.ClinicianSummary)
	}
	if result.PatientSummary != "No medical records have been loaded yet." {
		t.Errorf("unexpected patient summary: %s", result.PatientSummary)
	}
	if result.Anomalies == nil || len(result.Anomalies) != 0 {
		t.Errorf("expected empty anomalies, got %v", result.Anomalies)
	}
	if result.Disclaimer != Disclaimer {
		t.Error("expected disclaimer attached")
	}
	if narrator.called {
		t.Error("expected the narrator skipped for an empty record set")
	}
}

func TestSynthesize_NarratorSuccess(t *testing.T) {
	narrator := &mockNarrator{result: &narrative.Result{
		ClinicianSummary: "clinician text",
		PatientSummary:   "patient text",
		Anomalies:        []narrative.Anomaly{{Type: "outlier", Description: "model finding", Severity: "low"}},
	}}
	synth := NewSynthesizer(narrator, zerolog.Nop())

	result := synth.Synthesize(context.Background(), flaggedRecords())
	if !narrator.called {
		t.Fatal("expected the narrator called")
	}
	if result.ClinicianSummary != "clinician text" || result.PatientSummary != "patient text" {
		t.Errorf("expected narrator output kept, got %+v", result)
	}
	if len(result.Anomalies) != 1 || result.Anomalies[0].Description != "model finding" {
		t.Errorf("unexpected anomalies: %+v", result.Anomalies)
	}
	if result.Anomalies[0].Origin != nil {
		t.Error("narrator anomalies carry no origin entry")
	}
	if result.Disclaimer != Disclaimer {
		t.Error("expected the fixed disclaimer, not a narrator-provided one")
	}
	if !strings.Contains(narrator.gotText, "Hospital: Hospital A") {
		t.Errorf("expected formatted records sent to the narrator, got %q", narrator.gotText)
	}
}

func TestSynthesize_NarratorFailureFallsBack(t *testing.T) {
	narrator := &mockNarrator{err: fmt.Errorf("connection refused")}
	synth := NewSynthesizer(narrator, zerolog.Nop())

	result := synth.Synthesize(context.Background(), flaggedRecords())
	if !narrator.called {
		t.Fatal("expected the narrator tried first")
	}
	if !strings.HasPrefix(result.ClinicianSummary, "• ALERT:") {
		t.Errorf("expected deterministic output after narrator failure, got %q", result.ClinicianSummary)
	}
	if result.Disclaimer != Disclaimer {
		t.Error("expected disclaimer attached")
	}
}

func TestSynthesize_DeterministicOutput(t *testing.T) {
	synth := NewSynthesizer(nil, zerolog.Nop())

	result := synth.Synthesize(context.Background(), flaggedRecords())

	wantClinician := strings.Join([]string{
		"• ALERT: 1 high-severity anomaly/anomalies detected",
		"• Latest BP: 142/90",
		"• Latest BMI: 30.8",
		"• Latest A1C: 7.1%",
		"• Latest Total Cholesterol: 250 mg/dL",
		"• Current medications: Lisinopril, Metformin",
		"• Total encounters on file: 2",
	}, "\n")
	if result.ClinicianSummary != wantClinician {
		t.Errorf("unexpected clinician summary:\ngot:\n%s\nwant:\n%s", result.ClinicianSummary, wantClinician)
	}

	wantPatient := "Your vital signs have been recorded from your hospital visits. " +
		"Lab results including blood sugar and cholesterol tests are on file. " +
		"Your medication history shows 3 medication entries. " +
		"We have records of 2 healthcare visits. " +
		"Note: 3 item(s) were flagged for review by your healthcare provider."
	if result.PatientSummary != wantPatient {
		t.Errorf("unexpected patient summary:\ngot:\n%s\nwant:\n%s", result.PatientSummary, wantPatient)
	}

	if len(result.Anomalies) != 3 {
		t.Fatalf("expected 3 health flags, got %d: %+v", len(result.Anomalies), result.Anomalies)
	}
	for _, a := range result.Anomalies {
		if a.Type != record.AnomalyHealthFlag {
			t.Errorf("unexpected anomaly type %s", a.Type)
		}
	}
}

func TestSynthesize_DeterministicIncludesDetectorFindings(t *testing.T) {
	synth := NewSynthesizer(nil, zerolog.Nop())

	records := []*record.Record{
		summaryRecord("vitals", "Hospital A",
			record.Entry{"date": "2024-01-15", "bmi": 25.0},
			record.Entry{"date": "2024-01-15", "bmi": 25.0},
		),
	}
	result := synth.Synthesize(context.Background(), records)
	if len(result.Anomalies) != 1 || result.Anomalies[0].Type != record.AnomalyDuplicate {
		t.Fatalf("expected the detector's duplicate finding, got %+v", result.Anomalies)
	}
	if !strings.Contains(result.PatientSummary, "Note: 1 item(s) were flagged for review") {
		t.Errorf("expected the flagged item count in the patient summary, got %q", result.PatientSummary)
	}
}

func TestSynthesize_DuplicateKeyIncludesHospital(t *testing.T) {
	synth := NewSynthesizer(nil, zerolog.Nop())

	records := []*record.Record{
		summaryRecord("vitals", "Hospital A", record.Entry{"date": "2024-01-15", "bmi": 25.0}),
		summaryRecord("vitals", "Hospital B", record.Entry{"date": "2024-01-15", "bmi": 25.0}),
	}
	result := synth.Synthesize(context.Background(), records)
	for _, a := range result.Anomalies {
		if a.Type == record.AnomalyDuplicate {
			t.Errorf("same-day entries from different hospitals are not duplicates: %+v", a)
		}
	}
}

func TestSynthesize_NoFindings(t *testing.T) {
	synth := NewSynthesizer(nil, zerolog.Nop())

	records := []*record.Record{
		summaryRecord("imaging", "Hospital A", record.Entry{"date": "2024-01-15", "study": "chest x-ray"}),
	}
	result := synth.Synthesize(context.Background(), records)
	if result.ClinicianSummary != "No significant clinical findings." {
		t.Errorf("unexpected clinician summary: %q", result.ClinicianSummary)
	}
	if result.PatientSummary != "No medical records have been analyzed yet." {
		t.Errorf("unexpected patient summary: %q", result.PatientSummary)
	}
}

func TestSynthesize_MedicationNamesCapped(t *testing.T) {
	synth := NewSynthesizer(nil, zerolog.Nop())

	entries := make([]record.Entry, 0, 7)
	for i := 1; i <= 7; i++ {
		entries = append(entries, record.Entry{
			"date":       fmt.Sprintf("2024-01-%02d", i),
			"medication": fmt.Sprintf("Drug%d", i),
		})
	}
	records := []*record.Record{summaryRecord("meds", "Hospital A", entries...)}

	result := synth.Synthesize(context.Background(), records)
	want := "• Current medications: Drug1, Drug2, Drug3, Drug4, Drug5"
	if !strings.Contains(result.ClinicianSummary, want) {
		t.Errorf("expected the first five names, got %q", result.ClinicianSummary)
	}
}

func TestSynthesize_MedicationsAliasGrouped(t *testing.T) {
	synth := NewSynthesizer(nil, zerolog.Nop())

	records := []*record.Record{
		summaryRecord("medications", "Hospital B", record.Entry{"date": "2024-02-05", "name": "Metformin"}),
	}
	result := synth.Synthesize(context.Background(), records)
	if !strings.Contains(result.ClinicianSummary, "Current medications: Metformin") {
		t.Errorf("expected the medications alias grouped with meds, got %q", result.ClinicianSummary)
	}
}

func TestFormatRecords(t *testing.T) {
	records := []*record.Record{
		summaryRecord("labs", "Hospital A", record.Entry{"a1c": 5.5}),
		summaryRecord("vitals", "Hospital B", record.Entry{"bmi": 25.0}),
	}

	text := FormatRecords(records)
	if !strings.Contains(text, "Hospital: Hospital A\nCategory: labs\nData: {") {
		t.Errorf("unexpected block format:\n%s", text)
	}
	if !strings.Contains(text, "\n---\n") {
		t.Error("expected blocks joined with a separator line")
	}
	if !strings.Contains(text, `"a1c": 5.5`) {
		t.Error("expected indented JSON data in the block")
	}
}
