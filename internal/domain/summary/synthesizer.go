package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medagg/medagg/internal/domain/record"
	"github.com/medagg/medagg/internal/platform/narrative"
)

// Narrator produces summaries through an external narrative service.
type Narrator interface {
	GenerateSummaries(ctx context.Context, recordsText string) (*narrative.Result, error)
}

// Result is a complete synthesized summary before persistence.
type Result struct {
	ClinicianSummary string           `json:"clinician_summary"`
	PatientSummary   string           `json:"patient_summary"`
	Anomalies        []record.Anomaly `json:"anomalies"`
	Disclaimer       string           `json:"disclaimer"`
}

// Synthesizer turns a patient's canonical records into clinician and patient
// narratives. When a narrator is configured it is tried first; any narrator
// failure falls back to the deterministic analysis, so synthesis itself never
// fails.
type Synthesizer struct {
	narrator Narrator
	logger   zerolog.Logger
}

// NewSynthesizer builds a synthesizer. A nil narrator means deterministic
// synthesis only.
func NewSynthesizer(narrator Narrator, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{narrator: narrator, logger: logger}
}

func (s *Synthesizer) Synthesize(ctx context.Context, records []*record.Record) *Result {
	if len(records) == 0 {
		return &Result{
			ClinicianSummary: "No medical records available for analysis.",
			PatientSummary:   "No medical records have been loaded yet.",
			Anomalies:        []record.Anomaly{},
			Disclaimer:       Disclaimer,
		}
	}

	if s.narrator != nil {
		res, err := s.narrator.GenerateSummaries(ctx, FormatRecords(records))
		if err == nil {
			return &Result{
				ClinicianSummary: res.ClinicianSummary,
				PatientSummary:   res.PatientSummary,
				Anomalies:        fromNarrative(res.Anomalies),
				Disclaimer:       Disclaimer,
			}
		}
		s.logger.Warn().Err(err).Msg("narrative synthesis failed, using deterministic summary")
	}

	return s.deterministic(records)
}

// FormatRecords renders canonical records as the text block sent to the
// narrative service.
func FormatRecords(records []*record.Record) string {
	formatted := make([]string, 0, len(records))
	for _, r := range records {
		data, err := json.MarshalIndent(r.Data, "", "  ")
		if err != nil {
			data = []byte("{}")
		}
		formatted = append(formatted, fmt.Sprintf("Hospital: %s\nCategory: %s\nData: %s\n", r.Hospital, r.Category, data))
	}
	return strings.Join(formatted, "\n---\n")
}

// deterministic analyzes the records without any external service. Its
// anomaly list is the detector's findings with population-level health flags
// appended, and a high-severity alert leads the clinician summary so it is
// never buried under routine findings.
func (s *Synthesizer) deterministic(records []*record.Record) *Result {
	grouped := groupEntries(records)
	vitals := grouped["vitals"]
	labs := grouped["labs"]
	meds := grouped["meds"]
	encounters := grouped["encounters"]

	anomalies := record.Detect(records)
	anomalies = append(anomalies, healthFlags(vitals, labs)...)

	highCount := 0
	for _, a := range anomalies {
		if a.Severity == record.SeverityHigh {
			highCount++
		}
	}

	var bullets []string
	if highCount > 0 {
		bullets = append(bullets, fmt.Sprintf("ALERT: %d high-severity anomaly/anomalies detected", highCount))
	}
	if latest, ok := latestValue(vitals, "blood_pressure"); ok {
		bullets = append(bullets, "Latest BP: "+latest)
	}
	if latest, ok := latestValue(vitals, "bmi"); ok {
		bullets = append(bullets, "Latest BMI: "+latest)
	}
	if latest, ok := latestValue(labs, "a1c"); ok {
		bullets = append(bullets, "Latest A1C: "+latest+"%")
	}
	if latest, ok := latestValue(labs, "total_cholesterol"); ok {
		bullets = append(bullets, "Latest Total Cholesterol: "+latest+" mg/dL")
	}
	if len(meds) > 0 {
		bullets = append(bullets, "Current medications: "+strings.Join(medicationNames(meds, 5), ", "))
	}
	if len(encounters) > 0 {
		bullets = append(bullets, fmt.Sprintf("Total encounters on file: %d", len(encounters)))
	}

	clinician := "No significant clinical findings."
	if len(bullets) > 0 {
		lines := make([]string, len(bullets))
		for i, b := range bullets {
			lines[i] = "• " + b
		}
		clinician = strings.Join(lines, "\n")
	}

	var parts []string
	if len(vitals) > 0 {
		parts = append(parts, "Your vital signs have been recorded from your hospital visits.")
	}
	if len(labs) > 0 {
		parts = append(parts, "Lab results including blood sugar and cholesterol tests are on file.")
	}
	if len(meds) > 0 {
		parts = append(parts, fmt.Sprintf("Your medication history shows %d medication entries.", len(meds)))
	}
	if len(encounters) > 0 {
		parts = append(parts, fmt.Sprintf("We have records of %d healthcare visits.", len(encounters)))
	}
	if len(anomalies) > 0 {
		parts = append(parts, fmt.Sprintf("Note: %d item(s) were flagged for review by your healthcare provider.", len(anomalies)))
	}

	patientSummary := "No medical records have been analyzed yet."
	if len(parts) > 0 {
		patientSummary = strings.Join(parts, " ")
	}

	return &Result{
		ClinicianSummary: clinician,
		PatientSummary:   patientSummary,
		Anomalies:        anomalies,
		Disclaimer:       Disclaimer,
	}
}

// groupEntries flattens record payloads into per-category entry lists,
// resolving the medications alias.
func groupEntries(records []*record.Record) map[string][]record.Entry {
	grouped := make(map[string][]record.Entry)
	for _, r := range records {
		category := record.CanonicalCategory(r.Category)
		grouped[category] = append(grouped[category], r.Data.Entries...)
	}
	return grouped
}

// latestValue scans entries newest-last and renders the most recent usable
// value of the field.
func latestValue(entries []record.Entry, field string) (string, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if s, ok := entries[i].Text(field); ok {
			return s, true
		}
		if n, ok := entries[i].Metric(field); ok {
			return record.FormatNumber(n), true
		}
	}
	return "", false
}

func healthFlags(vitals, labs []record.Entry) []record.Anomaly {
	var flags []record.Anomaly

	if anyMetric(vitals, "bmi", func(v float64) bool { return v > 30 }) {
		flags = append(flags, record.Anomaly{
			Type:        record.AnomalyHealthFlag,
			Description: "BMI above 30 detected, indicating obesity classification",
			Severity:    record.SeverityMedium,
		})
	}
	if anyMetric(vitals, "bmi", func(v float64) bool { return v < 18.5 }) {
		flags = append(flags, record.Anomaly{
			Type:        record.AnomalyHealthFlag,
			Description: "BMI below 18.5 detected, indicating underweight classification",
			Severity:    record.SeverityMedium,
		})
	}
	if anyMetric(labs, "a1c", func(v float64) bool { return v > 6.5 }) {
		flags = append(flags, record.Anomaly{
			Type:        record.AnomalyHealthFlag,
			Description: "A1C above 6.5% detected, may indicate diabetes",
			Severity:    record.SeverityHigh,
		})
	}
	if anyMetric(labs, "total_cholesterol", func(v float64) bool { return v > 240 }) {
		flags = append(flags, record.Anomaly{
			Type:        record.AnomalyHealthFlag,
			Description: "Total cholesterol above 240 mg/dL detected (high)",
			Severity:    record.SeverityMedium,
		})
	}
	return flags
}

func anyMetric(entries []record.Entry, field string, match func(float64) bool) bool {
	for _, e := range entries {
		if v, ok := e.Metric(field); ok && match(v) {
			return true
		}
	}
	return false
}

// medicationNames returns distinct medication names in first-seen order,
// capped at limit.
func medicationNames(meds []record.Entry, limit int) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, m := range meds {
		name := "Unknown"
		if s, ok := m.Text("medication"); ok {
			name = s
		} else if s, ok := m.Text("name"); ok {
			name = s
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
		if len(names) == limit {
			break
		}
	}
	return names
}

func fromNarrative(anomalies []narrative.Anomaly) []record.Anomaly {
	converted := make([]record.Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		converted = append(converted, record.Anomaly{
			Type:        a.Type,
			Description: a.Description,
			Severity:    a.Severity,
		})
	}
	return converted
}
