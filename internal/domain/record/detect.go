package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Severity levels assigned to anomalies.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Anomaly types.
const (
	AnomalyDuplicate   = "duplicate"
	AnomalyMissingDate = "missing_date"
	AnomalyOutlier     = "outlier"
	AnomalyHealthFlag  = "health_flag"
)

// Anomaly is a single data quality or health finding. Origin carries the
// entry that triggered an entry-level finding; population-level health flags
// have none.
type Anomaly struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Origin      Entry  `json:"record,omitempty"`
}

type dupeKey struct {
	category string
	date     string
	hospital string
}

// Detect scans a patient's canonical records for duplicate entries, missing
// dates, and out-of-range values. Rules apply independently and cumulatively,
// so one entry can trigger several anomalies. Entries are processed in stored
// record order, which defines which occurrence of a duplicate key counts as
// the first. Absent or non-numeric values are skipped, never coerced.
func Detect(records []*Record) []Anomaly {
	anomalies := []Anomaly{}

	seen := make(map[dupeKey]bool)
	for _, r := range records {
		for _, e := range r.Data.Entries {
			date, ok := e.Date()
			if !ok {
				continue
			}
			key := dupeKey{category: r.Category, date: date, hospital: r.Hospital}
			if seen[key] {
				anomalies = append(anomalies, Anomaly{
					Type:        AnomalyDuplicate,
					Description: fmt.Sprintf("Duplicate %s entry from %s on %s", r.Category, r.Hospital, date),
					Severity:    SeverityLow,
					Origin:      e,
				})
			}
			seen[key] = true
		}
	}

	for _, r := range records {
		for _, e := range r.Data.Entries {
			if _, ok := e.Date(); !ok {
				anomalies = append(anomalies, Anomaly{
					Type:        AnomalyMissingDate,
					Description: fmt.Sprintf("Missing date in %s record from %s", r.Category, r.Hospital),
					Severity:    SeverityMedium,
					Origin:      e,
				})
			}
		}
	}

	for _, r := range records {
		for _, e := range r.Data.Entries {
			switch r.Category {
			case "vitals":
				if bmi, ok := e.Metric("bmi"); ok && (bmi < 10 || bmi > 60) {
					anomalies = append(anomalies, Anomaly{
						Type:        AnomalyOutlier,
						Description: fmt.Sprintf("Unusual BMI value (%s) from %s", FormatNumber(bmi), r.Hospital),
						Severity:    SeverityHigh,
						Origin:      e,
					})
				}
				if bp, ok := e.Text("blood_pressure"); ok {
					if systolic, ok := parseSystolic(bp); ok && (systolic > 200 || systolic < 70) {
						anomalies = append(anomalies, Anomaly{
							Type:        AnomalyOutlier,
							Description: fmt.Sprintf("Unusual blood pressure (%s) from %s", bp, r.Hospital),
							Severity:    SeverityHigh,
							Origin:      e,
						})
					}
				}
			case "labs":
				if a1c, ok := e.Metric("a1c"); ok && (a1c < 3 || a1c > 15) {
					anomalies = append(anomalies, Anomaly{
						Type:        AnomalyOutlier,
						Description: fmt.Sprintf("Unusual A1C value (%s%%) from %s", FormatNumber(a1c), r.Hospital),
						Severity:    SeverityHigh,
						Origin:      e,
					})
				}
				if chol, ok := e.Metric("total_cholesterol"); ok && (chol < 50 || chol > 500) {
					anomalies = append(anomalies, Anomaly{
						Type:        AnomalyOutlier,
						Description: fmt.Sprintf("Unusual cholesterol value (%s mg/dL) from %s", FormatNumber(chol), r.Hospital),
						Severity:    SeverityHigh,
						Origin:      e,
					})
				}
			}
		}
	}

	return anomalies
}

// parseSystolic extracts the systolic component from a "systolic/diastolic"
// blood pressure string. Non-parseable input is reported as absent, not an
// error.
func parseSystolic(bp string) (int, bool) {
	first := strings.SplitN(bp, "/", 2)[0]
	n, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, false
	}
	return n, true
}
