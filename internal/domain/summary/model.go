package summary

import (
	"time"

	"github.com/medagg/medagg/internal/domain/record"
)

// Disclaimer is attached to every synthesized summary and is never delegated
// to the narrative service.
const Disclaimer = "DISCLAIMER: This is informational only, not medical advice. AI summaries may be inaccurate. Always verify with original records and consult your healthcare provider."

// Summary maps to the summaries table. A patient has at most one stored
// summary; regenerating replaces it.
type Summary struct {
	ID               int64            `db:"id" json:"id"`
	PatientID        int64            `db:"patient_id" json:"patient_id"`
	ClinicianSummary string           `db:"clinician_summary" json:"clinician_summary"`
	PatientSummary   string           `db:"patient_summary" json:"patient_summary"`
	Anomalies        []record.Anomaly `db:"anomalies" json:"anomalies"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}
