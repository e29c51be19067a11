package record

import (
	"strconv"
	"strings"
	"time"
)

// Entry is one canonical data point: a mapping of field name to scalar value,
// carrying a date and category-specific derived fields when derivable.
// Entries are never mutated after normalization.
type Entry map[string]interface{}

// Payload wraps the canonical entry list the way records are exchanged and
// stored: an object with a single entries array.
type Payload struct {
	Entries []Entry `json:"entries"`
}

// Record maps to the records table.
type Record struct {
	ID         int64     `db:"id" json:"id"`
	PatientID  int64     `db:"patient_id" json:"patient_id"`
	Hospital   string    `db:"hospital" json:"hospital"`
	Category   string    `db:"category" json:"category"`
	Data       Payload   `db:"data" json:"data"`
	SourceFile *string   `db:"source_file" json:"source_file"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Catalog is the set of hospitals and categories the pipeline recognizes.
// It is injected rather than hard-coded so deployments and tests can narrow
// or extend it.
type Catalog struct {
	Hospitals  []string
	Categories []string
}

func DefaultCatalog() Catalog {
	return Catalog{
		Hospitals:  []string{"Hospital A", "Hospital B", "Hospital C"},
		Categories: []string{"vitals", "labs", "meds", "medications", "encounters"},
	}
}

// KnownCategories returns the canonical category set after alias resolution.
// Share token scopes are validated against and defaulted to this set.
func KnownCategories() []string {
	return []string{"vitals", "labs", "meds", "encounters"}
}

// CanonicalCategory lower-cases a source category label and applies the
// medications alias.
func CanonicalCategory(label string) string {
	c := strings.ToLower(label)
	if c == "medications" {
		c = "meds"
	}
	return c
}

// Number returns the entry field as a float64 when it holds any numeric
// value, zero included.
func (e Entry) Number(field string) (float64, bool) {
	switch n := e[field].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Metric returns the entry field as a usable measurement. Zero and
// non-numeric values are treated as absent, matching how source systems emit
// unset readings.
func (e Entry) Metric(field string) (float64, bool) {
	n, ok := e.Number(field)
	if !ok || n == 0 {
		return 0, false
	}
	return n, true
}

// Text returns the entry field as a non-empty string.
func (e Entry) Text(field string) (string, bool) {
	s, ok := e[field].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Date returns the entry date rendered as a string. Empty, zero, and
// non-scalar values are treated as missing.
func (e Entry) Date() (string, bool) {
	v, ok := e["date"]
	if !ok {
		return "", false
	}
	switch d := v.(type) {
	case string:
		if d == "" {
			return "", false
		}
		return d, true
	case float64:
		if d == 0 {
			return "", false
		}
		return FormatNumber(d), true
	case int:
		if d == 0 {
			return "", false
		}
		return strconv.Itoa(d), true
	}
	return "", false
}

// FormatNumber renders a numeric field the way it appears in source
// documents, without a forced decimal point.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
