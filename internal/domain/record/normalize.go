package record

import "math"

// dateAliases are alternate field names hospitals use for the entry date, in
// priority order.
var dateAliases = []string{"recorded_date", "test_date", "encounter_date", "start_date"}

// Normalize reshapes one hospital's raw category payload into a canonical
// Record. The payload may be a single object, an array of objects, or an
// object wrapping an entries array; that union is resolved here and never
// propagates past normalization. Entries that are not objects are dropped.
func Normalize(hospital, category string, payload interface{}, sourceFile string) *Record {
	canonical := CanonicalCategory(category)

	var rawEntries []interface{}
	switch data := payload.(type) {
	case []interface{}:
		rawEntries = data
	case map[string]interface{}:
		if wrapped, found := data["entries"]; found {
			rawEntries, _ = wrapped.([]interface{})
		} else {
			rawEntries = []interface{}{data}
		}
	}

	entries := make([]Entry, 0, len(rawEntries))
	for _, raw := range rawEntries {
		fields, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		entries = append(entries, normalizeEntry(fields, canonical))
	}

	var src *string
	if sourceFile != "" {
		src = &sourceFile
	}
	return &Record{
		Hospital:   hospital,
		Category:   canonical,
		Data:       Payload{Entries: entries},
		SourceFile: src,
	}
}

// normalizeEntry fills canonical fields an entry is missing. Existing values
// are never overwritten and source fields are retained, not renamed.
func normalizeEntry(fields map[string]interface{}, category string) Entry {
	entry := make(Entry, len(fields)+1)
	for k, v := range fields {
		entry[k] = v
	}

	if _, ok := entry["date"]; !ok {
		for _, alias := range dateAliases {
			if v, found := entry[alias]; found {
				entry["date"] = v
				break
			}
		}
	}

	if category == "vitals" {
		if _, ok := entry["bmi"]; !ok {
			weight, wok := entry.Number("weight_lbs")
			height, hok := entry.Number("height_inches")
			if wok && hok && height > 0 {
				entry["bmi"] = math.Round(weight/(height*height)*703*10) / 10
			}
		}
	}

	if category == "labs" {
		if _, ok := entry["a1c"]; !ok {
			if v, found := entry["hemoglobin_a1c"]; found {
				entry["a1c"] = v
			}
		}
		if _, ok := entry["total_cholesterol"]; !ok {
			if v, found := entry["cholesterol_total"]; found {
				entry["total_cholesterol"] = v
			}
		}
	}

	return entry
}
