package record

import "sort"

// Point is one dated metric observation used for charting.
type Point struct {
	Date     string  `json:"date"`
	Value    float64 `json:"value"`
	Hospital string  `json:"hospital"`
}

// ChartData groups per-metric series for the three tracked metrics. Series
// are sorted by date as strings; sources are expected to supply ISO-8601
// dates, so lexicographic order is chronological order. That is a documented
// limitation of the format, not of the extractor.
type ChartData struct {
	BMI         []Point `json:"bmi"`
	Cholesterol []Point `json:"cholesterol"`
	A1C         []Point `json:"a1c"`
}

// ExtractChartData projects canonical records into date-sorted series for
// BMI, total cholesterol, and A1C. An entry missing a metric is excluded
// from that series only. The sort is stable, so equal dates keep stored
// record order.
func ExtractChartData(records []*Record) ChartData {
	data := ChartData{BMI: []Point{}, Cholesterol: []Point{}, A1C: []Point{}}

	for _, r := range records {
		for _, e := range r.Data.Entries {
			date := e.chartDate()
			switch r.Category {
			case "vitals":
				if bmi, ok := e.Metric("bmi"); ok {
					data.BMI = append(data.BMI, Point{Date: date, Value: bmi, Hospital: r.Hospital})
				}
			case "labs":
				if chol, ok := e.Metric("total_cholesterol"); ok {
					data.Cholesterol = append(data.Cholesterol, Point{Date: date, Value: chol, Hospital: r.Hospital})
				}
				if a1c, ok := e.Metric("a1c"); ok {
					data.A1C = append(data.A1C, Point{Date: date, Value: a1c, Hospital: r.Hospital})
				}
			}
		}
	}

	sortPoints(data.BMI)
	sortPoints(data.Cholesterol)
	sortPoints(data.A1C)
	return data
}

func sortPoints(points []Point) {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date < points[j].Date })
}

// chartDate labels a point with the entry date, or "Unknown" when the entry
// has none.
func (e Entry) chartDate() string {
	v, ok := e["date"]
	if !ok {
		return "Unknown"
	}
	switch d := v.(type) {
	case string:
		return d
	case float64:
		return FormatNumber(d)
	}
	return "Unknown"
}
