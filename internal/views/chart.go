// internal/views/chart.go
package views

import "sort"

// TrendWindow is the number of most recent runs shown in the trend series.
const TrendWindow = 20

// TrendPoint is one point of the accuracy trend series.
type TrendPoint struct {
	RunID       string  `json:"run_id"`
	Timestamp   string  `json:"timestamp"`
	AccuracyPct float64 `json:"accuracy_pct"`
}

// TrendSeries projects the last TrendWindow runs, oldest first, to
// (timestamp, accuracy%) pairs. Rows are expected in index order
// (newest first).
func TrendSeries(rows []Row) []TrendPoint {
	window := rows
	if len(window) > TrendWindow {
		window = window[:TrendWindow]
	}

	points := make([]TrendPoint, 0, len(window))
	for i := len(window) - 1; i >= 0; i-- {
		row := window[i]
		points = append(points, TrendPoint{
			RunID:       row.RunID,
			Timestamp:   row.Timestamp,
			AccuracyPct: row.AverageAccuracy * 100,
		})
	}
	return points
}

// BarPoint is one bar of the per-model mean accuracy series.
type BarPoint struct {
	Label        string  `json:"label"`
	MeanAccuracy float64 `json:"mean_accuracy"`
	Runs         int     `json:"runs"`
}

// ModelBarSeries groups rows by short model name and yields each group's mean
// accuracy, sorted by label for a stable chart.
func ModelBarSeries(rows []Row) []BarPoint {
	type acc struct {
		sum   float64
		count int
	}
	groups := make(map[string]*acc)
	for _, row := range rows {
		group := groups[row.ShortName]
		if group == nil {
			group = &acc{}
			groups[row.ShortName] = group
		}
		group.sum += row.AverageAccuracy
		group.count++
	}

	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	points := make([]BarPoint, 0, len(labels))
	for _, label := range labels {
		group := groups[label]
		points = append(points, BarPoint{
			Label:        label,
			MeanAccuracy: group.sum / float64(group.count),
			Runs:         group.count,
		})
	}
	return points
}
