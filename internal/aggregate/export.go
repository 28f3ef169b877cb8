// internal/aggregate/export.go
package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ExportCSV writes the run index as CSV, one row per run, newest first.
func ExportCSV(w io.Writer, index Index) error {
	writer := csv.NewWriter(w)

	header := []string{"Run ID", "Model", "Timestamp", "Average Accuracy", "Tasks", "Task Count", "Has Summary", "Has Tracking Ref"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, run := range index.Runs {
		row := []string{
			run.RunID,
			run.Model,
			run.Timestamp,
			strconv.FormatFloat(run.AverageAccuracy, 'f', 4, 64),
			strings.Join(run.Tasks, ", "),
			strconv.Itoa(len(run.Tasks)),
			strconv.FormatBool(run.HasSummary),
			strconv.FormatBool(run.HasTrackingRef),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", run.RunID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
