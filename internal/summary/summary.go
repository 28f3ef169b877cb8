// internal/summary/summary.go
// Package summary renders a run's markdown summary artifact. The output is a
// pure function of the run record so regenerating it never churns bytes on
// disk.
package summary

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sndlab/sndbench/internal/modelinfo"
	"github.com/sndlab/sndbench/internal/runrecord"
	"github.com/sndlab/sndbench/internal/tracking"
	"github.com/sndlab/sndbench/internal/util"
)

// Render builds the markdown summary for a run. A non-empty tracking ref adds
// a section linking the remote run.
func Render(rec *runrecord.RunRecord, ref *tracking.Ref) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Benchmark Summary - %s\n", orUnknown(rec.RunID))
	fmt.Fprintf(&b, "\n**Timestamp:** %s\n", orUnknown(rec.Timestamp))
	fmt.Fprintf(&b, "\n## Model: %s\n", orUnknown(rec.Model.Name))
	if rec.Model.Size != "" {
		if _, label := modelinfo.NormalizeSize(rec.Model.Size); label != modelinfo.UnknownLabel {
			fmt.Fprintf(&b, "\n**Size:** %s\n", label)
		}
	}

	if len(rec.Results) > 0 {
		b.WriteString("\n## Results Overview\n")
		fmt.Fprintf(&b, "- **Tasks evaluated:** %d\n", len(rec.Results))
		fmt.Fprintf(&b, "- **Average accuracy:** %.4f\n", rec.AverageAccuracy)

		b.WriteString("\n### Task Performance\n")
		for _, task := range sortedTasks(rec.Results) {
			result := rec.Results[task]
			fmt.Fprintf(&b, "- **%s:** %.4f (±%.4f)\n",
				task, floatOrZero(result.Accuracy), floatOrZero(result.Stderr))
		}
	}

	if ref != nil && ref.URL != "" {
		b.WriteString("\n## Experiment Tracking\n")
		fmt.Fprintf(&b, "- **Run:** [%s](%s)\n", ref.Name, ref.URL)
	}

	if best, worst, ok := extremes(rec.Results); ok {
		b.WriteString("\n## Key Insights\n")
		fmt.Fprintf(&b, "- **Best performance:** %s (%.4f)\n",
			best, floatOrZero(rec.Results[best].Accuracy))
		fmt.Fprintf(&b, "- **Needs improvement:** %s (%.4f)\n",
			worst, floatOrZero(rec.Results[worst].Accuracy))
	}

	fmt.Fprintf(&b, "\n## Hardware Profile: %s\n", orUnknown(rec.HardwareProfile))

	return b.String()
}

// Write renders the summary and stores it next to the run's other artifacts.
func Write(runsDir string, rec *runrecord.RunRecord, ref *tracking.Ref) error {
	path := filepath.Join(runsDir, rec.RunID, runrecord.SummaryArtifactName)
	if err := util.WriteFileAtomic(path, []byte(Render(rec, ref))); err != nil {
		return fmt.Errorf("write summary for %s: %w", rec.RunID, err)
	}
	return nil
}

func sortedTasks(results map[string]runrecord.TaskResult) []string {
	tasks := make([]string, 0, len(results))
	for task := range results {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	return tasks
}

// extremes picks the best and worst performing tasks by accuracy. Ties break
// on task name so the rendered summary is stable.
func extremes(results map[string]runrecord.TaskResult) (best, worst string, ok bool) {
	for _, task := range sortedTasks(results) {
		accuracy := floatOrZero(results[task].Accuracy)
		if best == "" || accuracy > floatOrZero(results[best].Accuracy) {
			best = task
		}
		if worst == "" || accuracy < floatOrZero(results[worst].Accuracy) {
			worst = task
		}
	}
	return best, worst, best != ""
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
