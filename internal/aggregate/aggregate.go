// internal/aggregate/aggregate.go
// Package aggregate folds all run records into the two published artifacts:
// a compact run index for list views and corpus-wide metadata. Both are
// regenerated wholesale on every pass so they are always a pure function of
// the current set of run artifacts.
package aggregate

import (
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sndlab/sndbench/internal/logging"
	"github.com/sndlab/sndbench/internal/runrecord"
)

// Artifact file names under the site directory.
const (
	IndexArtifactName    = "runs-index.json"
	MetadataArtifactName = "metadata.json"
)

// IndexEntry is the lightweight projection of a RunRecord used by list views.
// The availability flags let the UI show placeholders without fetching the
// full record.
type IndexEntry struct {
	RunID           string   `json:"run_id"`
	Timestamp       string   `json:"timestamp"`
	Model           string   `json:"model"`
	AverageAccuracy float64  `json:"average_accuracy"`
	Tasks           []string `json:"tasks"`
	HasSummary      bool     `json:"has_summary"`
	HasTrackingRef  bool     `json:"has_tracking_ref"`
}

// Index is the ordered run index artifact: newest first, ties broken by
// run id descending.
type Index struct {
	TotalRuns int          `json:"total_runs"`
	Runs      []IndexEntry `json:"runs"`
}

// RunRef names a single run together with its headline accuracy.
type RunRef struct {
	RunID           string  `json:"run_id"`
	Timestamp       string  `json:"timestamp"`
	AverageAccuracy float64 `json:"average_accuracy"`
}

// ModelStats is the per-model rollup inside the metadata artifact.
type ModelStats struct {
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	BestTask  string  `json:"best_task,omitempty"`
	WorstTask string  `json:"worst_task,omitempty"`
	BestRun   *RunRef `json:"best_run,omitempty"`
	WorstRun  *RunRef `json:"worst_run,omitempty"`
}

// TaskStats is the per-task rollup inside the metadata artifact.
type TaskStats struct {
	Runs       int     `json:"runs"`
	Models     int     `json:"models"`
	Mean       float64 `json:"mean"`
	BestModel  string  `json:"best_model,omitempty"`
	WorstModel string  `json:"worst_model,omitempty"`
}

// Metadata is the corpus-wide statistics artifact.
type Metadata struct {
	TotalRuns             int                   `json:"total_runs"`
	TotalModels           int                   `json:"total_models"`
	GlobalAverageAccuracy float64               `json:"global_average_accuracy"`
	PerModel              map[string]ModelStats `json:"per_model"`
	Tasks                 map[string]TaskStats  `json:"tasks"`
}

// Options narrows an aggregation pass to a subset of the corpus. The zero
// value keeps every valid run.
type Options struct {
	ModelFilter string
	TaskFilter  string
	MinAccuracy *float64
	MaxAccuracy *float64
	Start       time.Time
	End         time.Time
}

func (o Options) keep(record runrecord.RunRecord) bool {
	if o.ModelFilter != "" &&
		!strings.Contains(strings.ToLower(record.Model.Name), strings.ToLower(o.ModelFilter)) {
		return false
	}
	if o.TaskFilter != "" {
		found := false
		for _, task := range record.Tasks {
			if task == o.TaskFilter {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if o.MinAccuracy != nil && record.AverageAccuracy < *o.MinAccuracy {
		return false
	}
	if o.MaxAccuracy != nil && record.AverageAccuracy > *o.MaxAccuracy {
		return false
	}
	if !o.Start.IsZero() || !o.End.IsZero() {
		at := record.Time()
		if at.IsZero() {
			logging.LogWarn("run %s has unparsable timestamp %q, excluded by date filter", record.RunID, record.Timestamp)
			return false
		}
		if !o.Start.IsZero() && at.Before(o.Start) {
			return false
		}
		if !o.End.IsZero() && at.After(o.End) {
			return false
		}
	}
	return true
}

// ListRunIDs enumerates run directories under runsDir in lexical order. A
// missing runs directory is an empty corpus, not an error.
func ListRunIDs(runsDir string) ([]string, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Pass runs one full aggregation pass over runsDir: load every reachable run,
// skip invalid ones with a logged warning, sort the survivors, and derive the
// index and metadata artifacts. A corrupt run never aborts the pass, and a
// pass over zero valid runs still yields an empty, well-formed pair.
func Pass(runsDir string, opts Options) (Index, Metadata, error) {
	ids, err := ListRunIDs(runsDir)
	if err != nil {
		return Index{}, Metadata{}, err
	}

	records := make([]runrecord.RunRecord, 0, len(ids))
	for _, id := range ids {
		record, err := runrecord.Load(runsDir, id)
		if err != nil {
			logging.LogWarn("skipping run %s: %v", id, err)
			continue
		}
		if !opts.keep(record) {
			continue
		}
		records = append(records, record)
	}

	SortRecords(records)
	return BuildIndex(records), BuildMetadata(records), nil
}

// SortRecords orders records by timestamp descending, ties broken by run id
// descending. Records with unparsable timestamps sort last.
func SortRecords(records []runrecord.RunRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, tj := records[i].Time(), records[j].Time()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return records[i].RunID > records[j].RunID
	})
}

// BuildIndex projects already-sorted records into the index artifact.
func BuildIndex(records []runrecord.RunRecord) Index {
	runs := make([]IndexEntry, 0, len(records))
	for _, record := range records {
		runs = append(runs, IndexEntry{
			RunID:           record.RunID,
			Timestamp:       record.Timestamp,
			Model:           record.Model.Name,
			AverageAccuracy: round4(record.AverageAccuracy),
			Tasks:           record.Tasks,
			HasSummary:      record.Summary != "",
			HasTrackingRef:  record.TrackingRef != "",
		})
	}
	return Index{TotalRuns: len(runs), Runs: runs}
}

// BuildMetadata computes corpus-wide statistics as a pure fold over the
// records. Ties in best/worst selections resolve to the lexically smaller
// name so repeated passes stay byte-identical.
func BuildMetadata(records []runrecord.RunRecord) Metadata {
	meta := Metadata{
		TotalRuns: len(records),
		PerModel:  make(map[string]ModelStats),
		Tasks:     make(map[string]TaskStats),
	}

	type modelAcc struct {
		accuracies []float64
		best       *RunRef
		worst      *RunRef
		perTask    map[string][]float64
	}
	type taskAcc struct {
		runs     int
		perModel map[string][]float64
	}

	models := make(map[string]*modelAcc)
	tasks := make(map[string]*taskAcc)
	var globalSum float64

	for _, record := range records {
		name := record.Model.Name
		acc := models[name]
		if acc == nil {
			acc = &modelAcc{perTask: make(map[string][]float64)}
			models[name] = acc
		}
		acc.accuracies = append(acc.accuracies, record.AverageAccuracy)
		globalSum += record.AverageAccuracy

		ref := RunRef{
			RunID:           record.RunID,
			Timestamp:       record.Timestamp,
			AverageAccuracy: round4(record.AverageAccuracy),
		}
		if acc.best == nil || record.AverageAccuracy > acc.best.AverageAccuracy {
			best := ref
			acc.best = &best
		}
		if acc.worst == nil || record.AverageAccuracy < acc.worst.AverageAccuracy {
			worst := ref
			acc.worst = &worst
		}

		for task, result := range record.Results {
			if result.Accuracy == nil {
				continue
			}
			acc.perTask[task] = append(acc.perTask[task], *result.Accuracy)
			tk := tasks[task]
			if tk == nil {
				tk = &taskAcc{perModel: make(map[string][]float64)}
				tasks[task] = tk
			}
			tk.runs++
			tk.perModel[name] = append(tk.perModel[name], *result.Accuracy)
		}
	}

	meta.TotalModels = len(models)
	if len(records) > 0 {
		meta.GlobalAverageAccuracy = round4(globalSum / float64(len(records)))
	}

	for name, acc := range models {
		stats := ModelStats{
			Count:    len(acc.accuracies),
			Mean:     round4(mean(acc.accuracies)),
			BestRun:  acc.best,
			WorstRun: acc.worst,
		}
		stats.BestTask, stats.WorstTask = extremeKeysByMean(acc.perTask)
		meta.PerModel[name] = stats
	}

	for name, tk := range tasks {
		stats := TaskStats{
			Runs:   tk.runs,
			Models: len(tk.perModel),
		}
		var all []float64
		for _, values := range tk.perModel {
			all = append(all, values...)
		}
		stats.Mean = round4(mean(all))
		stats.BestModel, stats.WorstModel = extremeKeysByMean(tk.perModel)
		meta.Tasks[name] = stats
	}

	return meta
}

// extremeKeysByMean returns the keys with the highest and lowest mean value,
// visiting keys in lexical order for deterministic tie-breaks.
func extremeKeysByMean(groups map[string][]float64) (best, worst string) {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	bestMean := math.Inf(-1)
	worstMean := math.Inf(1)
	for _, key := range keys {
		m := mean(groups[key])
		if m > bestMean {
			bestMean = m
			best = key
		}
		if m < worstMean {
			worstMean = m
			worst = key
		}
	}
	return best, worst
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
