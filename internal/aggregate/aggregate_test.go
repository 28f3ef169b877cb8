package aggregate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeRun(t *testing.T, runsDir, runID, model, timestamp string, taskAccuracies map[string]float64) {
	t.Helper()
	dir := filepath.Join(runsDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var results []string
	var tasks []string
	for task, acc := range taskAccuracies {
		results = append(results, fmt.Sprintf("%q: {\"accuracy\": %v}", task, acc))
		tasks = append(tasks, fmt.Sprintf("%q", task))
	}
	payload := fmt.Sprintf(`{
		"run_id": %q,
		"timestamp": %q,
		"model": {"name": %q},
		"framework": "lm-eval",
		"tasks": [%s],
		"results": {%s}
	}`, runID, timestamp, model, strings.Join(tasks, ", "), strings.Join(results, ", "))

	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write run: %v", err)
	}
}

func TestPassOrdersNewestFirst(t *testing.T) {
	runsDir := t.TempDir()
	writeRun(t, runsDir, "run-a", "m1", "2025-01-10T08:00:00", map[string]float64{"arc_easy": 0.5})
	writeRun(t, runsDir, "run-b", "m1", "2025-01-12T08:00:00", map[string]float64{"arc_easy": 0.7})
	// Same instant as run-b: tie broken by run id descending.
	writeRun(t, runsDir, "run-c", "m2", "2025-01-12T08:00:00", map[string]float64{"arc_easy": 0.6})

	index, _, err := Pass(runsDir, Options{})
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}

	got := []string{index.Runs[0].RunID, index.Runs[1].RunID, index.Runs[2].RunID}
	want := []string{"run-c", "run-b", "run-a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestPassSkipsCorruptRun(t *testing.T) {
	runsDir := t.TempDir()
	writeRun(t, runsDir, "good-1", "m1", "2025-01-10T08:00:00", map[string]float64{"arc_easy": 0.5})
	writeRun(t, runsDir, "good-2", "m1", "2025-01-11T08:00:00", map[string]float64{"arc_easy": 0.6})

	corrupt := filepath.Join(runsDir, "bad-run")
	if err := os.MkdirAll(corrupt, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(corrupt, "data.json"), []byte("{unparsable"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}

	index, meta, err := Pass(runsDir, Options{})
	if err != nil {
		t.Fatalf("a corrupt run must not abort the pass: %v", err)
	}
	if index.TotalRuns != 2 || len(index.Runs) != 2 {
		t.Fatalf("expected exactly the 2 valid runs, got %d", index.TotalRuns)
	}
	if meta.TotalRuns != 2 {
		t.Fatalf("metadata total runs: %d", meta.TotalRuns)
	}
}

func TestPassEmptyCorpus(t *testing.T) {
	index, meta, err := Pass(filepath.Join(t.TempDir(), "does-not-exist"), Options{})
	if err != nil {
		t.Fatalf("empty corpus must succeed: %v", err)
	}
	if index.TotalRuns != 0 || meta.TotalRuns != 0 || meta.TotalModels != 0 {
		t.Fatalf("expected empty artifacts: %+v %+v", index, meta)
	}
	if meta.PerModel == nil || meta.Tasks == nil {
		t.Fatal("maps must be present (well-formed), not null")
	}
}

func TestBuildMetadataRollups(t *testing.T) {
	runsDir := t.TempDir()
	writeRun(t, runsDir, "r1", "m1", "2025-01-10T08:00:00", map[string]float64{"arc_easy": 0.9, "hellaswag": 0.5})
	writeRun(t, runsDir, "r2", "m1", "2025-01-11T08:00:00", map[string]float64{"arc_easy": 0.7, "hellaswag": 0.3})
	writeRun(t, runsDir, "r3", "m2", "2025-01-12T08:00:00", map[string]float64{"arc_easy": 0.4})

	_, meta, err := Pass(runsDir, Options{})
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}

	if meta.TotalRuns != 3 || meta.TotalModels != 2 {
		t.Fatalf("totals: %+v", meta)
	}

	m1 := meta.PerModel["m1"]
	if m1.Count != 2 {
		t.Fatalf("m1 count: %d", m1.Count)
	}
	// m1 run averages: (0.9+0.5)/2 = 0.7 and (0.7+0.3)/2 = 0.5.
	if m1.Mean != 0.6 {
		t.Fatalf("m1 mean: %v", m1.Mean)
	}
	if m1.BestTask != "arc_easy" || m1.WorstTask != "hellaswag" {
		t.Fatalf("m1 best/worst task: %q %q", m1.BestTask, m1.WorstTask)
	}
	if m1.BestRun == nil || m1.BestRun.RunID != "r1" {
		t.Fatalf("m1 best run: %+v", m1.BestRun)
	}
	if m1.WorstRun == nil || m1.WorstRun.RunID != "r2" {
		t.Fatalf("m1 worst run: %+v", m1.WorstRun)
	}

	arc := meta.Tasks["arc_easy"]
	if arc.Runs != 3 || arc.Models != 2 {
		t.Fatalf("arc_easy rollup: %+v", arc)
	}
	if arc.BestModel != "m1" || arc.WorstModel != "m2" {
		t.Fatalf("arc_easy best/worst model: %q %q", arc.BestModel, arc.WorstModel)
	}

	// Global average: mean of run averages (0.7 + 0.5 + 0.4) / 3.
	if meta.GlobalAverageAccuracy != 0.5333 {
		t.Fatalf("global average: %v", meta.GlobalAverageAccuracy)
	}
}

func TestPassIdempotentArtifacts(t *testing.T) {
	runsDir := t.TempDir()
	siteDir := t.TempDir()
	writeRun(t, runsDir, "r1", "m1", "2025-01-10T08:00:00", map[string]float64{"arc_easy": 0.5})
	writeRun(t, runsDir, "r2", "m2", "2025-01-11T08:00:00", map[string]float64{"hellaswag": 0.7})

	readBoth := func() ([]byte, []byte) {
		index, meta, err := Pass(runsDir, Options{})
		if err != nil {
			t.Fatalf("Pass: %v", err)
		}
		if err := WriteArtifacts(siteDir, index, meta); err != nil {
			t.Fatalf("WriteArtifacts: %v", err)
		}
		indexData, err := os.ReadFile(filepath.Join(siteDir, IndexArtifactName))
		if err != nil {
			t.Fatalf("read index: %v", err)
		}
		metaData, err := os.ReadFile(filepath.Join(siteDir, MetadataArtifactName))
		if err != nil {
			t.Fatalf("read metadata: %v", err)
		}
		return indexData, metaData
	}

	index1, meta1 := readBoth()
	index2, meta2 := readBoth()

	if !bytes.Equal(index1, index2) {
		t.Fatal("index artifact differs across passes over an unchanged corpus")
	}
	if !bytes.Equal(meta1, meta2) {
		t.Fatal("metadata artifact differs across passes over an unchanged corpus")
	}
}

func TestPassFilters(t *testing.T) {
	runsDir := t.TempDir()
	writeRun(t, runsDir, "r1", "meta-llama/Llama-3-8B", "2025-01-10T08:00:00", map[string]float64{"arc_easy": 0.9})
	writeRun(t, runsDir, "r2", "mistralai/Mistral-7B", "2025-01-11T08:00:00", map[string]float64{"hellaswag": 0.4})
	writeRun(t, runsDir, "r3", "mistralai/Mistral-7B", "2025-01-12T08:00:00", map[string]float64{"arc_easy": 0.6})

	index, _, err := Pass(runsDir, Options{ModelFilter: "mistral"})
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}
	if len(index.Runs) != 2 {
		t.Fatalf("model filter: got %d runs", len(index.Runs))
	}

	index, _, err = Pass(runsDir, Options{TaskFilter: "arc_easy"})
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}
	if len(index.Runs) != 2 {
		t.Fatalf("task filter: got %d runs", len(index.Runs))
	}

	minAcc := 0.5
	index, _, err = Pass(runsDir, Options{MinAccuracy: &minAcc})
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}
	if len(index.Runs) != 2 {
		t.Fatalf("min accuracy filter: got %d runs", len(index.Runs))
	}

	index, _, err = Pass(runsDir, Options{
		Start: time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 11, 23, 59, 59, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}
	if len(index.Runs) != 1 || index.Runs[0].RunID != "r2" {
		t.Fatalf("date filter: %+v", index.Runs)
	}
}

func TestExportCSV(t *testing.T) {
	index := Index{
		TotalRuns: 1,
		Runs: []IndexEntry{{
			RunID:           "r1",
			Timestamp:       "2025-01-10T08:00:00",
			Model:           "m1",
			AverageAccuracy: 0.5,
			Tasks:           []string{"arc_easy", "hellaswag"},
			HasSummary:      true,
		}},
	}

	var buf bytes.Buffer
	if err := ExportCSV(&buf, index); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "r1") || !strings.Contains(lines[1], "0.5000") {
		t.Fatalf("row content: %s", lines[1])
	}
	if !strings.Contains(lines[1], `"arc_easy, hellaswag"`) {
		t.Fatalf("tasks cell: %s", lines[1])
	}
}
