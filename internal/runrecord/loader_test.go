package runrecord

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

const sampleArtifact = `{
	"run_id": "20250114_093045_lm-eval",
	"timestamp": "2025-01-14T09:30:45",
	"model": {"name": "meta-llama/Llama-3-8B", "path": "models/llama-3-8b-q4_k_m.gguf", "size": 4.7},
	"framework": "lm-eval",
	"hardware_profile": "rtx4090",
	"tasks": ["hellaswag", "arc_easy", "winogrande"],
	"results": {
		"hellaswag": {"acc,none": 0.82, "acc_stderr,none": 0.004},
		"arc_easy": {"accuracy": 0.91, "stderr": 0.003},
		"winogrande": {"acc": null, "note": "engine reported no score"}
	},
	"average_accuracy": 0.123,
	"completed": true,
	"future_field": {"nested": true}
}`

func writeArtifact(t *testing.T, runsDir, runID, payload string) {
	t.Helper()
	dir := filepath.Join(runsDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ArtifactName), []byte(payload), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}

func TestLoadRecomputesAverageAccuracy(t *testing.T) {
	runsDir := t.TempDir()
	writeArtifact(t, runsDir, "20250114_093045_lm-eval", sampleArtifact)

	record, err := Load(runsDir, "20250114_093045_lm-eval")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// The stored average (0.123) is never trusted; null accuracies are
	// excluded from the mean rather than counted as zero.
	want := (0.82 + 0.91) / 2
	if math.Abs(record.AverageAccuracy-want) > 1e-9 {
		t.Fatalf("average accuracy = %v, want %v", record.AverageAccuracy, want)
	}

	if record.Model.Size != "4.7" {
		t.Fatalf("numeric size not normalized: %q", record.Model.Size)
	}
	if record.Framework != FrameworkLMEval {
		t.Fatalf("framework: %q", record.Framework)
	}
	if len(record.Tasks) != 3 || record.Tasks[0] != "hellaswag" {
		t.Fatalf("tasks order lost: %v", record.Tasks)
	}
	if record.Results["winogrande"].Accuracy != nil {
		t.Fatal("null accuracy should stay nil")
	}
	if record.TrackingRef != "" || record.Summary != "" {
		t.Fatal("augmentations should be absent")
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	_, err := Load(t.TempDir(), "nonexistent")
	if !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("expected ErrMissingArtifact, got %v", err)
	}
}

func TestLoadMalformedArtifact(t *testing.T) {
	cases := map[string]string{
		"unparsable json": `{"run_id": "x",`,
		"missing run_id":  `{"timestamp": "2025-01-14T09:30:45", "model": {"name": "m"}, "results": {}}`,
		"missing model":   `{"run_id": "x", "timestamp": "2025-01-14T09:30:45", "results": {}}`,
		"duplicate task":  `{"run_id": "x", "timestamp": "2025-01-14T09:30:45", "model": {"name": "m"}, "tasks": ["a", "a"], "results": {"a": {}}}`,
		"empty tasks":     `{"run_id": "x", "timestamp": "2025-01-14T09:30:45", "model": {"name": "m"}, "results": {}}`,
		"bad framework":   `{"run_id": "x", "timestamp": "2025-01-14T09:30:45", "model": {"name": "m"}, "framework": "vllm", "results": {"a": {}}}`,
	}
	runsDir := t.TempDir()
	for name, payload := range cases {
		writeArtifact(t, runsDir, name, payload)
		if _, err := Load(runsDir, name); !errors.Is(err, ErrMalformedArtifact) {
			t.Fatalf("%s: expected ErrMalformedArtifact, got %v", name, err)
		}
	}
}

func TestLoadToleratesUnknownFields(t *testing.T) {
	runsDir := t.TempDir()
	writeArtifact(t, runsDir, "r1", `{
		"run_id": "r1",
		"timestamp": "2025-01-14T09:30:45",
		"model": {"name": "m", "quantized_by": "someone"},
		"results": {"arc_easy": {"accuracy": 0.5, "exotic_metric": [1, 2]}},
		"brand_new_top_level": 42
	}`)
	record, err := Load(runsDir, "r1")
	if err != nil {
		t.Fatalf("unknown fields must not fail the loader: %v", err)
	}
	if record.AverageAccuracy != 0.5 {
		t.Fatalf("average accuracy: %v", record.AverageAccuracy)
	}
	// Tasks derived from result keys when the artifact predates the field.
	if len(record.Tasks) != 1 || record.Tasks[0] != "arc_easy" {
		t.Fatalf("derived tasks: %v", record.Tasks)
	}
}

func TestLoadSideArtifacts(t *testing.T) {
	runsDir := t.TempDir()
	writeArtifact(t, runsDir, "r2", `{
		"run_id": "r2",
		"timestamp": "2025-01-14T09:30:45",
		"model": {"name": "m"},
		"results": {"arc_easy": {"accuracy": 0.5}}
	}`)
	runDir := filepath.Join(runsDir, "r2")
	if err := os.WriteFile(filepath.Join(runDir, SummaryArtifactName), []byte("# Benchmark Summary"), 0o644); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	tracking := `[{"name": "m-r2", "id": "abc123", "url": "https://wandb.ai/acme/llm-bench/runs/abc123"}]`
	if err := os.WriteFile(filepath.Join(runDir, TrackingArtifactName), []byte(tracking), 0o644); err != nil {
		t.Fatalf("write tracking: %v", err)
	}

	record, err := Load(runsDir, "r2")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if record.Summary != "# Benchmark Summary" {
		t.Fatalf("summary: %q", record.Summary)
	}
	if record.TrackingRef != "https://wandb.ai/acme/llm-bench/runs/abc123" {
		t.Fatalf("tracking ref: %q", record.TrackingRef)
	}
}

func TestAugmentAppendsWithoutRewriting(t *testing.T) {
	runsDir := t.TempDir()
	writeArtifact(t, runsDir, "r3", `{
		"run_id": "r3",
		"timestamp": "2025-01-14T09:30:45",
		"model": {"name": "m"},
		"results": {"arc_easy": {"accuracy": 0.5}},
		"summary": "original summary"
	}`)

	err := Augment(runsDir, "r3", map[string]any{
		"tracking_ref": "https://wandb.ai/acme/llm-bench/runs/xyz",
		"summary":      "replacement that must be ignored",
	})
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}

	record, err := Load(runsDir, "r3")
	if err != nil {
		t.Fatalf("Load after augment: %v", err)
	}
	if record.TrackingRef != "https://wandb.ai/acme/llm-bench/runs/xyz" {
		t.Fatalf("tracking ref not appended: %q", record.TrackingRef)
	}
	if record.Summary != "original summary" {
		t.Fatalf("prior field rewritten: %q", record.Summary)
	}
}

func TestComputeAverageAccuracyZeroDefined(t *testing.T) {
	results := map[string]TaskResult{
		"a": {},
		"b": {},
	}
	if got := ComputeAverageAccuracy(results); got != 0 {
		t.Fatalf("zero defined accuracies must average to 0, got %v", got)
	}
}

func TestParseFramework(t *testing.T) {
	for _, valid := range []string{"lm-eval", "llama-cpp", "custom"} {
		if _, err := ParseFramework(valid); err != nil {
			t.Fatalf("ParseFramework(%q): %v", valid, err)
		}
	}
	if _, err := ParseFramework("vllm"); err == nil {
		t.Fatal("expected error for unrecognized framework")
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	for _, ts := range []string{
		"2025-01-14T09:30:45.123456",
		"2025-01-14T09:30:45Z",
		"2025-01-14T09:30:45+09:00",
		"2025-01-14T09:30:45",
	} {
		if ParseTimestamp(ts).IsZero() {
			t.Fatalf("ParseTimestamp(%q) returned zero time", ts)
		}
	}
	if !ParseTimestamp("yesterday").IsZero() {
		t.Fatal("garbage timestamp should parse to zero time")
	}
}
