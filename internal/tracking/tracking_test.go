package tracking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sndlab/sndbench/internal/appconfig"
	"github.com/sndlab/sndbench/internal/runrecord"
)

func floatPtr(v float64) *float64 { return &v }

func sampleRecord() *runrecord.RunRecord {
	return &runrecord.RunRecord{
		RunID:     "run-20250101-000000",
		Timestamp: "2025-01-01T00:00:00",
		Model:     runrecord.Model{Name: "org/model-7b"},
		Framework: runrecord.FrameworkLMEval,
		Tasks:     []string{"arc_easy", "hellaswag"},
		Results: map[string]runrecord.TaskResult{
			"arc_easy":  {Accuracy: floatPtr(0.8), Stderr: floatPtr(0.01)},
			"hellaswag": {Accuracy: floatPtr(0.6)},
		},
		AverageAccuracy: 0.7,
		Completed:       true,
	}
}

func TestClientDisabledWithoutAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	client := NewClient(appconfig.Config{})
	if client.Enabled() {
		t.Fatal("client should be disabled without an API key")
	}
	if _, err := client.LogRun(context.Background(), sampleRecord()); err == nil {
		t.Fatal("LogRun should fail when disabled")
	}
}

func TestLogRunPayloadAndRef(t *testing.T) {
	t.Setenv(APIKeyEnv, "test-key")

	var got runPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/runs" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api" || pass != "test-key" {
			t.Errorf("unexpected auth: %q %q", user, pass)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(runResponse{ID: "abc123", URL: "https://tracker.test/runs/abc123"})
	}))
	defer server.Close()

	client := NewClient(appconfig.Config{
		TrackingBaseURL: server.URL,
		TrackingProject: "snd-bench",
		TrackingEntity:  "sndlabs",
	})

	rec := sampleRecord()
	ref, err := client.LogRun(context.Background(), rec)
	if err != nil {
		t.Fatalf("LogRun: %v", err)
	}

	if ref.ID != "abc123" || ref.URL != "https://tracker.test/runs/abc123" {
		t.Fatalf("ref: %+v", ref)
	}
	if !strings.Contains(ref.Name, rec.RunID) {
		t.Fatalf("ref name %q must embed the run id", ref.Name)
	}

	if got.Project != "snd-bench" || got.Entity != "sndlabs" {
		t.Fatalf("payload project/entity: %q %q", got.Project, got.Entity)
	}
	if got.Metrics["average_accuracy"] != 0.7 || got.Metrics["total_tasks"] != 2 {
		t.Fatalf("payload metrics: %+v", got.Metrics)
	}
	if got.Metrics["arc_easy/accuracy"] != 0.8 || got.Metrics["arc_easy/stderr"] != 0.01 {
		t.Fatalf("task metrics not flattened: %+v", got.Metrics)
	}
	if _, ok := got.Metrics["hellaswag/stderr"]; ok {
		t.Fatal("missing stderr must stay absent, not become zero")
	}
	if got.Config["model"] != "org/model-7b" || got.Config["framework"] != "lm-eval" {
		t.Fatalf("payload config: %+v", got.Config)
	}
}

func TestLogRunServerError(t *testing.T) {
	t.Setenv(APIKeyEnv, "test-key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(appconfig.Config{TrackingBaseURL: server.URL})
	_, err := client.LogRun(context.Background(), sampleRecord())
	if err == nil {
		t.Fatal("expected error on non-2xx status")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("error should carry status and body snippet: %v", err)
	}
}

func TestAnnotateWritesRef(t *testing.T) {
	t.Setenv(APIKeyEnv, "test-key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(runResponse{ID: "xyz", URL: "https://tracker.test/runs/xyz"})
	}))
	defer server.Close()

	runsDir := t.TempDir()
	rec := sampleRecord()
	artifact := `{
		"run_id": "run-20250101-000000",
		"timestamp": "2025-01-01T00:00:00",
		"model": {"name": "org/model-7b"},
		"tasks": ["arc_easy"],
		"results": {"arc_easy": {"accuracy": 0.8}}
	}`
	path := runrecord.ArtifactPath(runsDir, rec.RunID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(artifact), 0o644); err != nil {
		t.Fatal(err)
	}

	client := NewClient(appconfig.Config{TrackingBaseURL: server.URL})
	ref, err := client.Annotate(context.Background(), runsDir, rec)
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(runsDir, rec.RunID, runrecord.TrackingArtifactName))
	if err != nil {
		t.Fatalf("read ref artifact: %v", err)
	}
	var persisted Ref
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("parse ref artifact: %v", err)
	}
	if persisted != ref {
		t.Fatalf("persisted ref %+v != returned %+v", persisted, ref)
	}

	// The run artifact gains the tracking_ref field without losing anything.
	reloaded, err := runrecord.Load(runsDir, rec.RunID)
	if err != nil {
		t.Fatalf("reload after annotate: %v", err)
	}
	if reloaded.TrackingRef != ref.URL {
		t.Fatalf("tracking ref not stamped: %q", reloaded.TrackingRef)
	}
}
