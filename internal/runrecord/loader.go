// internal/runrecord/loader.go
package runrecord

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ArtifactName is the per-run result artifact file name.
const ArtifactName = "data.json"

// Side artifacts written by the augmentation steps. Their absence is never an
// error.
const (
	SummaryArtifactName  = "summary.md"
	TrackingArtifactName = "wandb.json"
)

var (
	// ErrMissingArtifact reports that no result artifact exists at the
	// expected location.
	ErrMissingArtifact = errors.New("missing run artifact")
	// ErrMalformedArtifact reports an artifact that cannot be parsed into the
	// expected shape. Unknown or extra fields never trigger it.
	ErrMalformedArtifact = errors.New("malformed run artifact")
)

// artifactSchema pins the minimum shape of a run artifact. Only required
// fields are constrained; additional properties are always allowed so newer
// producers remain readable.
const artifactSchema = `{
	"type": "object",
	"required": ["run_id", "timestamp", "model", "results"],
	"properties": {
		"run_id": {"type": "string", "minLength": 1},
		"timestamp": {"type": "string", "minLength": 1},
		"model": {
			"type": "object",
			"required": ["name"],
			"properties": {
				"name": {"type": "string", "minLength": 1}
			}
		},
		"results": {"type": "object"},
		"tasks": {"type": "array", "items": {"type": "string"}}
	}
}`

var compiledSchema = func() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(artifactSchema))
	if err != nil {
		panic(fmt.Sprintf("invalid run artifact schema: %v", err))
	}
	return schema
}()

// rawArtifact mirrors the on-disk JSON object.
type rawArtifact struct {
	RunID           string                `json:"run_id"`
	Timestamp       string                `json:"timestamp"`
	Model           Model                 `json:"model"`
	Framework       string                `json:"framework"`
	HardwareProfile string                `json:"hardware_profile"`
	Tasks           []string              `json:"tasks"`
	Results         map[string]TaskResult `json:"results"`
	Completed       bool                  `json:"completed"`
	TrackingRef     string                `json:"tracking_ref"`
	Summary         string                `json:"summary"`
	TrackingHistory []trackingEntry       `json:"wandb_history"`
}

// trackingEntry is one entry of a tracking-service snapshot.
type trackingEntry struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	URL  string `json:"url"`
}

// ArtifactPath returns the expected location of a run's result artifact.
func ArtifactPath(runsDir, runID string) string {
	return filepath.Join(runsDir, runID, ArtifactName)
}

// Load locates and parses the result artifact for runID under runsDir. It
// returns ErrMissingArtifact when no artifact exists and ErrMalformedArtifact
// when the artifact does not parse into the expected shape. On success the
// record's AverageAccuracy has been recomputed from the per-task results;
// the value stored upstream is never trusted.
func Load(runsDir, runID string) (RunRecord, error) {
	path := ArtifactPath(runsDir, runID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunRecord{}, fmt.Errorf("run %s: %w (expected %s)", runID, ErrMissingArtifact, path)
		}
		return RunRecord{}, fmt.Errorf("run %s: read %s: %w", runID, path, err)
	}
	record, err := Parse(data)
	if err != nil {
		return RunRecord{}, fmt.Errorf("run %s: %w", runID, err)
	}
	loadAugmentations(runsDir, runID, &record)
	return record, nil
}

// Parse decodes a run artifact payload into a RunRecord.
func Parse(data []byte) (RunRecord, error) {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return RunRecord{}, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return RunRecord{}, fmt.Errorf("%w: %s", ErrMalformedArtifact, strings.Join(details, "; "))
	}

	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return RunRecord{}, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}

	tasks, err := normalizeTasks(raw.Tasks, raw.Results)
	if err != nil {
		return RunRecord{}, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}

	framework := FrameworkLMEval
	if strings.TrimSpace(raw.Framework) != "" {
		parsed, err := ParseFramework(raw.Framework)
		if err != nil {
			return RunRecord{}, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
		}
		framework = parsed
	}

	record := RunRecord{
		RunID:           raw.RunID,
		Timestamp:       raw.Timestamp,
		Model:           raw.Model,
		Framework:       framework,
		HardwareProfile: raw.HardwareProfile,
		Tasks:           tasks,
		Results:         raw.Results,
		AverageAccuracy: ComputeAverageAccuracy(raw.Results),
		Completed:       raw.Completed,
		TrackingRef:     raw.TrackingRef,
		Summary:         raw.Summary,
	}
	if record.TrackingRef == "" {
		record.TrackingRef = trackingRefFromHistory(raw.TrackingHistory, raw.RunID)
	}
	return record, nil
}

// normalizeTasks keeps the artifact's execution order, rejecting duplicates.
// Artifacts written before the tasks field existed derive their task list from
// the result keys in lexical order.
func normalizeTasks(tasks []string, results map[string]TaskResult) ([]string, error) {
	if len(tasks) == 0 {
		if len(results) == 0 {
			return nil, errors.New("artifact names no tasks and carries no results")
		}
		derived := make([]string, 0, len(results))
		for task := range results {
			derived = append(derived, task)
		}
		sort.Strings(derived)
		return derived, nil
	}

	seen := make(map[string]struct{}, len(tasks))
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		name := strings.TrimSpace(task)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate task %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, errors.New("artifact names no tasks and carries no results")
	}
	return out, nil
}

// loadAugmentations merges optional side artifacts into the record. These are
// loaded independently of the main artifact; absence is not an error.
func loadAugmentations(runsDir, runID string, record *RunRecord) {
	runDir := filepath.Join(runsDir, runID)

	if record.Summary == "" {
		if data, err := os.ReadFile(filepath.Join(runDir, SummaryArtifactName)); err == nil {
			record.Summary = string(data)
		}
	}

	if record.TrackingRef == "" {
		if data, err := os.ReadFile(filepath.Join(runDir, TrackingArtifactName)); err == nil {
			// Snapshot fetches write an array; the annotation step writes a
			// single object. Accept both.
			var entries []trackingEntry
			if err := json.Unmarshal(data, &entries); err != nil {
				var single trackingEntry
				if json.Unmarshal(data, &single) == nil {
					entries = []trackingEntry{single}
				}
			}
			record.TrackingRef = trackingRefFromHistory(entries, runID)
		}
	}
}

// trackingRefFromHistory picks the snapshot entry matching this run. The
// tracking service names runs "<model>-<run_id>", so a substring match on the
// run id identifies the right entry.
func trackingRefFromHistory(entries []trackingEntry, runID string) string {
	for _, entry := range entries {
		if entry.Name != "" && strings.Contains(entry.Name, runID) && entry.URL != "" {
			return entry.URL
		}
	}
	return ""
}
