// internal/runrecord/types.go
// Package runrecord defines the canonical representation of one completed
// benchmark execution and the loader that reads it from disk.
package runrecord

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Framework identifies the evaluation engine that produced a run.
type Framework string

const (
	FrameworkLMEval   Framework = "lm-eval"
	FrameworkLlamaCpp Framework = "llama-cpp"
	FrameworkCustom   Framework = "custom"
)

// ParseFramework validates a framework name.
func ParseFramework(s string) (Framework, error) {
	switch Framework(strings.TrimSpace(s)) {
	case FrameworkLMEval:
		return FrameworkLMEval, nil
	case FrameworkLlamaCpp:
		return FrameworkLlamaCpp, nil
	case FrameworkCustom:
		return FrameworkCustom, nil
	}
	return "", fmt.Errorf("unrecognized framework %q (expected lm-eval, llama-cpp or custom)", s)
}

// Model describes the evaluated model.
type Model struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	Size string `json:"size,omitempty"`
}

// UnmarshalJSON tolerates a numeric or string size field from upstream artifacts.
func (m *Model) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name string          `json:"name"`
		Path string          `json:"path"`
		Size json.RawMessage `json:"size"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Name = raw.Name
	m.Path = raw.Path
	m.Size = ""
	if len(raw.Size) > 0 && string(raw.Size) != "null" {
		var asString string
		if err := json.Unmarshal(raw.Size, &asString); err == nil {
			m.Size = asString
		} else {
			var asNumber json.Number
			if err := json.Unmarshal(raw.Size, &asNumber); err == nil {
				m.Size = asNumber.String()
			}
		}
	}
	return nil
}

// TaskResult holds the metrics reported for one task. Accuracy and Stderr are
// nil when the engine reported no value; extra task-specific metrics are
// preserved untouched.
type TaskResult struct {
	Accuracy *float64
	Stderr   *float64
	Metrics  map[string]json.RawMessage
}

// Metric key aliases across engine output formats. lm-eval emits "acc" or
// "acc,none" depending on version; llama-cpp conversions emit "accuracy".
var (
	accuracyKeys = []string{"accuracy", "acc", "acc,none"}
	stderrKeys   = []string{"stderr", "acc_stderr", "acc_stderr,none"}
)

// UnmarshalJSON resolves metric aliases and keeps unknown fields for forward
// compatibility.
func (t *TaskResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Metrics = raw
	t.Accuracy = firstFloat(raw, accuracyKeys)
	t.Stderr = firstFloat(raw, stderrKeys)
	return nil
}

func firstFloat(raw map[string]json.RawMessage, keys []string) *float64 {
	for _, key := range keys {
		msg, ok := raw[key]
		if !ok || string(msg) == "null" {
			continue
		}
		var value float64
		if err := json.Unmarshal(msg, &value); err == nil {
			return &value
		}
	}
	return nil
}

// RunRecord is the canonical, immutable representation of one benchmark
// execution. It is created once at the end of a run and may only be augmented
// afterwards (tracking reference, summary), never rewritten.
type RunRecord struct {
	RunID           string
	Timestamp       string
	Model           Model
	Framework       Framework
	HardwareProfile string
	Tasks           []string
	Results         map[string]TaskResult
	AverageAccuracy float64
	Completed       bool
	TrackingRef     string
	Summary         string
}

// Time parses the record timestamp. Artifacts are written with ISO-8601
// timestamps, with or without a zone offset.
func (r RunRecord) Time() time.Time {
	return ParseTimestamp(r.Timestamp)
}

// timestampLayouts lists accepted artifact timestamp shapes, most common first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an artifact timestamp, returning the zero time when no
// layout matches. Records with unparsable timestamps sort last.
func ParseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ComputeAverageAccuracy returns the mean of the defined per-task accuracies.
// Null and missing values are excluded from the mean, not treated as zero.
// A record with zero defined accuracies averages to 0; that is policy, not an
// accident of division.
func ComputeAverageAccuracy(results map[string]TaskResult) float64 {
	var sum float64
	var count int
	for _, result := range results {
		if result.Accuracy == nil {
			continue
		}
		sum += *result.Accuracy
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
