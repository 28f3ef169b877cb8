// internal/orchestrate/orchestrate.go
// Package orchestrate drives one benchmark run end to end through its state
// machine: validate the request, invoke the engine, collect its output into a
// run artifact, fold the corpus, annotate best effort, and publish the site
// artifacts.
package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sndlab/sndbench/internal/aggregate"
	"github.com/sndlab/sndbench/internal/appconfig"
	"github.com/sndlab/sndbench/internal/engine"
	"github.com/sndlab/sndbench/internal/logging"
	"github.com/sndlab/sndbench/internal/runrecord"
	"github.com/sndlab/sndbench/internal/summary"
	"github.com/sndlab/sndbench/internal/tracking"
	"github.com/sndlab/sndbench/internal/util"
)

// State is one phase of the run pipeline.
type State string

const (
	StateConfiguring State = "configuring"
	StateExecuting   State = "executing"
	StateCollecting  State = "collecting"
	StateAggregating State = "aggregating"
	StateAnnotating  State = "annotating"
	StatePublishing  State = "publishing"
	StateDone        State = "done"
	StateAborted     State = "aborted"
)

// Failure classes. Callers map these to exit codes with errors.Is.
var (
	// ErrInputValidation reports a request rejected before any side effect.
	ErrInputValidation = errors.New("input validation failed")
	// ErrExecution reports an engine invocation or collection failure.
	ErrExecution = errors.New("engine execution failed")
	// ErrPublish reports a failure writing the published artifacts.
	ErrPublish = errors.New("publish failed")
)

// Request describes one benchmark run to perform.
type Request struct {
	ModelName  string
	ModelPath  string
	Tasks      []string
	EngineName string
	Hardware   string
	RunID      string
	DryRun     bool
}

// Pipeline executes requests. It is single use per Run call; State and
// Transitions expose progress for logging and tests.
type Pipeline struct {
	cfg     appconfig.Config
	catalog engine.Catalog
	runner  engine.Runner
	tracker *tracking.Client

	state       State
	transitions []State

	now func() time.Time
}

// New builds a pipeline over the given collaborators.
func New(cfg appconfig.Config, catalog engine.Catalog, runner engine.Runner, tracker *tracking.Client) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		catalog: catalog,
		runner:  runner,
		tracker: tracker,
		now:     time.Now,
	}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State { return p.state }

// Transitions returns every state entered so far, in order.
func (p *Pipeline) Transitions() []State { return p.transitions }

func (p *Pipeline) enter(state State) {
	p.state = state
	p.transitions = append(p.transitions, state)
	logging.LogEvent("pipeline: entering %s", state)
}

// Run drives a request through the full pipeline. Validation failures abort
// before any side effect; annotation failures are logged and never fatal.
func (p *Pipeline) Run(ctx context.Context, req Request) (runrecord.RunRecord, error) {
	p.enter(StateConfiguring)
	eng, err := p.validate(&req)
	if err != nil {
		p.enter(StateAborted)
		return runrecord.RunRecord{}, fmt.Errorf("%w: %v", ErrInputValidation, err)
	}

	if req.DryRun {
		logging.LogEvent("pipeline: dry run, stopping after validation for %s", req.RunID)
		p.enter(StateDone)
		return runrecord.RunRecord{}, nil
	}

	p.enter(StateExecuting)
	runDir := filepath.Join(p.cfg.RunsDirPath(), req.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		p.enter(StateAborted)
		return runrecord.RunRecord{}, fmt.Errorf("%w: create run dir: %v", ErrExecution, err)
	}
	result, err := p.runner.Run(ctx, engine.Invocation{
		Engine:    eng,
		ModelPath: req.ModelPath,
		Tasks:     req.Tasks,
		OutputDir: runDir,
	})
	if err != nil {
		p.enter(StateAborted)
		return runrecord.RunRecord{}, fmt.Errorf("%w: %v (stderr: %s)",
			ErrExecution, err, strings.TrimSpace(result.Stderr))
	}

	p.enter(StateCollecting)
	record, err := p.collect(req, eng, result)
	if err != nil {
		return runrecord.RunRecord{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	p.enter(StateAggregating)
	if _, _, err := aggregate.Pass(p.cfg.RunsDirPath(), aggregate.Options{}); err != nil {
		return record, fmt.Errorf("aggregate corpus: %w", err)
	}

	p.enter(StateAnnotating)
	p.annotate(ctx, &record)

	p.enter(StatePublishing)
	index, meta, err := aggregate.Pass(p.cfg.RunsDirPath(), aggregate.Options{})
	if err != nil {
		return record, fmt.Errorf("%w: %v", ErrPublish, err)
	}
	if err := aggregate.WriteArtifacts(p.cfg.SiteDirPath(), index, meta); err != nil {
		return record, fmt.Errorf("%w: %v", ErrPublish, err)
	}

	p.enter(StateDone)
	logging.LogEvent("pipeline: run %s complete, %d runs published", req.RunID, index.TotalRuns)
	return record, nil
}

// validate checks the request and resolves its engine. It must not touch the
// filesystem: a rejected request leaves no trace.
func (p *Pipeline) validate(req *Request) (engine.Engine, error) {
	if strings.TrimSpace(req.ModelName) == "" {
		return engine.Engine{}, errors.New("model name is required")
	}
	if len(req.Tasks) == 0 {
		return engine.Engine{}, errors.New("at least one task is required")
	}
	seen := make(map[string]struct{}, len(req.Tasks))
	for _, task := range req.Tasks {
		if strings.TrimSpace(task) == "" {
			return engine.Engine{}, errors.New("task names must be non-empty")
		}
		if _, dup := seen[task]; dup {
			return engine.Engine{}, fmt.Errorf("duplicate task %q", task)
		}
		seen[task] = struct{}{}
	}

	if req.ModelPath == "" {
		req.ModelPath = req.ModelName
	}
	if req.EngineName == "" {
		req.EngineName = "lm-eval"
	}
	eng, err := p.catalog.Find(req.EngineName)
	if err != nil {
		return engine.Engine{}, err
	}

	if req.RunID == "" {
		req.RunID = "run-" + p.now().UTC().Format("20060102-150405")
	}
	if strings.ContainsAny(req.RunID, `/\`) {
		return engine.Engine{}, fmt.Errorf("run id %q must not contain path separators", req.RunID)
	}
	return eng, nil
}

// collect turns the engine's output into the run's data.json artifact and
// loads it back through the canonical parser.
func (p *Pipeline) collect(req Request, eng engine.Engine, result engine.Result) (runrecord.RunRecord, error) {
	results, err := parseEngineResults(result.Stdout)
	if err != nil {
		return runrecord.RunRecord{}, fmt.Errorf("parse %s output: %w", eng.Name, err)
	}

	var parsed map[string]runrecord.TaskResult
	rawResults, _ := json.Marshal(results)
	if err := json.Unmarshal(rawResults, &parsed); err != nil {
		return runrecord.RunRecord{}, fmt.Errorf("normalize %s output: %w", eng.Name, err)
	}

	artifact := map[string]any{
		"run_id":    req.RunID,
		"timestamp": p.now().UTC().Format("2006-01-02T15:04:05"),
		"model": map[string]any{
			"name": req.ModelName,
			"path": req.ModelPath,
		},
		"framework":        eng.Framework,
		"hardware_profile": req.Hardware,
		"tasks":            req.Tasks,
		"total_tasks":      len(req.Tasks),
		"results":          results,
		"average_accuracy": runrecord.ComputeAverageAccuracy(parsed),
		"completed":        true,
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return runrecord.RunRecord{}, fmt.Errorf("encode run artifact: %w", err)
	}
	path := runrecord.ArtifactPath(p.cfg.RunsDirPath(), req.RunID)
	if err := util.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return runrecord.RunRecord{}, fmt.Errorf("write run artifact: %w", err)
	}

	return runrecord.Load(p.cfg.RunsDirPath(), req.RunID)
}

// parseEngineResults extracts the per-task result object from engine output.
// Engines either emit {"results": {...}} or the bare result object.
func parseEngineResults(stdout string) (map[string]json.RawMessage, error) {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return nil, errors.New("engine produced no output")
	}

	// Some engines print progress lines before the final JSON document.
	if idx := strings.Index(trimmed, "{"); idx > 0 {
		trimmed = trimmed[idx:]
	}

	var outer map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &outer); err != nil {
		return nil, err
	}
	if nested, ok := outer["results"]; ok {
		var results map[string]json.RawMessage
		if err := json.Unmarshal(nested, &results); err != nil {
			return nil, err
		}
		return results, nil
	}
	return outer, nil
}

// annotate runs the best-effort steps: remote tracking and the markdown
// summary. Failures here are logged and never abort the pipeline.
func (p *Pipeline) annotate(ctx context.Context, record *runrecord.RunRecord) {
	var ref *tracking.Ref

	if p.tracker != nil && p.tracker.Enabled() {
		callCtx, cancel := p.tracker.Timeout(ctx)
		defer cancel()
		r, err := p.tracker.Annotate(callCtx, p.cfg.RunsDirPath(), record)
		if err != nil {
			logging.LogWarn("tracking annotation failed for %s: %v", record.RunID, err)
		} else {
			ref = &r
			record.TrackingRef = r.URL
		}
	} else {
		logging.LogEvent("tracking disabled, skipping annotation for %s", record.RunID)
	}

	if err := summary.Write(p.cfg.RunsDirPath(), record, ref); err != nil {
		logging.LogWarn("summary generation failed for %s: %v", record.RunID, err)
		return
	}
	record.Summary = summary.Render(record, ref)
}
