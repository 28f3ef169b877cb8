// internal/engine/engine.go
// Package engine describes the evaluation engines that produce benchmark runs
// and invokes them as external processes. The catalog of engines lives in a
// YAML file so new engines can be added without a rebuild.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sndlab/sndbench/internal/runrecord"
)

// DefaultCatalogPath is where the engine catalog is looked up by default.
const DefaultCatalogPath = "config/engines.yml"

// Output caps keep a runaway engine from exhausting memory.
const (
	maxStdout = 8 << 20
	maxStderr = 1 << 20
)

// Engine is one entry of the catalog. Args may contain the placeholders
// {model}, {tasks} and {output}, expanded at invocation time.
type Engine struct {
	Name           string   `yaml:"name"`
	Framework      string   `yaml:"framework"`
	Binary         string   `yaml:"binary"`
	Args           []string `yaml:"args"`
	TimeoutSeconds int      `yaml:"timeout"`
}

// Timeout returns the engine's invocation timeout.
func (e Engine) Timeout() time.Duration {
	if e.TimeoutSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// Catalog is the parsed engines file.
type Catalog struct {
	Engines []Engine `yaml:"engines"`
}

// Find looks an engine up by name.
func (c Catalog) Find(name string) (Engine, error) {
	for _, engine := range c.Engines {
		if engine.Name == name {
			return engine, nil
		}
	}
	return Engine{}, fmt.Errorf("engine %q not found in catalog", name)
}

// LoadCatalog reads and validates the engine catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		path = DefaultCatalogPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read engine catalog %q: %w", path, err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parse engine catalog %q: %w", path, err)
	}

	seen := make(map[string]struct{}, len(catalog.Engines))
	for i, engine := range catalog.Engines {
		if strings.TrimSpace(engine.Name) == "" {
			return Catalog{}, fmt.Errorf("engine catalog %q: entry %d has no name", path, i)
		}
		if strings.TrimSpace(engine.Binary) == "" {
			return Catalog{}, fmt.Errorf("engine %q: binary is required", engine.Name)
		}
		if _, err := runrecord.ParseFramework(engine.Framework); err != nil {
			return Catalog{}, fmt.Errorf("engine %q: %w", engine.Name, err)
		}
		if _, dup := seen[engine.Name]; dup {
			return Catalog{}, fmt.Errorf("engine catalog %q: duplicate engine %q", path, engine.Name)
		}
		seen[engine.Name] = struct{}{}
	}

	return catalog, nil
}

// Invocation is one evaluation request against an engine.
type Invocation struct {
	Engine    Engine
	ModelPath string
	Tasks     []string
	OutputDir string
}

// Result captures the outcome of one engine process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes engine invocations. The exec-backed implementation is the
// production one; tests substitute their own.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// NewRunner returns the exec-backed runner.
func NewRunner() Runner { return execRunner{} }

type execRunner struct{}

func (execRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	args := expandArgs(inv)

	ctx, cancel := context.WithTimeout(ctx, inv.Engine.Timeout())
	defer cancel()

	stdout, stderr, exitCode, err := runCommand(ctx, inv.Engine.Binary, args, maxStdout, maxStderr)
	result := Result{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}
	if err != nil {
		return result, fmt.Errorf("engine %q: %w", inv.Engine.Name, err)
	}
	return result, nil
}

// expandArgs substitutes invocation placeholders into the engine's arg template.
func expandArgs(inv Invocation) []string {
	replacer := strings.NewReplacer(
		"{model}", inv.ModelPath,
		"{tasks}", strings.Join(inv.Tasks, ","),
		"{output}", inv.OutputDir,
	)
	args := make([]string, 0, len(inv.Engine.Args))
	for _, arg := range inv.Engine.Args {
		args = append(args, replacer.Replace(arg))
	}
	return args
}

func runCommand(ctx context.Context, bin string, args []string, maxOut, maxErr int64) (stdout, stderr string, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", 127, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", 127, err
	}

	if err := cmd.Start(); err != nil {
		return "", "", 127, err
	}

	var outBuf, errBuf bytes.Buffer
	outDone := make(chan error, 1)
	errDone := make(chan error, 1)

	go func() {
		_, e := io.Copy(&outBuf, io.LimitReader(stdoutPipe, maxOut))
		outDone <- e
	}()
	go func() {
		_, e := io.Copy(&errBuf, io.LimitReader(stderrPipe, maxErr))
		errDone <- e
	}()

	waitErr := cmd.Wait()
	<-outDone
	<-errDone

	stdout = outBuf.String()
	stderr = errBuf.String()

	if waitErr != nil {
		exitCode = exitStatus(waitErr)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return stdout, stderr, exitCode, errors.New("engine timed out")
		}
		return stdout, stderr, exitCode, waitErr
	}

	return stdout, stderr, 0, nil
}

func exitStatus(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 1
}
