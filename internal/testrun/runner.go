// Package testrun executes an exercise's tests inside a submission checkout
// and records the output as a test-result artifact.
package testrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Backend selects how tests are executed.
type Backend string

const (
	BackendPytest Backend = "pytest"
	BackendShell  Backend = "shell"
	BackendNone   Backend = "none"
)

// Backends lists the accepted backends, default last.
func Backends() []string {
	return []string{string(BackendPytest), string(BackendShell), string(BackendNone)}
}

// ArtifactDir is the per-submission directory holding oblig's artifacts.
const ArtifactDir = "__oblig__"

// NoTestsMarker is the test result recorded by the none backend.
const NoTestsMarker = "NO TESTS EXECUTED"

// ResultPath returns the test-result file for a checkout directory.
func ResultPath(checkoutDir string) string {
	return filepath.Join(checkoutDir, ArtifactDir, "testresult.txt")
}

// Request describes one test run.
type Request struct {
	Backend Backend
	// Dir is the submission checkout.
	Dir string
	// Command is the shell command for BackendShell.
	Command string
	// TestDir is the pytest target relative to Dir. Defaults to "tests".
	TestDir string
}

// Result is the outcome of a test run. A failing test suite is a result,
// not an error.
type Result struct {
	RunID    string
	Backend  Backend
	ExitCode int
	Output   string
	File     string
	Duration time.Duration
}

// Summary returns the pytest-style summary line of the output, e.g.
// "3 passed, 1 failed in 0.12s", or "" when there is none.
func (r *Result) Summary() string {
	return Summary(r.Output)
}

var summaryRe = regexp.MustCompile(`^=* (.+?) =*$`)

// Summary extracts the summary from the last line of test output.
func Summary(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if m := summaryRe.FindStringSubmatch(strings.TrimSpace(lines[len(lines)-1])); m != nil {
		return m[1]
	}
	return ""
}

// Runner executes test backends as local processes.
type Runner struct {
	python string
	shell  string
	logger *slog.Logger
}

// NewRunner creates a Runner. python is the interpreter used for pytest;
// empty means "python3".
func NewRunner(python string, logger *slog.Logger) *Runner {
	if python == "" {
		python = "python3"
	}
	return &Runner{
		python: python,
		shell:  "/bin/sh",
		logger: logger.With("component", "testrun"),
	}
}

// Run executes req and writes the captured output to ResultPath(req.Dir).
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{RunID: uuid.New().String(), Backend: req.Backend}
	log := r.logger.With("run_id", res.RunID, "backend", req.Backend, "dir", req.Dir)
	start := time.Now()

	var err error
	switch req.Backend {
	case BackendNone:
		res.Output = NoTestsMarker
	case BackendPytest:
		testDir := req.TestDir
		if testDir == "" {
			testDir = "tests"
		}
		cmd := exec.CommandContext(ctx, r.python, "-m", "pytest", filepath.Join(req.Dir, testDir))
		cmd.Env = append(os.Environ(), "PYTHONPATH="+req.Dir)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		res.ExitCode, err = r.exec(cmd, req.Dir)
		res.Output = out.String()
	case BackendShell:
		if strings.TrimSpace(req.Command) == "" {
			return nil, errors.New("shell backend needs a command")
		}
		cmd := exec.CommandContext(ctx, r.shell, "-c", req.Command)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		res.ExitCode, err = r.exec(cmd, req.Dir)
		res.Output = stdout.String()
		if res.Output == "" {
			res.Output = stderr.String()
		}
	default:
		return nil, fmt.Errorf("unknown test backend %q", req.Backend)
	}
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)

	res.File = ResultPath(req.Dir)
	if err := os.MkdirAll(filepath.Dir(res.File), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(res.File, []byte(res.Output), 0o644); err != nil {
		return nil, fmt.Errorf("write test result: %w", err)
	}

	log.Info("tests finished", "exit_code", res.ExitCode, "summary", res.Summary(), "duration", res.Duration)
	return res, nil
}

// exec runs cmd in dir. A non-zero exit is reported through the exit code;
// failing to start the process is an error.
func (r *Runner) exec(cmd *exec.Cmd, dir string) (int, error) {
	cmd.Dir = dir
	runErr := cmd.Run()
	switch err := runErr.(type) {
	case nil:
		return 0, nil
	case *exec.ExitError:
		return err.ExitCode(), nil
	default:
		return 0, fmt.Errorf("run %s: %w", cmd.Path, runErr)
	}
}
