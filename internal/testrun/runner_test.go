package testrun

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
)

func newTestRunner() *Runner {
	return NewRunner("", slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"pytest", "collected 2 items\n\n===== 2 passed in 0.01s =====\n", "2 passed in 0.01s"},
		{"mixed", "... \n=== 1 failed, 3 passed in 0.20s ===", "1 failed, 3 passed in 0.20s"},
		{"no summary", "hello\nworld\n", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(tt.output); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun_None(t *testing.T) {
	dir := t.TempDir()
	res, err := newTestRunner().Run(context.Background(), Request{Backend: BackendNone, Dir: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}
	if res.File != ResultPath(dir) {
		t.Errorf("File = %q, want %q", res.File, ResultPath(dir))
	}
	data, err := os.ReadFile(res.File)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if string(data) != NoTestsMarker {
		t.Errorf("result = %q, want %q", data, NoTestsMarker)
	}
}

func TestRun_ShellStdout(t *testing.T) {
	dir := t.TempDir()
	res, err := newTestRunner().Run(context.Background(), Request{
		Backend: BackendShell,
		Dir:     dir,
		Command: "echo '== 4 passed =='; exit 3",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if got := res.Summary(); got != "4 passed" {
		t.Errorf("Summary = %q", got)
	}
}

func TestRun_ShellFallsBackToStderr(t *testing.T) {
	dir := t.TempDir()
	res, err := newTestRunner().Run(context.Background(), Request{
		Backend: BackendShell,
		Dir:     dir,
		Command: "echo boom >&2; exit 1",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Output != "boom\n" {
		t.Errorf("Output = %q, want stderr", res.Output)
	}
	data, _ := os.ReadFile(res.File)
	if string(data) != "boom\n" {
		t.Errorf("file = %q", data)
	}
}

func TestRun_ShellRunsInCheckout(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/marker.txt", []byte("here"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := newTestRunner().Run(context.Background(), Request{Backend: BackendShell, Dir: dir, Command: "cat marker.txt"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Output != "here" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestRun_Errors(t *testing.T) {
	r := newTestRunner()
	if _, err := r.Run(context.Background(), Request{Backend: "junit", Dir: t.TempDir()}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := r.Run(context.Background(), Request{Backend: BackendShell, Dir: t.TempDir()}); err == nil {
		t.Error("expected error for empty shell command")
	}
}
