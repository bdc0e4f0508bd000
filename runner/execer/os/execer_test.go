package os

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/ygrid/ygrid/runner/execer"
)

func TestAll(t *testing.T) {
	exer := NewExecer()

	cmd := execer.Command{Argv: []string{"true"}}
	p, err := exer.Exec(cmd)
	if err != nil {
		t.Fatalf("Couldn't run true %v", err)
	}
	status := p.Wait()
	if status.State != execer.COMPLETE || status.ExitCode != 0 {
		t.Fatalf("Got unexpected status running true %v", status)
	}

	cmd = execer.Command{Argv: []string{"false"}}
	p, err = exer.Exec(cmd)
	if err != nil {
		t.Fatalf("Couldn't run false %v", err)
	}
	status = p.Wait()
	if status.State != execer.COMPLETE || status.ExitCode != 1 {
		t.Fatalf("Got unexpected status running false %v", status)
	}
	// Waiting again returns the same result.
	if again := p.Wait(); again != status {
		t.Fatalf("Second Wait returned %v, expected %v", again, status)
	}
}

func TestEmptyArgv(t *testing.T) {
	if _, err := NewExecer().Exec(execer.Command{}); err == nil {
		t.Fatalf("Expected error for empty argv")
	}
}

func TestOutputEnvAndDir(t *testing.T) {
	dir, err := os.MkdirTemp("", "execer-test-")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	var stdout, stderr bytes.Buffer
	cmd := execer.Command{
		Argv:    []string{"/bin/sh", "-c", "echo $GREETING; pwd; cat; echo oops >&2"},
		Dir:     dir,
		EnvVars: map[string]string{"GREETING": "hi"},
		Stdin:   strings.NewReader("from stdin\n"),
		Stdout:  &stdout,
		Stderr:  &stderr,
	}
	p, err := NewExecer().Exec(cmd)
	if err != nil {
		t.Fatalf("Couldn't run sh %v", err)
	}
	if status := p.Wait(); status.State != execer.COMPLETE || status.ExitCode != 0 {
		t.Fatalf("Got unexpected status %v", status)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 || lines[0] != "hi" || !strings.HasSuffix(lines[1], strings.TrimPrefix(dir, "/private")) || lines[2] != "from stdin" {
		t.Fatalf("Unexpected stdout %q", stdout.String())
	}
	if stderr.String() != "oops\n" {
		t.Fatalf("Unexpected stderr %q", stderr.String())
	}
}

func TestAbort(t *testing.T) {
	p, err := NewExecer().Exec(execer.Command{Argv: []string{"sleep", "1000"}})
	if err != nil {
		t.Fatalf("Couldn't run sleep %v", err)
	}
	status := p.Abort()
	if status.State != execer.FAILED || !strings.HasPrefix(status.Error, "Aborted") {
		t.Fatalf("Got unexpected status %v", status)
	}
	if after := p.Wait(); after.State != execer.FAILED {
		t.Fatalf("Expected aborted status from Wait, got %v", after)
	}
}
