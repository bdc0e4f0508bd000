package cli

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ygrid/ygrid/agentapi"
	"github.com/ygrid/ygrid/cloud/cluster"
	exits "github.com/ygrid/ygrid/common/errors"
	"github.com/ygrid/ygrid/common/grpchelpers"
	"github.com/ygrid/ygrid/job"
)

// fakeAgent answers the calls the CLI makes. Anything else panics.
type fakeAgent struct {
	agentapi.Handler
	submitted *job.Job
	grid      string
	joined    []string
}

func (a *fakeAgent) SubmitJob(ctx context.Context, grid string, j *job.Job) (job.ID, error) {
	if err := j.Validate(); err != nil {
		return "", err
	}
	a.submitted, a.grid = j, grid
	return job.EncodeID(3, net.IPv4(10, 0, 0, 1)), nil
}

func (a *fakeAgent) JoinGrids(ctx context.Context, grids ...string) error {
	a.joined = append(a.joined, grids...)
	return nil
}

func (a *fakeAgent) CurrentStatus(ctx context.Context) (map[job.ID]job.Info, error) {
	return map[job.ID]job.Info{
		"000000030A000001": {Status: job.Done, Started: time.Unix(0, 0).UTC(), Finished: timePtr(time.Unix(60, 0).UTC())},
	}, nil
}

func serve(t *testing.T, a *fakeAgent) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := grpchelpers.NewServer()
	agentapi.RegisterAgentServer(s, a)
	go s.Serve(ln)
	t.Cleanup(s.Stop)
	return ln.Addr().String()
}

func execute(t *testing.T, args ...string) (string, error) {
	c := NewCLIClient()
	out := &bytes.Buffer{}
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(&bytes.Buffer{})
	c.SetArgs(args)
	err := c.Exec()
	return out.String(), err
}

func TestSubmit(t *testing.T) {
	a := &fakeAgent{}
	addr := serve(t, a)

	out, err := execute(t, "submit", "--addr", addr, "--grid", "render",
		"--env", "FRAME=12", "--output", "frame.png", "--", "render", "--frame", "12")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	assert.Equal(t, "000000030A000001\n", out)
	assert.Equal(t, "render", a.grid)
	assert.Equal(t, "render --frame 12", a.submitted.Task)
	assert.Equal(t, map[string]string{"FRAME": "12"}, a.submitted.Environment)
	assert.Equal(t, []string{"frame.png"}, a.submitted.OutputFiles)
	assert.Equal(t, job.DefaultWeights(), a.submitted.Weights)
}

func TestSubmitBuildsAbsoluteInputs(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scene.blend")
	if err := os.WriteFile(in, nil, 0644); err != nil {
		t.Fatal(err)
	}
	c := &submitCmd{inputs: []string{in}, stdin: in, localWeight: 0, cpuWeight: 2}
	j, err := c.build([]string{"true"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	assert.Equal(t, []string{in}, j.InputFiles)
	assert.Equal(t, in, j.Stdin)
	assert.Equal(t, job.Weights{CPU: 2}, j.Weights)

	c = &submitCmd{env: []string{"NOEQUALS"}}
	if _, err := c.build([]string{"true"}); err == nil {
		t.Fatalf("Expected malformed env to be refused")
	}
}

func TestJoinAndStatus(t *testing.T) {
	a := &fakeAgent{}
	addr := serve(t, a)

	if _, err := execute(t, "join", "--addr", addr, "render", "bake"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	assert.Equal(t, []string{"render", "bake"}, a.joined)

	out, err := execute(t, "status", "--addr", addr)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	assert.True(t, strings.HasPrefix(out, "000000030A000001 -"), out)
	assert.Contains(t, out, "finished 1970-01-01T00:01:00Z")
}

func TestBadLogLevel(t *testing.T) {
	if _, err := execute(t, "nodes", "--log_level", "loud"); err == nil {
		t.Fatalf("Expected an unknown log level to be refused")
	}
}

func TestPrintNodes(t *testing.T) {
	out := &bytes.Buffer{}
	printNodes(out, []cluster.Node{{Name: "alpha", Addr: net.IPv4(10, 0, 0, 1), OS: "linux", CPUs: 8, GHz: 3, MemGB: 16, Grids: []string{"render"}}})
	assert.Equal(t, "alpha                10.0.0.1        linux    cpus=8 ghz=3.00 mem=16.0G load=0.00 jobs=0 grids=render\n", out.String())
}

func TestExitCodes(t *testing.T) {
	a := &fakeAgent{}
	addr := serve(t, a)

	_, err := execute(t, "submit", "--addr", addr, "--", " ")
	assert.Equal(t, exits.InvalidJobExitCode, exits.GetExitCode(err))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	closed := ln.Addr().String()
	ln.Close()
	_, err = execute(t, "join", "--addr", closed, "render")
	assert.Equal(t, exits.UnreachableExitCode, exits.GetExitCode(err))
}

func timePtr(t time.Time) *time.Time { return &t }
