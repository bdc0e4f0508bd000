package agentapi

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/common/grpchelpers"
	"github.com/ygrid/ygrid/job"
)

type fakeHandler struct {
	mu       sync.Mutex
	opened   []job.ID
	finished map[job.ID]cluster.Node
	grids    []string
}

func (h *fakeHandler) SubmitJob(ctx context.Context, grid string, j *job.Job) (job.ID, error) {
	if err := j.Validate(); err != nil {
		return "", err
	}
	return job.EncodeID(7, net.IPv4(10, 0, 0, 1)), nil
}

func (h *fakeHandler) OpenJob(ctx context.Context, id job.ID) (bool, error) {
	if !id.Valid() {
		return false, errors.Wrapf(job.ErrMalformedID, "%q", id)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, id)
	return len(h.opened) == 1, nil
}

func (h *fakeHandler) ExecuteJob(ctx context.Context, id job.ID) error {
	if index, _, _ := job.DecodeID(id); index == 9 {
		return errors.Wrapf(job.ErrNotOpen, "%v", id)
	}
	return errors.New("disk on fire")
}

func (h *fakeHandler) FinishedJob(ctx context.Context, id job.ID, worker cluster.Node) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished[id] = worker
	return nil
}

func (h *fakeHandler) CloseJob(ctx context.Context, id job.ID) error { return nil }

func (h *fakeHandler) CurrentStatus(ctx context.Context) (map[job.ID]job.Info, error) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return map[job.ID]job.Info{"0000000A0A000001": {Grid: "render", Status: job.Active, Started: started}}, nil
}

func (h *fakeHandler) Nodes(ctx context.Context, grid string) ([]cluster.Node, error) {
	return []cluster.Node{{Name: "a", Addr: net.IPv4(10, 0, 0, 1).To4(), CPUs: 4, Grids: []string{grid}}}, nil
}

func (h *fakeHandler) JoinGrids(ctx context.Context, grids ...string) error {
	h.grids = append(h.grids, grids...)
	return nil
}

func (h *fakeHandler) LeaveGrids(ctx context.Context, grids ...string) error { return nil }

func startServer(t *testing.T, h Handler) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	s := grpchelpers.NewServer()
	RegisterAgentServer(s, h)
	go s.Serve(ln)
	t.Cleanup(s.Stop)
	return ln.Addr().String()
}

func TestRoundTrip(t *testing.T) {
	h := &fakeHandler{finished: make(map[job.ID]cluster.Node)}
	addr := startServer(t, h)
	p := NewPool()
	defer p.Close()
	ctx := context.Background()

	id, err := p.SubmitJob(ctx, addr, "", job.New("echo hi"))
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}
	assert.Equal(t, job.EncodeID(7, net.IPv4(10, 0, 0, 1)), id)

	if _, err := p.SubmitJob(ctx, addr, "", job.New("")); !IsInvalid(err) {
		t.Fatalf("Expected InvalidArgument for an empty task, got %v", err)
	}

	accepted, err := p.OpenJob(ctx, addr, id)
	if err != nil || !accepted {
		t.Fatalf("Expected first open to be accepted, got %v %v", accepted, err)
	}
	accepted, err = p.OpenJob(ctx, addr, id)
	if err != nil || accepted {
		t.Fatalf("Expected second open to be refused, got %v %v", accepted, err)
	}
	if _, err := p.OpenJob(ctx, addr, "nope"); !IsInvalid(err) {
		t.Fatalf("Expected InvalidArgument for a malformed ID, got %v", err)
	}

	err = p.ExecuteJob(ctx, addr, id)
	if err == nil || IsUnreachable(err) || IsInvalid(err) {
		t.Fatalf("Expected an internal error, got %v", err)
	}
	if IsNotOpen(err) {
		t.Fatalf("An internal error isn't a refusal: %v", err)
	}
	if err := p.ExecuteJob(ctx, addr, job.EncodeID(9, net.IPv4(10, 0, 0, 1))); !IsNotOpen(err) {
		t.Fatalf("Expected FailedPrecondition for a job never opened, got %v", err)
	}

	worker := cluster.Node{Name: "w", Addr: net.IPv4(10, 0, 0, 2).To4(), RPCPort: 7000, SyncPort: 7001}
	if err := p.FinishedJob(ctx, addr, id, worker); err != nil {
		t.Fatalf("FinishedJob failed: %v", err)
	}
	got := h.finished[id]
	if got.Name != "w" || !got.Addr.Equal(worker.Addr) || got.RPCPort != 7000 || got.SyncPort != 7001 {
		t.Fatalf("Unexpected worker %+v", got)
	}

	jobs, err := p.CurrentStatus(ctx, addr)
	if err != nil {
		t.Fatalf("CurrentStatus failed: %v", err)
	}
	assert.Equal(t, job.Active, jobs["0000000A0A000001"].Status)
	assert.Equal(t, "render", jobs["0000000A0A000001"].Grid)

	nodes, err := p.Nodes(ctx, addr, "render")
	if err != nil || len(nodes) != 1 || nodes[0].Name != "a" {
		t.Fatalf("Unexpected nodes %v %v", nodes, err)
	}
	if err := p.JoinGrids(ctx, addr, "x", "y"); err != nil {
		t.Fatalf("JoinGrids failed: %v", err)
	}
	assert.Equal(t, []string{"x", "y"}, h.grids)
}

func TestUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	p := NewPool()
	defer p.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = p.OpenJob(ctx, addr, job.EncodeID(1, net.IPv4(10, 0, 0, 1)))
	if !IsUnreachable(err) {
		t.Fatalf("Expected unreachable error, got %v", err)
	}
}
