package agent

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/cloud/cluster/memory"
	"github.com/ygrid/ygrid/common/stats"
	"github.com/ygrid/ygrid/job"
	osexecer "github.com/ygrid/ygrid/runner/execer/os"
	"github.com/ygrid/ygrid/sched"
	"github.com/ygrid/ygrid/state"
	"github.com/ygrid/ygrid/syncer"
	"github.com/ygrid/ygrid/workspace"
)

// router delivers agent calls straight to the Server listening on addr.
type router struct {
	mu      sync.Mutex
	servers map[string]*Server
}

func (r *router) add(addr string, s *Server) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[addr] = s
}

func (r *router) get(addr string) (*Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.servers[addr]
	if !ok {
		return nil, status.Errorf(codes.Unavailable, "no route to %v", addr)
	}
	return s, nil
}

func (r *router) OpenJob(ctx context.Context, addr string, id job.ID) (bool, error) {
	s, err := r.get(addr)
	if err != nil {
		return false, err
	}
	return s.OpenJob(ctx, id)
}

func (r *router) ExecuteJob(ctx context.Context, addr string, id job.ID) error {
	s, err := r.get(addr)
	if err != nil {
		return err
	}
	return s.ExecuteJob(ctx, id)
}

func (r *router) CloseJob(ctx context.Context, addr string, id job.ID) error {
	s, err := r.get(addr)
	if err != nil {
		return err
	}
	return s.CloseJob(ctx, id)
}

func (r *router) FinishedJob(ctx context.Context, addr string, id job.ID, worker cluster.Node) error {
	s, err := r.get(addr)
	if err != nil {
		return err
	}
	return s.FinishedJob(ctx, id, worker)
}

type grid struct {
	network *memory.Network
	peers   *syncer.Peers
	router  *router
	// agents is what schedulers call workers through. Defaults to router.
	agents sched.AgentClient
}

func newGrid() *grid {
	return &grid{
		network: memory.NewNetwork(),
		peers:   syncer.NewPeers(),
		router:  &router{servers: make(map[string]*Server)},
	}
}

type testNode struct {
	ws      *workspace.Workspace
	members *cluster.Cluster
	server  *Server
	sched   *sched.Scheduler
}

func (g *grid) add(t *testing.T, name string, last byte, cpus int) *testNode {
	ws := workspace.New(t.TempDir())
	if err := ws.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	store, err := state.Open("")
	if err != nil {
		t.Fatal(err)
	}
	self := cluster.Node{
		Name:  name,
		Addr:  net.IPv4(10, 0, 0, last).To4(),
		OS:    "linux",
		CPUs:  cpus,
		GHz:   1,
		MemGB: 1,
	}
	tags, err := self.Tags()
	if err != nil {
		t.Fatal(err)
	}
	members, err := cluster.New(g.network.Join(name, self.Addr), tags, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("cluster.New failed: %v", err)
	}
	t.Cleanup(func() { members.Close() })

	g.peers.Add(self.SyncAddr(), ws)
	exec := osexecer.NewExecer()
	stat := stats.NilStatsReceiver()
	var agents sched.AgentClient = g.router
	if g.agents != nil {
		agents = g.agents
	}
	s := sched.NewScheduler(ws, store, members, agents, syncer.NewLocalSyncer(ws, g.peers), exec, self.Addr,
		sched.Config{PollInterval: 10 * time.Millisecond, CallbackRetry: 2 * time.Second}, stat)
	server := NewServer(ws, store, members, exec, g.router, s, self,
		Config{CPUs: cpus, CallbackRetry: 2 * time.Second}, stat)
	g.router.add(self.RPCAddr(), server)
	return &testNode{ws: ws, members: members, server: server, sched: s}
}

func refresh(t *testing.T, nodes ...*testNode) {
	for _, n := range nodes {
		if err := n.members.Refresh(); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
	}
}

// dispatch runs one scheduling pass on n and returns how many jobs stayed queued.
func (n *testNode) dispatch(t *testing.T) int {
	ids, err := n.ws.QueuedJobs()
	if err != nil {
		t.Fatalf("QueuedJobs failed: %v", err)
	}
	return n.sched.DispatchJobs(context.Background(), ids)
}

func (n *testNode) submit(t *testing.T, task string) job.ID {
	id, err := n.server.SubmitJob(context.Background(), "", job.New(task))
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}
	return id
}

func settle(nodes ...*testNode) {
	for _, n := range nodes {
		n.server.Wait()
	}
	for _, n := range nodes {
		n.sched.Wait()
	}
}

func readCompleted(t *testing.T, n *testNode, id job.ID, file string) string {
	data, err := os.ReadFile(n.ws.CompletedJob(id, file))
	if err != nil {
		t.Fatalf("Expected completed %v for %v: %v", file, id, err)
	}
	return string(data)
}

func assertGone(t *testing.T, path string) {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Expected %v to be removed, got %v", path, err)
	}
}

func TestSingleNodeRunsJob(t *testing.T) {
	g := newGrid()
	n := g.add(t, "solo", 1, 2)
	refresh(t, n)

	id := n.submit(t, "echo hi")
	if deferred := n.dispatch(t); deferred != 0 {
		t.Fatalf("Expected job to be dispatched, %d deferred", deferred)
	}
	settle(n)

	assert.Equal(t, "hi\n", readCompleted(t, n, id, workspace.StdoutFile))
	assertGone(t, n.ws.QueuedJob(id))
	assertGone(t, n.ws.OpenedJob(id))
	assertGone(t, n.ws.ActiveJob(id))
	infos, err := n.server.CurrentStatus(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, infos)
}

func TestSecondJobWaitsForFreeSlot(t *testing.T) {
	g := newGrid()
	n := g.add(t, "solo", 1, 1)
	refresh(t, n)

	first := n.submit(t, "while [ ! -f release ]; do sleep 0.01; done; echo one")
	second := n.submit(t, "echo two")
	if deferred := n.dispatch(t); deferred != 1 {
		t.Fatalf("Expected the second job to stay queued, %d deferred", deferred)
	}
	if _, err := os.Stat(n.ws.QueuedJob(second)); err != nil {
		t.Fatalf("Expected second job still queued: %v", err)
	}

	if err := os.WriteFile(n.ws.ActiveJob(first, "release"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	settle(n)
	assert.Equal(t, "one\n", readCompleted(t, n, first, workspace.StdoutFile))

	if deferred := n.dispatch(t); deferred != 0 {
		t.Fatalf("Expected the second job to be dispatched, %d deferred", deferred)
	}
	settle(n)
	assert.Equal(t, "two\n", readCompleted(t, n, second, workspace.StdoutFile))
}

func TestJobRunsOnRemoteNode(t *testing.T) {
	g := newGrid()
	a := g.add(t, "a", 1, 1)
	b := g.add(t, "b", 2, 1)
	refresh(t, a, b)

	input := a.ws.Path("in.txt")
	if err := os.WriteFile(input, []byte("remote input\n"), 0644); err != nil {
		t.Fatal(err)
	}
	blocker := a.submit(t, "while [ ! -f release ]; do sleep 0.01; done")
	j := job.New(`cat in.txt && echo "$YGRID_SRC_HOST" > out.txt`)
	j.InputFiles = []string{input}
	j.OutputFiles = []string{"out.txt"}
	remote, err := a.server.SubmitJob(context.Background(), "", j)
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}

	if deferred := a.dispatch(t); deferred != 0 {
		t.Fatalf("Expected both jobs to be dispatched, %d deferred", deferred)
	}
	b.server.Wait()
	b.sched.Wait()
	a.sched.Wait()

	assert.Equal(t, "remote input\n", readCompleted(t, a, remote, workspace.StdoutFile))
	assert.Equal(t, "10.0.0.1\n", readCompleted(t, a, remote, "out.txt"))
	assertGone(t, b.ws.ActiveJob(remote))

	if err := os.WriteFile(a.ws.ActiveJob(blocker, "release"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	settle(a, b)
	assertGone(t, a.ws.ActiveJob(blocker))
}

func TestCloseBeforeExecuteLeavesNoTrace(t *testing.T) {
	g := newGrid()
	n := g.add(t, "solo", 1, 1)
	refresh(t, n)
	id := job.EncodeID(9, net.IPv4(10, 0, 0, 7))

	if err := g.router.CloseJob(context.Background(), "10.0.0.1:7947", id); err != nil {
		t.Fatalf("CloseJob failed: %v", err)
	}
	assertGone(t, n.ws.ActiveJob(id))
	infos, _ := n.server.CurrentStatus(context.Background())
	assert.Empty(t, infos)
}

// lostReply delivers ExecuteJob calls but reports the first as timed out.
type lostReply struct {
	*router
	once sync.Once
}

func (l *lostReply) ExecuteJob(ctx context.Context, addr string, id job.ID) error {
	if err := l.router.ExecuteJob(ctx, addr, id); err != nil {
		return err
	}
	var err error
	l.once.Do(func() { err = status.Error(codes.DeadlineExceeded, "deadline exceeded") })
	return err
}

func TestTimedOutExecuteRunsJobOnce(t *testing.T) {
	g := newGrid()
	g.agents = &lostReply{router: g.router}
	n := g.add(t, "solo", 1, 1)
	refresh(t, n)

	runs := filepath.Join(t.TempDir(), "runs")
	id := n.submit(t, "echo run >> "+runs+" && echo ok")
	if deferred := n.dispatch(t); deferred != 0 {
		t.Fatalf("Expected the job to count as dispatched, %d deferred", deferred)
	}
	settle(n)
	if deferred := n.dispatch(t); deferred != 0 {
		t.Fatalf("Expected an empty queue on the next pass, %d deferred", deferred)
	}
	settle(n)

	data, err := os.ReadFile(runs)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "run\n", string(data))
	assert.Equal(t, "ok\n", readCompleted(t, n, id, workspace.StdoutFile))
	assertGone(t, n.ws.QueuedJob(id))
	assertGone(t, n.ws.OpenedJob(id))
	assertGone(t, n.ws.ActiveJob(id))
	infos, err := n.server.CurrentStatus(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, infos, "worker slot should be free")
}
