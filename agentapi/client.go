package agentapi

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/job"
)

// DefaultTimeout applies to calls whose context has no deadline.
const DefaultTimeout = 10 * time.Second

// Pool holds one connection per agent address. Connections are made lazily
// and reused by every call to the same address.
type Pool struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func NewPool() *Pool {
	return &Pool{conns: make(map[string]*grpc.ClientConn)}
}

func (p *Pool) conn(addr string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cc, ok := p.conns[addr]; ok {
		return cc, nil
	}
	cc, err := grpc.Dial(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)))
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"node": addr}).Debug("Connected to agent")
	p.conns[addr] = cc
	return cc, nil
}

func (p *Pool) invoke(ctx context.Context, addr, method string, in, out interface{}) error {
	cc, err := p.conn(addr)
	if err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	return cc.Invoke(ctx, fullMethod(method), in, out)
}

// Close drops every connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for addr, cc := range p.conns {
		if err := cc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, addr)
	}
	return firstErr
}

func (p *Pool) SubmitJob(ctx context.Context, addr, grid string, j *job.Job) (job.ID, error) {
	out := &SubmitJobResponse{}
	if err := p.invoke(ctx, addr, "SubmitJob", &SubmitJobRequest{Grid: grid, Job: j}, out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (p *Pool) OpenJob(ctx context.Context, addr string, id job.ID) (bool, error) {
	out := &OpenJobResponse{}
	if err := p.invoke(ctx, addr, "OpenJob", &JobRequest{ID: id}, out); err != nil {
		return false, err
	}
	return out.Accepted, nil
}

func (p *Pool) ExecuteJob(ctx context.Context, addr string, id job.ID) error {
	return p.invoke(ctx, addr, "ExecuteJob", &JobRequest{ID: id}, &Empty{})
}

func (p *Pool) FinishedJob(ctx context.Context, addr string, id job.ID, worker cluster.Node) error {
	return p.invoke(ctx, addr, "FinishedJob", &FinishedJobRequest{ID: id, Worker: worker}, &Empty{})
}

func (p *Pool) CloseJob(ctx context.Context, addr string, id job.ID) error {
	return p.invoke(ctx, addr, "CloseJob", &JobRequest{ID: id}, &Empty{})
}

func (p *Pool) CurrentStatus(ctx context.Context, addr string) (map[job.ID]job.Info, error) {
	out := &StatusResponse{}
	if err := p.invoke(ctx, addr, "CurrentStatus", &Empty{}, out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

func (p *Pool) Nodes(ctx context.Context, addr, grid string) ([]cluster.Node, error) {
	out := &NodesResponse{}
	if err := p.invoke(ctx, addr, "Nodes", &NodesRequest{Grid: grid}, out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

func (p *Pool) JoinGrids(ctx context.Context, addr string, grids ...string) error {
	return p.invoke(ctx, addr, "JoinGrids", &GridsRequest{Grids: grids}, &Empty{})
}

func (p *Pool) LeaveGrids(ctx context.Context, addr string, grids ...string) error {
	return p.invoke(ctx, addr, "LeaveGrids", &GridsRequest{Grids: grids}, &Empty{})
}
