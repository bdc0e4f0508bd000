package agent

import (
	"context"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/ygrid/ygrid/agentapi"
	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/common/endpoints"
	"github.com/ygrid/ygrid/common/grpchelpers"
	"github.com/ygrid/ygrid/common/stats"
	"github.com/ygrid/ygrid/config/ygridconfig"
	"github.com/ygrid/ygrid/sched"
	"github.com/ygrid/ygrid/state"
	"github.com/ygrid/ygrid/syncer"
	"github.com/ygrid/ygrid/system"
	"github.com/ygrid/ygrid/workspace"
)

const shutdownTimeout = 5 * time.Second

// Node is a running ygrid daemon: the agent RPC server, the file-sync and
// admin HTTP server, the scheduler, and the status publisher.
type Node struct {
	Self      cluster.Node
	Workspace *workspace.Workspace
	Members   *cluster.Cluster
	Server    *Server
	Scheduler *sched.Scheduler

	agents *agentapi.Pool
	grpc   *grpc.Server
	http   *endpoints.TwitterServer
}

// NewNode prepares a node from config: it resets the workspace, joins the
// cluster and builds every service, but serves nothing until Run.
func NewNode(cfg *ygridconfig.Config, stat stats.StatsReceiver) (*Node, error) {
	ws := workspace.New(cfg.Root)
	if err := ws.Create(); err != nil {
		return nil, err
	}
	if err := ws.Purge(); err != nil {
		return nil, errors.Wrap(err, "purging stale jobs")
	}
	store, err := state.Open(ws.StatePath())
	if err != nil {
		return nil, err
	}
	if err := store.Reset(); err != nil {
		return nil, err
	}

	self, err := localNode(cfg)
	if err != nil {
		return nil, err
	}
	tags, err := self.Tags()
	if err != nil {
		return nil, err
	}
	backend, err := cfg.Membership.Backend(self.Name, self.Addr)
	if err != nil {
		return nil, errors.Wrap(err, "joining cluster")
	}
	members, err := cluster.New(backend, tags, cfg.FetchInterval.Std())
	if err != nil {
		backend.Close()
		return nil, err
	}
	exec, err := cfg.Execer.Execer()
	if err != nil {
		members.Close()
		return nil, errors.Wrap(err, "creating execer")
	}

	agents := agentapi.NewPool()
	scheduler := sched.NewScheduler(ws, store, members, agents, syncer.NewHTTPSyncer(ws, stat), exec, self.Addr,
		sched.Config{
			PollInterval:  cfg.QueuePoll.Std(),
			CallbackRetry: cfg.CallbackRetry.Std(),
			Shell:         cfg.Shell,
		}, stat)
	server := NewServer(ws, store, members, exec, agents, scheduler, self,
		Config{
			CPUs:           self.CPUs,
			Shell:          cfg.Shell,
			StatusInterval: cfg.StatusInterval.Std(),
			CallbackRetry:  cfg.CallbackRetry.Std(),
		}, stat)

	gs := grpchelpers.NewServer(grpchelpers.RateLimit(cfg.RPCRateLimit, int(cfg.RPCRateLimit)+1)...)
	agentapi.RegisterAgentServer(gs, server)

	hs := endpoints.NewTwitterServer(net.JoinHostPort("", strconv.Itoa(cfg.SyncPort)), stat)
	hs.Handle(syncer.PathPrefix, syncer.NewServer(ws, cfg.SyncRateLimit, stat))
	hs.HandleStatus(func() (interface{}, error) {
		return server.CurrentStatus(context.Background())
	})

	return &Node{
		Self:      self,
		Workspace: ws,
		Members:   members,
		Server:    server,
		Scheduler: scheduler,
		agents:    agents,
		grpc:      gs,
		http:      hs,
	}, nil
}

func localNode(cfg *ygridconfig.Config) (cluster.Node, error) {
	info := system.Probe()
	n := cluster.Node{
		Name:     cfg.Name,
		OS:       info.OS,
		CPUs:     info.CPUs,
		GHz:      info.GHz,
		MemGB:    info.MemGB,
		Load:     info.Load,
		Grids:    cfg.Grids,
		RPCPort:  cfg.Port,
		SyncPort: cfg.SyncPort,
	}
	if cfg.CPUs > 0 {
		n.CPUs = cfg.CPUs
	}
	if n.Name == "" {
		host, err := os.Hostname()
		if err != nil {
			return n, err
		}
		n.Name = host
	}
	if cfg.Addr != "" {
		n.Addr = net.ParseIP(cfg.Addr).To4()
	} else {
		addr, err := system.LocalAddr()
		if err != nil {
			return n, err
		}
		n.Addr = addr
	}
	return n, nil
}

// Run serves until ctx is done, then stops every service. Jobs still active
// are abandoned.
func (n *Node) Run(ctx context.Context) error {
	rpcLn, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(n.Self.RPCPort)))
	if err != nil {
		return err
	}
	httpLn, err := net.Listen("tcp", n.http.Addr)
	if err != nil {
		rpcLn.Close()
		return err
	}
	log.WithFields(log.Fields{"node": n.Self.Name, "addr": n.Self.Addr, "cpus": n.Self.CPUs, "grids": n.Self.Grids}).Info("Starting node")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 2)
	go func() { errCh <- errors.Wrap(n.grpc.Serve(rpcLn), "agent server") }()
	go func() { errCh <- errors.Wrap(n.http.Serve(httpLn), "http server") }()
	go n.Scheduler.Run(ctx)
	go n.Scheduler.WatchMembers(ctx)
	go n.Server.RunPublisher(ctx)
	n.Server.PublishStatus()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		log.WithFields(log.Fields{"error": runErr}).Error("Server stopped")
	}
	n.shutdown()
	return runErr
}

func (n *Node) shutdown() {
	log.WithFields(log.Fields{"node": n.Self.Name}).Info("Stopping node")
	n.grpc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := n.http.Shutdown(ctx); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("HTTP shutdown")
	}
	n.agents.Close()
	if err := n.Members.Close(); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Leaving cluster")
	}
}
