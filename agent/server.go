// Package agent is the node daemon. Server is the worker side: it admits
// jobs up to the node's CPU count, runs them, publishes their status through
// membership tags, and tells each job's submitter when it is done. Node
// wires a Server together with the submitter-side scheduler and serves both.
package agent

//go:generate mockgen -source=server.go -package=agent -destination=server_mock.go

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ygrid/ygrid/agentapi"
	"github.com/ygrid/ygrid/async"
	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/common/stats"
	"github.com/ygrid/ygrid/job"
	"github.com/ygrid/ygrid/os/temp"
	"github.com/ygrid/ygrid/runner/execer"
	"github.com/ygrid/ygrid/sched"
	"github.com/ygrid/ygrid/state"
	"github.com/ygrid/ygrid/system"
	"github.com/ygrid/ygrid/workspace"
)

const (
	DefaultStatusInterval = 5 * time.Second
	DefaultCallbackRetry  = 2 * time.Minute
)

// SubmitterClient reaches a job's submitter.
type SubmitterClient interface {
	FinishedJob(ctx context.Context, addr string, id job.ID, worker cluster.Node) error
}

type Config struct {
	// CPUs is how many jobs may be admitted at once.
	CPUs int
	// Shell runs each task as "Shell -c task".
	Shell          string
	StatusInterval time.Duration
	CallbackRetry  time.Duration
}

// Server handles the agent RPCs for one node.
type Server struct {
	ws         *workspace.Workspace
	store      *state.Store
	members    cluster.Membership
	exec       execer.Execer
	submitters SubmitterClient
	scheduler  *sched.Scheduler
	self       cluster.Node
	config     Config
	tracker    *async.Tracker
	stat       stats.StatsReceiver

	mu      sync.Mutex
	running map[job.ID]execer.Process

	pubMu     sync.Mutex
	published *string
}

var _ agentapi.Handler = (*Server)(nil)

// NewServer makes the server for the node self. scheduler handles
// finishedJob calls for jobs this node submitted.
func NewServer(
	ws *workspace.Workspace,
	store *state.Store,
	members cluster.Membership,
	exec execer.Execer,
	submitters SubmitterClient,
	scheduler *sched.Scheduler,
	self cluster.Node,
	config Config,
	stat stats.StatsReceiver,
) *Server {
	if config.CPUs <= 0 {
		config.CPUs = 1
	}
	if config.Shell == "" {
		config.Shell = sched.DefaultShell
	}
	if config.StatusInterval <= 0 {
		config.StatusInterval = DefaultStatusInterval
	}
	if config.CallbackRetry <= 0 {
		config.CallbackRetry = DefaultCallbackRetry
	}
	return &Server{
		ws:         ws,
		store:      store,
		members:    members,
		exec:       exec,
		submitters: submitters,
		scheduler:  scheduler,
		self:       self,
		config:     config,
		tracker:    async.NewTracker(),
		stat:       stat.Scope("agent"),
		running:    make(map[job.ID]execer.Process),
	}
}

// SubmitJob queues j for grid and returns its ID. Input and stdin files are
// copied into the job's directory so they can be staged to any worker.
func (s *Server) SubmitJob(ctx context.Context, grid string, j *job.Job) (job.ID, error) {
	if j == nil {
		return "", &job.ValidationError{Problems: []string{"no job"}}
	}
	if err := j.Validate(); err != nil {
		return "", err
	}
	if err := checkStaged(j); err != nil {
		return "", err
	}
	var index uint32
	err := s.store.Transact(func(st *state.State) error {
		index = st.NextIndex()
		return nil
	})
	if err != nil {
		return "", err
	}

	j = j.Copy()
	j.Grid = grid
	j.SourceHost = s.self.Addr
	j.SourceIndex = index
	j.WorkerHost = nil
	id := j.ID()

	if err := s.stage(id, j); err != nil {
		os.RemoveAll(s.ws.OpenedJob(id))
		return "", err
	}
	if err := j.Save(s.ws.QueuedJob(id)); err != nil {
		os.RemoveAll(s.ws.OpenedJob(id))
		return "", err
	}
	log.WithFields(log.Fields{"jobID": id, "grid": grid, "task": j.Task}).Info("Queued job")
	return id, nil
}

func checkStaged(j *job.Job) error {
	seen := make(map[string]string)
	var problems []string
	for _, f := range j.StagedFiles() {
		base := filepath.Base(f)
		if prev, ok := seen[base]; ok && prev != f {
			problems = append(problems, "input files "+prev+" and "+f+" share a name")
		}
		seen[base] = f
	}
	if len(problems) > 0 {
		return &job.ValidationError{Problems: problems}
	}
	return nil
}

// stage copies j's input files next to its record and renames them to
// their base names, which is where the worker will find them.
func (s *Server) stage(id job.ID, j *job.Job) error {
	files := j.StagedFiles()
	if len(files) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.ws.OpenedJob(id), 0755); err != nil {
		return err
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return &job.ValidationError{Problems: []string{"can't read input file " + f}}
		}
		if err := temp.WriteFile(s.ws.OpenedJob(id, filepath.Base(f)), data, 0644); err != nil {
			return err
		}
	}
	for i, f := range j.InputFiles {
		j.InputFiles[i] = filepath.Base(f)
	}
	if j.Stdin != "" {
		j.Stdin = filepath.Base(j.Stdin)
	}
	return nil
}

// OpenJob admits id if fewer jobs than CPUs are active.
func (s *Server) OpenJob(ctx context.Context, id job.ID) (bool, error) {
	if !id.Valid() {
		return false, errors.Wrapf(job.ErrMalformedID, "%q", id)
	}
	accepted := false
	err := s.store.Transact(func(st *state.State) error {
		if !st.Admit(state.Admission{ID: id, Opened: time.Now()}, s.config.CPUs) {
			return nil
		}
		if err := os.MkdirAll(s.ws.ActiveJob(id), 0755); err != nil {
			return err
		}
		if err := s.ws.WriteStatus(id, job.Active); err != nil {
			return err
		}
		accepted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	fields := log.Fields{"jobID": id, "cpus": s.config.CPUs}
	if !accepted {
		s.stat.Counter(stats.AgentOpenRefused).Inc(1)
		log.WithFields(fields).Info("Refused job")
		return false, nil
	}
	s.stat.Counter(stats.AgentOpenAccepted).Inc(1)
	log.WithFields(fields).Info("Opened job")
	s.PublishStatus()
	return true, nil
}

// ExecuteJob starts an opened job's task and returns without waiting for it.
func (s *Server) ExecuteJob(ctx context.Context, id job.ID) error {
	if !id.Valid() {
		return errors.Wrapf(job.ErrMalformedID, "%q", id)
	}
	active := false
	s.store.View(func(st state.State) { active = st.IsActive(id) })
	if !active {
		return errors.Wrapf(job.ErrNotOpen, "%v on %v", id, s.self.Name)
	}
	j, err := job.Load(s.ws.ActiveJob(id, workspace.JobFile))
	if err != nil {
		return err
	}
	if err := s.store.Transact(func(st *state.State) error {
		st.SetGrid(id, j.Grid)
		return nil
	}); err != nil {
		return err
	}
	if !j.WorkerHost.Equal(s.self.Addr) {
		log.WithFields(log.Fields{"jobID": id, "workerHost": j.WorkerHost}).Warn("Job was sent for another worker")
	}
	s.tracker.Go("exec/"+string(id), func() error {
		s.run(id, j)
		return s.notifySubmitter(id, j)
	})
	return nil
}

func (s *Server) run(id job.ID, j *job.Job) {
	defer s.stat.Latency(stats.AgentExecLatency_ms).Time().Stop()
	fields := log.Fields{"jobID": id, "grid": j.Grid}
	paths := workspace.JobPaths(s.ws.ActiveJob(id))

	st := s.start(id, j, paths)
	log.WithFields(fields).WithFields(log.Fields{"state": st.State, "exitCode": st.ExitCode, "error": st.Error}).Info("Job finished")

	if !s.isActive(id) {
		return
	}
	if err := s.ws.WriteStatus(id, job.Done); err != nil {
		log.WithFields(fields).WithField("error", err).Error("Couldn't mark job done")
	}
	s.PublishStatus()
}

// start runs the task and waits for it, with stdout and stderr captured in
// the job directory.
func (s *Server) start(id job.ID, j *job.Job, paths job.Paths) execer.ProcessStatus {
	failed := func(err error) execer.ProcessStatus {
		log.WithFields(log.Fields{"jobID": id, "error": err}).Error("Couldn't start job")
		return execer.ProcessStatus{State: execer.FAILED, ExitCode: -1, Error: err.Error()}
	}
	stdout, err := os.Create(paths.Stdout)
	if err != nil {
		return failed(err)
	}
	defer stdout.Close()
	stderr, err := os.Create(paths.Stderr)
	if err != nil {
		return failed(err)
	}
	defer stderr.Close()

	var stdin io.Reader
	if j.Stdin != "" {
		f, err := os.Open(filepath.Join(paths.Dir, path.Clean("/"+j.Stdin)))
		if err != nil {
			return failed(err)
		}
		defer f.Close()
		stdin = f
	}

	s.mu.Lock()
	if _, ok := s.running[id]; ok {
		s.mu.Unlock()
		return failed(errors.Errorf("job %v is already running", id))
	}
	p, err := s.exec.Exec(execer.Command{
		Argv:    []string{s.config.Shell, "-c", j.Task},
		Dir:     paths.Dir,
		EnvVars: j.Env(paths),
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  stderr,
		JobID:   string(id),
	})
	if err != nil {
		s.mu.Unlock()
		return failed(err)
	}
	s.running[id] = p
	s.mu.Unlock()
	log.WithFields(log.Fields{"jobID": id, "task": j.Task}).Info("Running job")

	st := p.Wait()
	s.mu.Lock()
	delete(s.running, id)
	s.mu.Unlock()
	return st
}

// notifySubmitter calls finishedJob on the job's submitter until it answers.
func (s *Server) notifySubmitter(id job.ID, j *job.Job) error {
	addr := s.submitterAddr(j.SourceHost)
	ctx := context.Background()
	err := async.Retry(ctx, s.config.CallbackRetry, "finishedJob "+string(id), func() error {
		if !s.isActive(id) {
			return nil
		}
		return s.submitters.FinishedJob(ctx, addr, id, s.self)
	})
	if err != nil {
		log.WithFields(log.Fields{"jobID": id, "submitter": addr, "error": err}).Error("Couldn't reach submitter, leaving status to gossip")
	}
	return err
}

func (s *Server) submitterAddr(host net.IP) string {
	for _, n := range s.members.Members() {
		if n.Addr.Equal(host) {
			return n.RPCAddr()
		}
	}
	return cluster.Node{Addr: host}.RPCAddr()
}

func (s *Server) isActive(id job.ID) bool {
	active := false
	s.store.View(func(st state.State) { active = st.IsActive(id) })
	return active
}

// FinishedJob is called by a worker when a job this node submitted is done.
func (s *Server) FinishedJob(ctx context.Context, id job.ID, worker cluster.Node) error {
	if !id.Valid() {
		return errors.Wrapf(job.ErrMalformedID, "%q", id)
	}
	if s.scheduler == nil {
		return errors.New("this node doesn't schedule jobs")
	}
	if ip := worker.Addr.To4(); ip != nil {
		worker.Addr = ip
	}
	log.WithFields(log.Fields{"jobID": id, "node": worker.Name}).Info("Worker finished job")
	s.scheduler.FinishJob(worker, id)
	return nil
}

// CloseJob removes id from the ledger and deletes its files, aborting the
// task if it is still running. Closing a job that isn't open does nothing.
func (s *Server) CloseJob(ctx context.Context, id job.ID) error {
	if !id.Valid() {
		return errors.Wrapf(job.ErrMalformedID, "%q", id)
	}
	released := false
	err := s.store.Transact(func(st *state.State) error {
		released = st.Release(id)
		return nil
	})
	if err != nil {
		return err
	}
	if !released {
		log.WithFields(log.Fields{"jobID": id}).Debug("Close of job that isn't open")
		return nil
	}

	s.mu.Lock()
	p := s.running[id]
	s.mu.Unlock()
	if p != nil {
		log.WithFields(log.Fields{"jobID": id}).Info("Aborting job closed while running")
		p.Abort()
	}
	if err := os.RemoveAll(s.ws.ActiveJob(id)); err != nil {
		log.WithFields(log.Fields{"jobID": id, "error": err}).Error("Couldn't remove job directory")
	}
	s.stat.Counter(stats.AgentJobsClosed).Inc(1)
	log.WithFields(log.Fields{"jobID": id}).Info("Closed job")
	s.PublishStatus()
	return nil
}

// CurrentStatus reports on every job in the ledger.
func (s *Server) CurrentStatus(ctx context.Context) (map[job.ID]job.Info, error) {
	var active []state.Admission
	s.store.View(func(st state.State) { active = st.Active })
	infos := make(map[job.ID]job.Info, len(active))
	for _, a := range active {
		info := job.Info{Grid: a.Grid, Status: job.Active, Started: a.Opened}
		if info.Grid == "" {
			if j, err := job.Load(s.ws.ActiveJob(a.ID, workspace.JobFile)); err == nil {
				info.Grid = j.Grid
			}
		}
		progress, fi, err := s.progress(a.ID)
		if err == nil {
			info.Status = progress
			if progress.IsDone() {
				finished := fi.ModTime()
				info.Finished = &finished
			}
		}
		infos[a.ID] = info
	}
	return infos, nil
}

// progress is the job's recorded status, or the percentage the task wrote
// to its progress file while it is active.
func (s *Server) progress(id job.ID) (job.Progress, os.FileInfo, error) {
	progress, fi, err := s.ws.ReadStatus(id)
	if err != nil || progress != job.Active {
		return progress, fi, err
	}
	data, err := os.ReadFile(s.ws.ActiveJob(id, workspace.ProgressFile))
	if err != nil {
		return progress, fi, nil
	}
	if pct, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
		progress = job.Percent(pct)
	}
	return progress, fi, nil
}

// Statuses are the statuses of every job in the ledger, as gossiped.
func (s *Server) Statuses() []job.Status {
	var active []state.Admission
	s.store.View(func(st state.State) { active = st.Active })
	statuses := make([]job.Status, 0, len(active))
	for _, a := range active {
		progress, _, err := s.progress(a.ID)
		if err != nil {
			continue
		}
		statuses = append(statuses, job.Status{ID: a.ID, Progress: progress, Host: s.self.Addr})
	}
	return statuses
}

// PublishStatus pushes the jobs tag if it changed since the last push.
func (s *Server) PublishStatus() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	statuses := s.Statuses()
	s.stat.Gauge(stats.AgentActiveJobs).Update(int64(len(statuses)))
	value, err := job.FormatStatuses(s.self.Addr, statuses)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Couldn't format job statuses")
		return
	}
	if s.published != nil && *s.published == value {
		s.stat.Counter(stats.AgentTagPublishesSuppressed).Inc(1)
		return
	}
	if err := s.members.PublishTag(cluster.TagJobs, value); err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Couldn't publish job statuses")
		return
	}
	s.published = &value
	s.stat.Counter(stats.AgentTagPublishes).Inc(1)
	log.WithFields(log.Fields{"jobs": value}).Debug("Published job statuses")
}

// RunPublisher republishes job statuses and load every StatusInterval until
// ctx is done.
func (s *Server) RunPublisher(ctx context.Context) {
	ticker := time.NewTicker(s.config.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PublishStatus()
			load := strconv.FormatFloat(system.Load(), 'f', 2, 64)
			if err := s.members.PublishTag(cluster.TagLoad, load); err != nil {
				log.WithFields(log.Fields{"error": err}).Error("Couldn't publish load")
			}
		}
	}
}

func (s *Server) Nodes(ctx context.Context, grid string) ([]cluster.Node, error) {
	return s.members.Nodes(grid), nil
}

func (s *Server) JoinGrids(ctx context.Context, grids ...string) error {
	return s.members.JoinGrids(grids...)
}

func (s *Server) LeaveGrids(ctx context.Context, grids ...string) error {
	return s.members.LeaveGrids(grids...)
}

// Wait blocks until running jobs and their callbacks are done.
func (s *Server) Wait() {
	s.tracker.Wait()
}
