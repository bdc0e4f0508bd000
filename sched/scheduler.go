package sched

//go:generate mockgen -source=scheduler.go -package=sched -destination=scheduler_mock.go

import (
	"context"
	"net"
	"os"
	"path"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ygrid/ygrid/agentapi"
	"github.com/ygrid/ygrid/async"
	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/common/log/hooks"
	"github.com/ygrid/ygrid/common/stats"
	"github.com/ygrid/ygrid/job"
	"github.com/ygrid/ygrid/runner/execer"
	"github.com/ygrid/ygrid/state"
	"github.com/ygrid/ygrid/syncer"
	"github.com/ygrid/ygrid/workspace"
)

const (
	DefaultPollInterval  = 1500 * time.Millisecond
	DefaultCallbackRetry = 2 * time.Minute
	DefaultShell         = "/bin/sh"
)

// Used to get proper logging from tests.
func init() {
	if loglevel := os.Getenv("YGRID_LOGLEVEL"); loglevel != "" {
		level, err := log.ParseLevel(loglevel)
		if err != nil {
			log.Error(err)
			return
		}
		log.SetLevel(level)
		log.AddHook(hooks.NewContextHook())
	}
}

// AgentClient is the part of a worker's RPC surface the scheduler calls.
// Each call is addressed to the worker's agent host:port.
type AgentClient interface {
	OpenJob(ctx context.Context, addr string, id job.ID) (bool, error)
	ExecuteJob(ctx context.Context, addr string, id job.ID) error
	CloseJob(ctx context.Context, addr string, id job.ID) error
}

type Config struct {
	// PollInterval is how often the queue is checked when empty, and the
	// pause between passes that left jobs queued.
	PollInterval time.Duration
	// CallbackRetry bounds retries of closeJob and result fetches.
	CallbackRetry time.Duration
	// Shell runs done hooks as "Shell -c hook".
	Shell string
}

// Scheduler is the submitter side of a node. It dispatches the jobs queued
// in the local workspace and finishes them once their worker reports done.
type Scheduler struct {
	ws      *workspace.Workspace
	store   *state.Store
	members cluster.Membership
	agents  AgentClient
	sync    syncer.Syncer
	exec    execer.Execer
	local   net.IP
	config  Config
	tracker *async.Tracker
	stat    stats.StatsReceiver

	// Jobs waiting for a worker to release them before they're queued again.
	mu        sync.Mutex
	requeuing map[job.ID]bool
}

func NewScheduler(
	ws *workspace.Workspace,
	store *state.Store,
	members cluster.Membership,
	agents AgentClient,
	sync syncer.Syncer,
	exec execer.Execer,
	local net.IP,
	config Config,
	stat stats.StatsReceiver,
) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.CallbackRetry <= 0 {
		config.CallbackRetry = DefaultCallbackRetry
	}
	if config.Shell == "" {
		config.Shell = DefaultShell
	}
	return &Scheduler{
		ws:        ws,
		store:     store,
		members:   members,
		agents:    agents,
		sync:      sync,
		exec:      exec,
		local:     local,
		config:    config,
		tracker:   async.NewTracker(),
		stat:      stat.Scope("scheduler"),
		requeuing: make(map[job.ID]bool),
	}
}

// Run dispatches queued jobs until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		ids, err := s.WaitForJobs(ctx)
		if err != nil {
			return err
		}
		if deferred := s.DispatchJobs(ctx, ids); deferred > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.PollInterval):
			}
		}
	}
}

// WaitForJobs blocks until the queue is non-empty and returns every queued
// job in submission order.
func (s *Scheduler) WaitForJobs(ctx context.Context) ([]job.ID, error) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for {
		ids, err := s.ws.QueuedJobs()
		if err != nil {
			log.WithFields(log.Fields{"error": err}).Error("Couldn't list queued jobs")
		} else {
			s.stat.Gauge(stats.SchedQueuedJobs).Update(int64(len(ids)))
			if len(ids) > 0 {
				return ids, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DispatchJobs tries each job in order. Once a grid has no node willing to
// take a job, later jobs for that grid are left queued without trying any
// node. Returns the number of jobs left queued.
func (s *Scheduler) DispatchJobs(ctx context.Context, ids []job.ID) int {
	log.Infof("Dispatching %d jobs", len(ids))
	full := make(map[string]bool)
	deferred := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return deferred + 1
		}
		if s.isRequeuing(id) {
			deferred++
			continue
		}
		j, err := s.loadQueued(id)
		if err != nil {
			if !os.IsNotExist(errors.Cause(err)) {
				log.WithFields(log.Fields{"jobID": id, "error": err}).Error("Dropping unreadable queued job")
				os.Remove(s.ws.QueuedJob(id))
			}
			continue
		}
		if full[j.Grid] {
			log.WithFields(log.Fields{"jobID": id, "grid": j.Grid}).Info("Grid is full, leaving job queued")
			deferred++
			continue
		}
		switch s.dispatch(ctx, id, j) {
		case rejected:
			log.WithFields(log.Fields{"jobID": id, "grid": j.Grid}).Info("No node accepted job, deferring grid")
			s.stat.Counter(stats.SchedGridsDeferred).Inc(1)
			full[j.Grid] = true
			deferred++
		case returned:
			deferred++
		}
	}
	return deferred
}

// outcome is how an attempt to dispatch one job ended.
type outcome int

const (
	// dispatched: a worker has been told to run the job.
	dispatched outcome = iota
	// rejected: no node accepted the job. It is still queued.
	rejected
	// returned: a worker accepted but the job couldn't be sent to it. It
	// goes back in the queue once the worker has released it.
	returned
)

func (s *Scheduler) loadQueued(id job.ID) (*job.Job, error) {
	if !id.Valid() {
		return nil, errors.Wrapf(job.ErrMalformedID, "queued job %q", id)
	}
	j, err := job.Load(s.ws.QueuedJob(id))
	if err != nil {
		return nil, err
	}
	if j.ID() != id {
		return nil, errors.Wrapf(job.ErrMalformedID, "queued job %v holds record for %v", id, j.ID())
	}
	return j, nil
}

// dispatch offers the job to each candidate in rank order, stopping at the
// first that accepts.
func (s *Scheduler) dispatch(ctx context.Context, id job.ID, j *job.Job) outcome {
	defer s.stat.Latency(stats.SchedDispatchLatency_ms).Time().Stop()

	ranked := RankNodes(j, s.members.Nodes(j.Grid), s.local)
	log.WithFields(log.Fields{"jobID": id, "grid": j.Grid, "nodes": len(ranked)}).Info("Attempting to dispatch job")
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("Candidates for %s:\n%s", id, spew.Sdump(ranked))
	}

	for _, c := range ranked {
		fields := log.Fields{"jobID": id, "node": c.Node.Name, "score": c.Score}
		s.stat.Counter(stats.SchedDispatchAttempts).Inc(1)
		accepted, err := s.agents.OpenJob(ctx, c.Node.RPCAddr(), id)
		if err != nil {
			if agentapi.IsUnreachable(err) {
				s.stat.Counter(stats.SchedDispatchUnreachable).Inc(1)
				log.WithFields(fields).WithField("error", err).Info("Node unreachable")
			} else {
				s.stat.Counter(stats.SchedDispatchRejected).Inc(1)
				log.WithFields(fields).WithField("error", err).Error("Node failed to open job")
			}
			continue
		}
		if !accepted {
			s.stat.Counter(stats.SchedDispatchRejected).Inc(1)
			log.WithFields(fields).Info("Node rejected job")
			continue
		}
		s.stat.Counter(stats.SchedDispatchAccepted).Inc(1)
		log.WithFields(fields).Info("Node accepted job")
		return s.startJob(ctx, id, j, c.Node)
	}
	return rejected
}

// startJob moves the job to opened, sends it to the worker and tells the
// worker to run it.
//
// Until executeJob is sent a failure hands the job back to the queue. After
// that the worker may already be running it, so a failed executeJob leaves
// the job opened for the worker's done report to finish.
func (s *Scheduler) startJob(ctx context.Context, id job.ID, j *job.Job, worker cluster.Node) outcome {
	fields := log.Fields{"jobID": id, "node": worker.Name}
	files, err := s.send(ctx, id, j, worker)
	if err != nil {
		log.WithFields(fields).WithField("error", err).Error("Couldn't send job, requeueing")
		s.requeue(id, j, worker)
		return returned
	}
	err = s.agents.ExecuteJob(ctx, worker.RPCAddr(), id)
	switch {
	case err == nil:
		log.WithFields(fields).WithField("files", len(files)).Info("Started job")
	case agentapi.IsNotOpen(err) || agentapi.IsInvalid(err):
		log.WithFields(fields).WithField("error", err).Error("Worker refused to run job, requeueing")
		s.requeue(id, j, worker)
		return returned
	default:
		s.stat.Counter(stats.SchedExecuteUnconfirmed).Inc(1)
		log.WithFields(fields).WithField("error", err).Error("Couldn't confirm job started, leaving it opened")
	}
	return dispatched
}

// send records the job as opened on worker and copies its files there.
func (s *Scheduler) send(ctx context.Context, id job.ID, j *job.Job, worker cluster.Node) ([]syncer.File, error) {
	j = j.Copy()
	j.WorkerHost = worker.Addr
	if err := os.MkdirAll(s.ws.OpenedJob(id), 0755); err != nil {
		return nil, err
	}
	if err := j.Save(s.ws.OpenedJob(id, workspace.JobFile)); err != nil {
		return nil, err
	}
	if err := os.Remove(s.ws.QueuedJob(id)); err != nil {
		return nil, err
	}

	files := []syncer.File{s.stageFile(id, workspace.JobFile)}
	for _, name := range j.StagedFiles() {
		files = append(files, s.stageFile(id, name))
	}
	if err := s.sync.Send(ctx, worker.SyncAddr(), files); err != nil {
		return nil, errors.Wrapf(err, "sending %v to %v", id, worker)
	}
	return files, nil
}

func (s *Scheduler) stageFile(id job.ID, name string) syncer.File {
	name = cleanRel(name)
	return syncer.File{
		Src: path.Join(workspace.OpenedJobRel(id), name),
		Dst: path.Join(workspace.ActiveJobRel(id), name),
	}
}

// cleanRel keeps a job-supplied file name inside its job directory.
func cleanRel(name string) string {
	return path.Clean("/" + name)[1:]
}

// requeue releases a job on a worker that accepted it but never ran it, then
// puts it back in the queue. The job isn't dispatched again until the worker
// has let go of it, so a later dispatch can't be closed by this release.
func (s *Scheduler) requeue(id job.ID, j *job.Job, worker cluster.Node) {
	s.mu.Lock()
	s.requeuing[id] = true
	s.mu.Unlock()
	s.stat.Counter(stats.SchedJobsRequeued).Inc(1)

	s.tracker.Go("requeue/"+string(id), func() error {
		defer func() {
			s.mu.Lock()
			delete(s.requeuing, id)
			s.mu.Unlock()
		}()
		fields := log.Fields{"jobID": id, "node": worker.Name}
		if err := s.closeOnWorker(context.Background(), worker, id); err != nil {
			log.WithFields(fields).WithField("error", err).Warn("Couldn't release job on worker")
		}
		if err := j.Save(s.ws.QueuedJob(id)); err != nil {
			log.WithFields(fields).WithField("error", err).Error("Couldn't requeue job")
			return err
		}
		os.Remove(s.ws.OpenedJob(id, workspace.JobFile))
		log.WithFields(fields).Info("Requeued job")
		return nil
	})
}

func (s *Scheduler) isRequeuing(id job.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requeuing[id]
}

// FinishJob handles a worker reporting id done. Only the first report for
// each job does anything: it fetches the results, runs the done hook, and
// closes the job on the worker. Later reports return immediately.
//
// The work happens in the background; the returned AsyncError completes
// once it has.
func (s *Scheduler) FinishJob(worker cluster.Node, id job.ID) *async.AsyncError {
	if !id.Source().Equal(s.local) {
		return async.Completed(nil)
	}
	first := false
	err := s.store.Transact(func(st *state.State) error {
		first = st.MarkFinished(id, time.Now())
		return nil
	})
	if err != nil {
		return async.Completed(err)
	}
	if !first {
		s.stat.Counter(stats.SchedFinishDuplicates).Inc(1)
		log.WithFields(log.Fields{"jobID": id, "node": worker.Name}).Debug("Job already finished")
		return async.Completed(nil)
	}
	return s.tracker.Go(string(id), func() error {
		return s.finish(context.Background(), worker, id)
	})
}

func (s *Scheduler) finish(ctx context.Context, worker cluster.Node, id job.ID) error {
	fields := log.Fields{"jobID": id, "node": worker.Name}
	log.WithFields(fields).Info("Finishing job")

	j, err := job.Load(s.ws.OpenedJob(id, workspace.JobFile))
	if err != nil {
		log.WithFields(fields).WithField("error", err).Warn("No opened record for finished job, closing it on the worker")
		return s.closeOnWorker(ctx, worker, id)
	}

	completed := s.ws.CompletedJob(id)
	if err := os.MkdirAll(completed, 0755); err != nil {
		return err
	}
	if err := j.Save(s.ws.CompletedJob(id, workspace.JobFile)); err != nil {
		return err
	}
	s.fetchResults(ctx, worker, id, j)

	if j.DoneHook != "" {
		s.runHook(id, j)
	}
	closeErr := s.closeOnWorker(ctx, worker, id)
	if err := os.RemoveAll(s.ws.OpenedJob(id)); err != nil {
		log.WithFields(fields).WithField("error", err).Error("Couldn't remove opened job")
	}
	s.stat.Counter(stats.SchedJobsFinished).Inc(1)
	log.WithFields(fields).Info("Finished job")
	return closeErr
}

// fetchResults copies the job's stdio and output files into its completed
// directory. Output files the task didn't create are skipped.
func (s *Scheduler) fetchResults(ctx context.Context, worker cluster.Node, id job.ID, j *job.Job) {
	names := append([]string{workspace.StdoutFile, workspace.StderrFile}, j.OutputFiles...)
	for _, name := range names {
		name = cleanRel(name)
		f := syncer.File{
			Src: path.Join(workspace.ActiveJobRel(id), name),
			Dst: path.Join(workspace.CompletedJobRel(id), name),
		}
		err := async.Retry(ctx, s.config.CallbackRetry, "fetch "+f.Src, func() error {
			err := s.sync.Fetch(ctx, worker.SyncAddr(), []syncer.File{f})
			if os.IsNotExist(errors.Cause(err)) {
				log.WithFields(log.Fields{"jobID": id, "file": name}).Warn("Job produced no such file")
				return nil
			}
			return err
		})
		if err != nil {
			log.WithFields(log.Fields{"jobID": id, "file": name, "error": err}).Error("Couldn't fetch result")
		}
	}
}

func (s *Scheduler) runHook(id job.ID, j *job.Job) {
	paths := workspace.JobPaths(s.ws.CompletedJob(id))
	out, err := os.Create(s.ws.CompletedJob(id, workspace.HookFile))
	if err != nil {
		log.WithFields(log.Fields{"jobID": id, "error": err}).Error("Couldn't create hook output")
		return
	}
	defer out.Close()
	p, err := s.exec.Exec(execer.Command{
		Argv:    []string{s.config.Shell, "-c", j.DoneHook},
		Dir:     paths.Dir,
		EnvVars: j.Env(paths),
		Stdout:  out,
		Stderr:  out,
		JobID:   string(id),
	})
	if err != nil {
		log.WithFields(log.Fields{"jobID": id, "error": err}).Error("Couldn't run done hook")
		return
	}
	st := p.Wait()
	log.WithFields(log.Fields{"jobID": id, "state": st.State, "exitCode": st.ExitCode}).Info("Done hook finished")
}

func (s *Scheduler) closeOnWorker(ctx context.Context, worker cluster.Node, id job.ID) error {
	return async.Retry(ctx, s.config.CallbackRetry, "closeJob "+string(id), func() error {
		return s.agents.CloseJob(ctx, worker.RPCAddr(), id)
	})
}

// WatchMembers finishes jobs as workers report them done, until ctx is done.
func (s *Scheduler) WatchMembers(ctx context.Context) {
	sub := s.members.Subscribe()
	defer sub.Closer.Close()
	for _, n := range sub.InitialMembers {
		s.finishReported(n)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case updates, ok := <-sub.Updates:
			if !ok {
				return
			}
			for _, u := range updates {
				if u.UpdateType == cluster.NodeRemoved {
					continue
				}
				s.finishReported(u.Node)
			}
		}
	}
}

func (s *Scheduler) finishReported(n cluster.Node) {
	for _, st := range n.Jobs {
		if st.Progress.IsDone() {
			s.FinishJob(n, st.ID)
		}
	}
}

// Wait blocks until background finishes and releases are done.
func (s *Scheduler) Wait() {
	s.tracker.Wait()
}
