package os

import (
	"os/exec"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ygrid/ygrid/runner/execer"
)

// Implements runner/execer.Process
type process struct {
	cmd   *exec.Cmd
	ats   int // Abort Timeout before sigkill, in Seconds
	jobID string

	waitOnce sync.Once
	done     chan struct{}

	mutex  sync.Mutex
	result *execer.ProcessStatus
}

// Wait for the process to finish.
// If the command finishes without error return the status COMPLETE and exit Code 0.
// If the command fails, and we can get the exit code from the command, return COMPLETE with the failing exit code.
// if the command fails and we cannot get the exit code from the command, return FAILED and the error
// that prevented getting the exit code.
func (p *process) Wait() execer.ProcessStatus {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		log.WithFields(
			log.Fields{
				"pid":   p.cmd.Process.Pid,
				"jobID": p.jobID,
			}).Info("Finished waiting for process")

		p.mutex.Lock()
		if p.result == nil {
			result := statusFromError(err)
			p.result = &result
		}
		p.mutex.Unlock()
		close(p.done)
	})
	<-p.done
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return *p.result
}

func statusFromError(err error) (result execer.ProcessStatus) {
	if err == nil {
		result.State = execer.COMPLETE
		return result
	}
	if err, ok := err.(*exec.ExitError); ok {
		// the command returned an error, if we can get a WaitStatus from the error,
		// we can get the commands exit code
		if status, ok := err.Sys().(syscall.WaitStatus); ok {
			result.State = execer.COMPLETE
			result.ExitCode = status.ExitStatus()
			if status.Signaled() {
				result.ExitCode = 128 + int(status.Signal())
			}
			return result
		}
		result.State = execer.FAILED
		result.Error = "Could not find WaitStatus from exiterr.Sys()"
		return result
	}
	result.State = execer.FAILED
	result.Error = err.Error()
	return result
}

// Abort sends SIGTERM to the process, allowing for graceful exit, then
// SIGKILLs its whole process group if it hasn't exited after ats seconds.
func (p *process) Abort() execer.ProcessStatus {
	p.mutex.Lock()
	if p.result != nil {
		defer p.mutex.Unlock()
		return *p.result
	}
	p.result = &execer.ProcessStatus{State: execer.FAILED, ExitCode: -1, Error: "Aborted"}
	p.mutex.Unlock()

	pid := p.cmd.Process.Pid
	go p.Wait()

	if err := p.cmd.Process.Signal(unix.SIGTERM); err != nil {
		log.WithFields(
			log.Fields{
				"pid":   pid,
				"jobID": p.jobID,
				"error": err,
			}).Error("Error aborting command via SIGTERM")
	} else {
		log.WithFields(
			log.Fields{
				"pid":   pid,
				"jobID": p.jobID,
			}).Info("Aborting process via SIGTERM")
	}

	select {
	case <-p.done:
		p.setError(" (SIGTERM)")
	case <-time.After(time.Duration(p.ats) * time.Second):
		cleanupProcs(pid)
		<-p.done
		p.setError(" (SIGKILL)")
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return *p.result
}

func (p *process) setError(suffix string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.result.Error += suffix
}
