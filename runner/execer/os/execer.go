package os

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ygrid/ygrid/runner/execer"
)

// AbortTimeoutSec is how long Abort waits after SIGTERM before killing the process group.
const AbortTimeoutSec = 10

// Implements runner/execer.Execer
type osExecer struct{}

func NewExecer() execer.Execer {
	return &osExecer{}
}

// Exec starts command in its own process group. Its environment is this
// process's environment plus command.EnvVars.
func (e *osExecer) Exec(command execer.Command) (execer.Process, error) {
	if len(command.Argv) == 0 {
		return nil, fmt.Errorf("No command specified.")
	}

	cmd := exec.Command(command.Argv[0], command.Argv[1:]...)
	cmd.Dir = command.Dir
	cmd.Env = mergeEnv(os.Environ(), command.EnvVars)

	// Sets pgid of all child processes to cmd's pid
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Stdin = command.Stdin
	cmd.Stdout = command.Stdout
	cmd.Stderr = command.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	log.WithFields(
		log.Fields{
			"pid":   cmd.Process.Pid,
			"jobID": command.JobID,
			"argv":  command.Argv,
		}).Info("Started process")
	return &process{cmd: cmd, ats: AbortTimeoutSec, jobID: command.JobID, done: make(chan struct{})}, nil
}

// mergeEnv appends vars to base in a stable order. Later entries win in os/exec.
func mergeEnv(base []string, vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env
}

// Kill process along with all child processes, assuming no child processes called setpgid
func cleanupProcs(pgid int) (err error) {
	log.WithFields(
		log.Fields{
			"pgid": pgid,
		}).Info("Cleaning up pgid")
	if err = unix.Kill(-pgid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		log.WithFields(
			log.Fields{
				"pgid":  pgid,
				"error": err,
			}).Error("Error cleaning up pgid")
		return err
	}
	return nil
}
