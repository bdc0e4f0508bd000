package execer

import (
	"io"
)

// Execer lets you run one Unix command. It doesn't know about jobs or grids;
// it's at the level of os/exec, not exec-as-a-service.

type Command struct {
	Argv    []string
	Dir     string
	EnvVars map[string]string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// JobID is only used to tag log lines.
	JobID string
}

type ProcessState int

const (
	UNKNOWN ProcessState = iota
	RUNNING
	COMPLETE
	FAILED
)

func (s ProcessState) IsDone() bool {
	return s == COMPLETE || s == FAILED
}

func (s ProcessState) String() string {
	switch s {
	case RUNNING:
		return "RUNNING"
	case COMPLETE:
		return "COMPLETE"
	case FAILED:
		return "FAILED"
	}
	return "UNKNOWN"
}

type Execer interface {
	Exec(command Command) (Process, error)
}

type Process interface {
	Wait() ProcessStatus
	Abort() ProcessStatus
}

// ProcessStatus is how a process ended. A command that ran and exited
// non-zero is COMPLETE with that ExitCode; FAILED means we couldn't run it
// or couldn't tell how it ended.
type ProcessStatus struct {
	State    ProcessState
	ExitCode int
	Error    string
}
