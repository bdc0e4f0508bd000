package job

import "net"

// Standard variables set in the environment of every task and done hook.
const (
	EnvJobID    = "YGRID_JOB_ID"
	EnvGrid     = "YGRID_GRID"
	EnvSrcHost  = "YGRID_SRC_HOST"
	EnvDstHost  = "YGRID_DST_HOST"
	EnvJobDir   = "YGRID_JOB_DIR"
	EnvStdout   = "YGRID_STDOUT"
	EnvStderr   = "YGRID_STDERR"
	EnvProgress = "YGRID_PROGRESS"
)

// Paths locate a job's files on the node running a command for it.
type Paths struct {
	Dir      string
	Stdout   string
	Stderr   string
	Progress string
}

// Env is the job's own environment overlaid with the standard variables.
func (j *Job) Env(p Paths) map[string]string {
	env := make(map[string]string, len(j.Environment)+8)
	for k, v := range j.Environment {
		env[k] = v
	}
	env[EnvJobID] = string(j.ID())
	env[EnvGrid] = j.Grid
	env[EnvSrcHost] = hostString(j.SourceHost)
	env[EnvDstHost] = hostString(j.WorkerHost)
	env[EnvJobDir] = p.Dir
	env[EnvStdout] = p.Stdout
	env[EnvStderr] = p.Stderr
	env[EnvProgress] = p.Progress
	return env
}

func hostString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
