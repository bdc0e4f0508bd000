// Package docker runs commands inside containers. The command's working
// directory is bind-mounted at the same path, so job files and the
// YGRID_* paths in its environment resolve the same inside and out.
package docker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	log "github.com/sirupsen/logrus"

	"github.com/ygrid/ygrid/runner/execer"
)

const DefaultImage = "alpine:latest"

// Implements runner/execer.Execer
type dockerExecer struct {
	cli   *client.Client
	image string
}

// NewExecer connects to the local docker daemon using the standard DOCKER_* environment.
func NewExecer(image string) (execer.Execer, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	if image == "" {
		image = DefaultImage
	}
	return &dockerExecer{cli: cli, image: image}, nil
}

func (e *dockerExecer) Exec(command execer.Command) (execer.Process, error) {
	if len(command.Argv) == 0 {
		return nil, fmt.Errorf("No command specified.")
	}
	ctx := context.Background()

	cfg := &container.Config{
		Image:      e.image,
		Cmd:        command.Argv,
		Env:        envList(command.EnvVars),
		WorkingDir: command.Dir,
		Tty:        false,
		OpenStdin:  command.Stdin != nil,
		StdinOnce:  command.Stdin != nil,
	}
	host := &container.HostConfig{}
	if command.Dir != "" {
		host.Mounts = []mount.Mount{{Type: mount.TypeBind, Source: command.Dir, Target: command.Dir}}
	}
	resp, err := e.cli.ContainerCreate(ctx, cfg, host, nil, nil, "")
	if err != nil {
		return nil, err
	}
	p := &process{cli: e.cli, id: resp.ID, jobID: command.JobID, stdout: command.Stdout, stderr: command.Stderr}

	if command.Stdin != nil {
		hijacked, err := e.cli.ContainerAttach(ctx, resp.ID, types.ContainerAttachOptions{Stream: true, Stdin: true})
		if err != nil {
			p.remove()
			return nil, err
		}
		go func() {
			defer hijacked.Close()
			io.Copy(hijacked.Conn, command.Stdin)
			hijacked.CloseWrite()
		}()
	}

	if err := e.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		p.remove()
		return nil, err
	}
	log.WithFields(
		log.Fields{
			"container": shortID(resp.ID),
			"jobID":     command.JobID,
			"image":     e.image,
		}).Info("Started container")
	return p, nil
}

func envList(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Implements runner/execer.Process
type process struct {
	cli    *client.Client
	id     string
	jobID  string
	stdout io.Writer
	stderr io.Writer

	once   sync.Once
	mu     sync.Mutex
	result *execer.ProcessStatus
}

func (p *process) Wait() execer.ProcessStatus {
	p.once.Do(func() {
		status := p.wait()
		p.mu.Lock()
		if p.result == nil {
			p.result = &status
		}
		p.mu.Unlock()
		p.remove()
	})
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.result
}

func (p *process) wait() execer.ProcessStatus {
	ctx := context.Background()
	var result execer.ProcessStatus
	statusCh, errCh := p.cli.ContainerWait(ctx, p.id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			result.State = execer.FAILED
			result.Error = err.Error()
			return result
		}
	case st := <-statusCh:
		result.State = execer.COMPLETE
		result.ExitCode = int(st.StatusCode)
		if st.Error != nil {
			result.State = execer.FAILED
			result.Error = st.Error.Message
		}
	}

	out, err := p.cli.ContainerLogs(ctx, p.id, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		log.WithFields(log.Fields{"container": shortID(p.id), "jobID": p.jobID, "error": err}).Error("Couldn't read container logs")
		return result
	}
	defer out.Close()
	stdout, stderr := p.stdout, p.stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if _, err := stdcopy.StdCopy(stdout, stderr, out); err != nil {
		log.WithFields(log.Fields{"container": shortID(p.id), "jobID": p.jobID, "error": err}).Error("Couldn't copy container logs")
	}
	return result
}

func (p *process) Abort() execer.ProcessStatus {
	p.mu.Lock()
	if p.result == nil {
		p.result = &execer.ProcessStatus{State: execer.FAILED, ExitCode: -1, Error: "Aborted"}
	}
	p.mu.Unlock()
	if err := p.cli.ContainerStop(context.Background(), p.id, container.StopOptions{}); err != nil {
		log.WithFields(log.Fields{"container": shortID(p.id), "jobID": p.jobID, "error": err}).Error("Couldn't stop container")
	}
	return p.Wait()
}

func (p *process) remove() {
	if err := p.cli.ContainerRemove(context.Background(), p.id, types.ContainerRemoveOptions{Force: true}); err != nil {
		log.WithFields(log.Fields{"container": shortID(p.id), "error": err}).Warn("Couldn't remove container")
	}
}
