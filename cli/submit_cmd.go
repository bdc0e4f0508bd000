package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ygrid/ygrid/job"
)

type submitCmd struct {
	grid         string
	stdin        string
	inputs       []string
	outputs      []string
	env          []string
	doneHook     string
	localWeight  float64
	cpuWeight    float64
	memoryWeight float64
}

func (c *submitCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "submit [flags] -- task...",
		Short: "queue a shell task on the grid and print its job ID",
		Args:  cobra.MinimumNArgs(1),
	}
	f := r.Flags()
	f.StringVar(&c.grid, "grid", "", "grid to run on; empty means any node")
	f.StringVar(&c.stdin, "stdin", "", "file to feed the task on stdin")
	f.StringSliceVar(&c.inputs, "input", nil, "files to copy to the worker")
	f.StringSliceVar(&c.outputs, "output", nil, "files to copy back from the worker")
	f.StringArrayVar(&c.env, "env", nil, "KEY=VALUE to set in the task's environment")
	f.StringVar(&c.doneHook, "done_hook", "", "shell command to run here once the job's results are back")
	f.Float64Var(&c.localWeight, "local_weight", job.DefaultLocalWeight, "score bonus for running on this node")
	f.Float64Var(&c.cpuWeight, "cpu_weight", job.DefaultCPUWeight, "score weight of CPU power")
	f.Float64Var(&c.memoryWeight, "memory_weight", job.DefaultMemoryWeight, "score weight of memory")
	return r
}

// build makes the job described by the flags. Input paths are made absolute
// since the node reads them from its own working directory.
func (c *submitCmd) build(args []string) (*job.Job, error) {
	j := job.New(strings.Join(args, " "))
	j.DoneHook = c.doneHook
	j.OutputFiles = c.outputs
	j.Weights = job.Weights{Local: c.localWeight, CPU: c.cpuWeight, Memory: c.memoryWeight}

	abs := func(p string) (string, error) {
		a, err := filepath.Abs(p)
		return a, errors.Wrapf(err, "input %v", p)
	}
	for _, in := range c.inputs {
		a, err := abs(in)
		if err != nil {
			return nil, err
		}
		j.InputFiles = append(j.InputFiles, a)
	}
	if c.stdin != "" {
		a, err := abs(c.stdin)
		if err != nil {
			return nil, err
		}
		j.Stdin = a
	}
	if len(c.env) > 0 {
		j.Environment = make(map[string]string, len(c.env))
		for _, kv := range c.env {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 || parts[0] == "" {
				return nil, errors.Errorf("env %q is not KEY=VALUE", kv)
			}
			j.Environment[parts[0]] = parts[1]
		}
	}
	return j, j.Validate()
}

func (c *submitCmd) run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	j, err := c.build(args)
	if err != nil {
		return err
	}
	id, err := cl.agents().SubmitJob(background(cmd), cl.target(), c.grid, j)
	if err != nil {
		return errors.Wrap(err, "submitting job")
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
