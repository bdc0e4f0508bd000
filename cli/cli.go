// Package cli is the ygrid command line: it starts a node daemon and talks
// to a running one over its agent RPC port.
package cli

import (
	"context"
	"net"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ygrid/ygrid/agentapi"
	"github.com/ygrid/ygrid/cloud/cluster"
	exits "github.com/ygrid/ygrid/common/errors"
	"github.com/ygrid/ygrid/common/log/hooks"
	"github.com/ygrid/ygrid/job"
)

// CLIClient runs the ygrid command tree.
type CLIClient struct {
	rootCmd *cobra.Command

	addr     string
	logLevel string
	pool     *agentapi.Pool
}

func NewCLIClient() *CLIClient {
	c := &CLIClient{}
	c.rootCmd = &cobra.Command{
		Use:                "ygrid",
		Short:              "ygrid runs shell jobs across a grid of peer nodes",
		SilenceUsage:       true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.Close,
	}
	flags := c.rootCmd.PersistentFlags()
	flags.StringVar(&c.addr, "addr", "", "host:port of the local node's agent service")
	flags.StringVar(&c.logLevel, "log_level", "info", "log everything at this level and above (error|warn|info|debug)")

	c.addCmd(&startCmd{})
	c.addCmd(&submitCmd{})
	c.addCmd(&statusCmd{})
	c.addCmd(&nodesCmd{})
	c.addCmd(&joinCmd{})
	c.addCmd(&leaveCmd{})
	return c
}

func (c *CLIClient) Exec() error {
	return c.rootCmd.Execute()
}

// SetArgs overrides os.Args, for tests.
func (c *CLIClient) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

func (c *CLIClient) setup(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(c.logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if level >= log.DebugLevel {
		log.AddHook(hooks.NewContextHook())
	}
	return nil
}

// Close releases any connections opened by the command.
func (c *CLIClient) Close(cmd *cobra.Command, args []string) error {
	if c.pool != nil {
		return c.pool.Close()
	}
	return nil
}

func (c *CLIClient) agents() *agentapi.Pool {
	if c.pool == nil {
		c.pool = agentapi.NewPool()
	}
	return c.pool
}

func (c *CLIClient) target() string {
	if c.addr == "" {
		return net.JoinHostPort("localhost", strconv.Itoa(cluster.DefaultRPCPort))
	}
	return c.addr
}

func (c *CLIClient) addCmd(cmd command) {
	cobraCmd := cmd.registerFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return withExitCode(cmd.run(c, innerCmd, args))
	}
	c.rootCmd.AddCommand(cobraCmd)
}

// withExitCode tags errors from a node with the exit code ygrid should end with.
func withExitCode(err error) error {
	switch {
	case err == nil:
		return nil
	case job.IsValidationError(err) || agentapi.IsInvalid(err):
		return exits.NewError(err, exits.InvalidJobExitCode)
	case agentapi.IsUnreachable(err):
		return exits.NewError(err, exits.UnreachableExitCode)
	}
	return err
}

type command interface {
	registerFlags() *cobra.Command
	run(cl *CLIClient, cmd *cobra.Command, args []string) error
}

func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
