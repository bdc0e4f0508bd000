package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ygrid/ygrid/agent"
	exits "github.com/ygrid/ygrid/common/errors"
	"github.com/ygrid/ygrid/common/stats"
	"github.com/ygrid/ygrid/config/jsonconfig"
	"github.com/ygrid/ygrid/config/ygridconfig"
)

type startCmd struct {
	config string
	grids  []string
	cpus   int
}

func (c *startCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "start",
		Short: "run a node until interrupted",
		Args:  cobra.NoArgs,
	}
	r.Flags().StringVar(&c.config, "config", "", "node config: a JSON object or the path of a file holding one")
	r.Flags().StringSliceVar(&c.grids, "grid", nil, "grids to join, in addition to the configured ones")
	r.Flags().IntVar(&c.cpus, "cpus", 0, "jobs to run at once, if not the number of CPUs")
	return r
}

func (c *startCmd) run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	text, err := jsonconfig.GetConfigText(c.config)
	if err != nil {
		return exits.NewError(err, exits.ConfigExitCode)
	}
	cfg, err := ygridconfig.Parse(text)
	if err != nil {
		return exits.NewError(err, exits.ConfigExitCode)
	}
	cfg.Grids = append(cfg.Grids, c.grids...)
	if c.cpus > 0 {
		cfg.CPUs = c.cpus
	}

	stat := stats.DefaultStatsReceiver().Precision(time.Millisecond)
	node, err := agent.NewNode(cfg, stat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(background(cmd))
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("Received %v, stopping", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return node.Run(ctx)
}
