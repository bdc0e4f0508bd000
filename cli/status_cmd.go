package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ygrid/ygrid/job"
)

type statusCmd struct{}

func (c *statusCmd) registerFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "status [node addr...]",
		Short: "list the jobs open on nodes, the local node by default",
	}
}

func (c *statusCmd) run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	addrs := args
	if len(addrs) == 0 {
		addrs = []string{cl.target()}
	}
	for _, addr := range addrs {
		infos, err := cl.agents().CurrentStatus(background(cmd), addr)
		if err != nil {
			return fmt.Errorf("Error getting status from %v: %v", addr, err)
		}
		if len(addrs) > 1 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", addr)
		}
		printStatus(cmd.OutOrStdout(), infos)
	}
	return nil
}

func printStatus(w io.Writer, infos map[job.ID]job.Info) {
	ids := make([]string, 0, len(infos))
	for id := range infos {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		info := infos[job.ID(id)]
		grid := info.Grid
		if grid == "" {
			grid = "-"
		}
		line := fmt.Sprintf("%s %-12s %-7s started %s", id, grid, info.Status, info.Started.Format(time.RFC3339))
		if info.Finished != nil {
			line += " finished " + info.Finished.Format(time.RFC3339)
		}
		fmt.Fprintln(w, line)
	}
}
