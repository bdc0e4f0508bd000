package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ygrid/ygrid/cloud/cluster"
)

type nodesCmd struct {
	grid string
}

func (c *nodesCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "nodes",
		Short: "list the nodes the local node can see",
		Args:  cobra.NoArgs,
	}
	r.Flags().StringVar(&c.grid, "grid", "", "only list nodes in this grid")
	return r
}

func (c *nodesCmd) run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	nodes, err := cl.agents().Nodes(background(cmd), cl.target(), c.grid)
	if err != nil {
		return err
	}
	printNodes(cmd.OutOrStdout(), nodes)
	return nil
}

func printNodes(w io.Writer, nodes []cluster.Node) {
	for _, n := range nodes {
		grids := strings.Join(n.Grids, ",")
		if grids == "" {
			grids = "-"
		}
		fmt.Fprintf(w, "%-20s %-15s %-8s cpus=%d ghz=%.2f mem=%.1fG load=%.2f jobs=%d grids=%s\n",
			n.Name, n.Addr, n.OS, n.CPUs, n.GHz, n.MemGB, n.Load, len(n.Jobs), grids)
	}
}

type joinCmd struct{}

func (c *joinCmd) registerFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "join grid...",
		Short: "add the local node to grids",
		Args:  cobra.MinimumNArgs(1),
	}
}

func (c *joinCmd) run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	return cl.agents().JoinGrids(background(cmd), cl.target(), args...)
}

type leaveCmd struct{}

func (c *leaveCmd) registerFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "leave grid...",
		Short: "remove the local node from grids",
		Args:  cobra.MinimumNArgs(1),
	}
}

func (c *leaveCmd) run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	return cl.agents().LeaveGrids(background(cmd), cl.target(), args...)
}
