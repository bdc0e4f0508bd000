package cluster

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ygrid/ygrid/job"
)

// ProtocolVersion is advertised in the ver tag. Members advertising anything
// else are not listed.
const ProtocolVersion = "1"

const (
	DefaultRPCPort  = 7947
	DefaultSyncPort = 42351
)

// Tag keys a node advertises.
const (
	TagVersion  = "ver"
	TagOS       = "os"
	TagCPUs     = "cpu"
	TagGHz      = "ghz"
	TagMemory   = "mem"
	TagLoad     = "load"
	TagGrids    = "grids"
	TagJobs     = "jobs"
	TagRPCPort  = "rpc"
	TagSyncPort = "sync"
)

// DefaultGrid is the grid every node belongs to when it names none.
const DefaultGrid = ""

var ErrWrongVersion = errors.New("member has an unsupported protocol version")

type NodeId string

// Node is a schedulable peer, decoded from the tags it advertises.
type Node struct {
	Name string
	Addr net.IP

	OS    string
	CPUs  int
	GHz   float64
	MemGB float64
	Load  float64

	// Grids the node has joined. Empty means only the default grid.
	Grids []string

	// Jobs are the statuses the node reports as a worker.
	Jobs []job.Status

	RPCPort  int
	SyncPort int
}

func (n Node) Id() NodeId {
	return NodeId(n.Name)
}

func (n Node) String() string {
	return fmt.Sprintf("%s(%s)", n.Name, n.Addr)
}

// Power is the node's aggregate compute, cpus times clock.
func (n Node) Power() float64 {
	return float64(n.CPUs) * n.GHz
}

// InGrid reports whether the node accepts jobs for grid.
func (n Node) InGrid(grid string) bool {
	if len(n.Grids) == 0 {
		return grid == DefaultGrid
	}
	for _, g := range n.Grids {
		if g == grid {
			return true
		}
	}
	return false
}

// RPCAddr is the host:port of the node's agent service.
func (n Node) RPCAddr() string {
	port := n.RPCPort
	if port == 0 {
		port = DefaultRPCPort
	}
	return net.JoinHostPort(n.Addr.String(), strconv.Itoa(port))
}

// SyncAddr is the host:port of the node's file-sync service.
func (n Node) SyncAddr() string {
	port := n.SyncPort
	if port == 0 {
		port = DefaultSyncPort
	}
	return net.JoinHostPort(n.Addr.String(), strconv.Itoa(port))
}

// Tags formats the node as the tags it advertises.
func (n Node) Tags() (map[string]string, error) {
	tags := map[string]string{
		TagVersion: ProtocolVersion,
		TagOS:      n.OS,
		TagCPUs:    strconv.Itoa(n.CPUs),
		TagGHz:     formatFloat(n.GHz),
		TagMemory:  formatFloat(n.MemGB),
		TagLoad:    formatFloat(n.Load),
	}
	if len(n.Grids) > 0 {
		tags[TagGrids] = FormatList(n.Grids)
	}
	if len(n.Jobs) > 0 {
		jobs, err := job.FormatStatuses(n.Addr, n.Jobs)
		if err != nil {
			return nil, err
		}
		tags[TagJobs] = jobs
	}
	if n.RPCPort != 0 {
		tags[TagRPCPort] = strconv.Itoa(n.RPCPort)
	}
	if n.SyncPort != 0 {
		tags[TagSyncPort] = strconv.Itoa(n.SyncPort)
	}
	return tags, nil
}

// ParseNode decodes a member's advertised tags.
func ParseNode(name string, addr net.IP, tags map[string]string) (Node, error) {
	if tags[TagVersion] != ProtocolVersion {
		return Node{}, errors.Wrapf(ErrWrongVersion, "%s has ver=%q", name, tags[TagVersion])
	}
	if addr.To4() == nil {
		return Node{}, errors.Errorf("%s has non-IPv4 address %v", name, addr)
	}
	n := Node{Name: name, Addr: addr.To4(), OS: tags[TagOS]}

	var err error
	parseInt := func(key string) int {
		v, perr := strconv.Atoi(tags[key])
		if perr != nil && tags[key] != "" && err == nil {
			err = errors.Wrapf(perr, "%s tag %s", name, key)
		}
		return v
	}
	parseFloat := func(key string) float64 {
		v, perr := strconv.ParseFloat(tags[key], 64)
		if perr != nil && tags[key] != "" && err == nil {
			err = errors.Wrapf(perr, "%s tag %s", name, key)
		}
		return v
	}
	n.CPUs = parseInt(TagCPUs)
	n.GHz = parseFloat(TagGHz)
	n.MemGB = parseFloat(TagMemory)
	n.Load = parseFloat(TagLoad)
	n.RPCPort = parseInt(TagRPCPort)
	n.SyncPort = parseInt(TagSyncPort)
	if err != nil {
		return Node{}, err
	}
	n.Grids = ParseList(tags[TagGrids])
	if n.Jobs, err = job.ParseStatuses(n.Addr, tags[TagJobs]); err != nil {
		return Node{}, errors.Wrapf(err, "%s tag %s", name, TagJobs)
	}
	return n, nil
}

// ParseList splits a comma-separated tag value, dropping empty names.
func ParseList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// FormatList joins items as a sorted, de-duplicated tag value.
func FormatList(items []string) string {
	seen := map[string]bool{}
	var out []string
	for _, item := range items {
		if item != "" && !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type NodeSorter []Node

func (n NodeSorter) Len() int           { return len(n) }
func (n NodeSorter) Swap(i, j int)      { n[i], n[j] = n[j], n[i] }
func (n NodeSorter) Less(i, j int) bool { return n[i].Id() < n[j].Id() }

type NodeUpdateType int

const (
	NodeAdded NodeUpdateType = iota
	NodeRemoved
	NodeUpdated
)

func (t NodeUpdateType) String() string {
	switch t {
	case NodeAdded:
		return "NodeAdded"
	case NodeRemoved:
		return "NodeRemoved"
	case NodeUpdated:
		return "NodeUpdated"
	}
	return "Unknown"
}

// NodeUpdate represents a change to the cluster
type NodeUpdate struct {
	UpdateType NodeUpdateType
	Id         NodeId
	Node       Node // Not set for removes
}

func (u NodeUpdate) String() string {
	return fmt.Sprintf("%v %v", u.UpdateType, u.Id)
}

// Helper functions to create NodeUpdates

func NewAdd(node Node) NodeUpdate {
	return NodeUpdate{NodeAdded, node.Id(), node}
}

func NewUpdate(node Node) NodeUpdate {
	return NodeUpdate{NodeUpdated, node.Id(), node}
}

func NewRemove(id NodeId) NodeUpdate {
	return NodeUpdate{
		UpdateType: NodeRemoved,
		Id:         id,
	}
}
