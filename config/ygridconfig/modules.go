package ygridconfig

import (
	"net"

	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/cloud/cluster/etcd"
	"github.com/ygrid/ygrid/cloud/cluster/memory"
	"github.com/ygrid/ygrid/cloud/cluster/serf"
	"github.com/ygrid/ygrid/runner/execer"
	"github.com/ygrid/ygrid/runner/execer/docker"
	osexecer "github.com/ygrid/ygrid/runner/execer/os"
)

// MembershipConfig creates the membership backend for the local node.
type MembershipConfig interface {
	Backend(name string, addr net.IP) (cluster.Backend, error)
}

// ExecerConfig creates the process host jobs run on.
type ExecerConfig interface {
	Execer() (execer.Execer, error)
}

// Nodes in one process using the memory membership all share this network.
var sharedNetwork = memory.NewNetwork()

// MemoryMembership keeps membership in-process, for single-node grids and tests.
type MemoryMembership struct {
	Type string
}

func (c *MemoryMembership) Backend(name string, addr net.IP) (cluster.Backend, error) {
	return sharedNetwork.Join(name, addr), nil
}

// SerfMembership talks to a serf agent's RPC port.
type SerfMembership struct {
	Type string
	Addr string
}

func (c *SerfMembership) Backend(name string, addr net.IP) (cluster.Backend, error) {
	return serf.Dial(c.Addr)
}

// EtcdMembership registers the node in etcd under a lease.
type EtcdMembership struct {
	Type      string
	Endpoints []string
	TTL       Duration
}

func (c *EtcdMembership) Backend(name string, addr net.IP) (cluster.Backend, error) {
	endpoints := c.Endpoints
	if len(endpoints) == 0 {
		endpoints = []string{"127.0.0.1:2379"}
	}
	return etcd.Dial(endpoints, name, addr, c.TTL.Std())
}

type OSExecer struct {
	Type string
}

func (c *OSExecer) Execer() (execer.Execer, error) {
	return osexecer.NewExecer(), nil
}

// DockerExecer runs each job in a container of Image.
type DockerExecer struct {
	Type  string
	Image string
}

func (c *DockerExecer) Execer() (execer.Execer, error) {
	return docker.NewExecer(c.Image)
}
