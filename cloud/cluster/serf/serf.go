// Package serf backs cluster membership with a local serf agent, reached
// over its RPC port. Members and tags come straight from serf's gossip.
package serf

import (
	"sync"

	"github.com/hashicorp/serf/client"
	"github.com/pkg/errors"

	"github.com/ygrid/ygrid/cloud/cluster"
)

const DefaultRPCAddr = "127.0.0.1:7373"

const statusAlive = "alive"

// rpcClient is the part of the serf RPC client this backend uses.
type rpcClient interface {
	MembersFiltered(tags map[string]string, status string, name string) ([]client.Member, error)
	UpdateTags(tags map[string]string, delTags []string) error
	Close() error
}

type Backend struct {
	mu       sync.Mutex
	rpc      rpcClient
	lastKeys map[string]bool
}

var _ cluster.Backend = (*Backend)(nil)

// Dial connects to the serf agent listening for RPC on addr.
func Dial(addr string) (*Backend, error) {
	if addr == "" {
		addr = DefaultRPCAddr
	}
	rpc, err := client.NewRPCClient(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to serf agent at %v", addr)
	}
	return newBackend(rpc), nil
}

func newBackend(rpc rpcClient) *Backend {
	return &Backend{rpc: rpc, lastKeys: map[string]bool{}}
}

// Fetch lists the alive members speaking our protocol version.
func (b *Backend) Fetch() ([]cluster.Node, error) {
	members, err := b.rpc.MembersFiltered(map[string]string{cluster.TagVersion: cluster.ProtocolVersion}, statusAlive, "")
	if err != nil {
		return nil, errors.Wrap(err, "listing serf members")
	}
	converted := make([]cluster.Member, 0, len(members))
	for _, m := range members {
		converted = append(converted, cluster.Member{Name: m.Name, Addr: m.Addr, Tags: m.Tags})
	}
	return cluster.ParseMembers(converted), nil
}

// SetTags updates the agent's tags, deleting any set by an earlier call but
// absent from tags.
func (b *Backend) SetTags(tags map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var deleted []string
	for k := range b.lastKeys {
		if _, ok := tags[k]; !ok {
			deleted = append(deleted, k)
		}
	}
	if err := b.rpc.UpdateTags(tags, deleted); err != nil {
		return errors.Wrap(err, "updating serf tags")
	}
	b.lastKeys = map[string]bool{}
	for k := range tags {
		b.lastKeys[k] = true
	}
	return nil
}

func (b *Backend) Close() error {
	return b.rpc.Close()
}
