// Package memory is an in-process membership backend. Every member joined
// to the same Network sees every other one.
package memory

import (
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/ygrid/ygrid/cloud/cluster"
)

type Network struct {
	mu      sync.Mutex
	members map[string]cluster.Member
}

func NewNetwork() *Network {
	return &Network{members: make(map[string]cluster.Member)}
}

// Join returns a backend for a member named name at addr.
func (n *Network) Join(name string, addr net.IP) *Member {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.members[name] = cluster.Member{Name: name, Addr: addr}
	return &Member{net: n, name: name}
}

func (n *Network) list() []cluster.Member {
	n.mu.Lock()
	defer n.mu.Unlock()
	var members []cluster.Member
	for _, m := range n.members {
		members = append(members, cluster.Member{Name: m.Name, Addr: m.Addr, Tags: copyTags(m.Tags)})
	}
	return members
}

// Member is one node's view of a Network.
type Member struct {
	net  *Network
	name string
}

var _ cluster.Backend = (*Member)(nil)

func (m *Member) Fetch() ([]cluster.Node, error) {
	return cluster.ParseMembers(m.net.list()), nil
}

func (m *Member) SetTags(tags map[string]string) error {
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	member, ok := m.net.members[m.name]
	if !ok {
		return errors.Errorf("%s has left the network", m.name)
	}
	member.Tags = copyTags(tags)
	m.net.members[m.name] = member
	return nil
}

func (m *Member) Close() error {
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	delete(m.net.members, m.name)
	return nil
}

func copyTags(tags map[string]string) map[string]string {
	c := make(map[string]string, len(tags))
	for k, v := range tags {
		c[k] = v
	}
	return c
}
