// Package cluster tracks the live members of a grid and publishes the
// local node's tags. Backends (memory, serf, etcd) only list members and
// store tags; diffing, subscriptions and tag bookkeeping live here.
package cluster

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultFetchInterval = time.Second

// Cluster is a Membership over a Backend. A single goroutine owns the
// current member list; callers talk to it over reqCh.
type Cluster struct {
	backend Backend
	tags    *tagger
	state   *state
	cron    *fetchCron
	reqCh   chan interface{}
	stateCh chan []Node
	subs    []chan []NodeUpdate

	closeOnce sync.Once
	closeErr  error
}

var _ Membership = (*Cluster)(nil)

type refreshReq chan error

// New publishes local tags through backend and starts polling it for members.
func New(backend Backend, localTags map[string]string, fetchInterval time.Duration) (*Cluster, error) {
	tags, err := newTagger(backend, localTags)
	if err != nil {
		return nil, err
	}
	initial, err := backend.Fetch()
	if err != nil {
		log.Warnf("Initial member fetch failed: %v", err)
	}
	if fetchInterval <= 0 {
		fetchInterval = DefaultFetchInterval
	}
	c := &Cluster{
		backend: backend,
		tags:    tags,
		state:   makeState(initial),
		reqCh:   make(chan interface{}),
	}
	c.cron = makeFetchCron(backend, fetchInterval)
	c.stateCh = c.cron.outCh
	go c.loop()
	return c, nil
}

func (c *Cluster) Members() []Node {
	ch := make(chan []Node)
	c.reqCh <- ch
	return <-ch
}

func (c *Cluster) Nodes(grid string) []Node {
	var nodes []Node
	for _, n := range c.Members() {
		if n.InGrid(grid) {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (c *Cluster) Grids() []string {
	seen := map[string]bool{DefaultGrid: true}
	grids := []string{DefaultGrid}
	for _, n := range c.Members() {
		for _, g := range n.Grids {
			if !seen[g] {
				seen[g] = true
				grids = append(grids, g)
			}
		}
	}
	sort.Strings(grids)
	return grids
}

func (c *Cluster) PublishTag(key, value string) error {
	return c.tags.set(key, value)
}

func (c *Cluster) JoinGrids(grids ...string) error {
	return c.tags.addToList(TagGrids, grids)
}

func (c *Cluster) LeaveGrids(grids ...string) error {
	return c.tags.removeFromList(TagGrids, grids)
}

// LocalTags returns the tags the local node currently advertises.
func (c *Cluster) LocalTags() map[string]string {
	return c.tags.get()
}

func (c *Cluster) Subscribe() Subscription {
	ch := make(chan Subscription)
	c.reqCh <- ch
	return <-ch
}

// Refresh fetches members now rather than waiting for the next poll, and
// notifies subscribers of any changes before returning.
func (c *Cluster) Refresh() error {
	ch := make(refreshReq)
	c.reqCh <- ch
	return <-ch
}

func (c *Cluster) Close() error {
	c.closeOnce.Do(func() {
		c.cron.close()
		close(c.reqCh)
		c.closeErr = c.backend.Close()
	})
	return c.closeErr
}

func (c *Cluster) done() bool {
	return c.stateCh == nil && c.reqCh == nil
}

func (c *Cluster) loop() {
	for !c.done() {
		select {
		case nodes, ok := <-c.stateCh:
			if !ok {
				c.stateCh = nil
				continue
			}
			c.apply(nodes)
		case req, ok := <-c.reqCh:
			if !ok {
				c.reqCh = nil
				continue
			}
			c.handleReq(req)
		}
	}
	for _, sub := range c.subs {
		close(sub)
	}
}

func (c *Cluster) apply(nodes []Node) {
	outgoing := c.state.setAndDiff(nodes)
	if len(outgoing) == 0 {
		return
	}
	for _, sub := range c.subs {
		sub <- outgoing
	}
}

func (c *Cluster) handleReq(req interface{}) {
	switch req := req.(type) {
	case chan []Node:
		// Members()
		req <- c.state.current()
	case chan Subscription:
		// Subscribe()
		ch := make(chan []NodeUpdate)
		s := makeSubscription(c.state.current(), c, ch)
		c.subs = append(c.subs, ch)
		req <- s
	case refreshReq:
		nodes, err := c.backend.Fetch()
		if err == nil {
			c.apply(nodes)
		}
		req <- err
	case chan []NodeUpdate:
		// close of a subscription
		for i, sub := range c.subs {
			if sub == req {
				c.subs = append(
					c.subs[0:i],
					c.subs[i+1:]...)
				close(req)
				break
			}
		}
	}
}

func (c *Cluster) closeSubscription(ch chan []NodeUpdate) {
	c.reqCh <- ch
}

// ParseMembers decodes fetched members, skipping any that advertise another
// protocol version or malformed tags.
func ParseMembers(members []Member) []Node {
	var nodes []Node
	for _, m := range members {
		n, err := ParseNode(m.Name, m.Addr, m.Tags)
		if err != nil {
			log.Debugf("Skipping member %s: %v", m.Name, err)
			continue
		}
		nodes = append(nodes, n)
	}
	sort.Sort(NodeSorter(nodes))
	return nodes
}
