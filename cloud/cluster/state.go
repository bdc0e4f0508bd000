package cluster

import (
	"reflect"
	"sort"

	log "github.com/sirupsen/logrus"
)

type state struct {
	// current view of our nodes
	nodes       map[NodeId]Node
	nopCheckCnt int
}

func makeState(nodes []Node) *state {
	s := &state{
		nodes: make(map[NodeId]Node),
	}
	s.setAndDiff(nodes)
	return s
}

// setAndDiff takes the new state as an argument and creates
// node updates based on the diff. A node whose advertised
// record changed yields a NodeUpdated.
func (s *state) setAndDiff(newState []Node) []NodeUpdate {
	added := []Node{}
	updated := []Node{}
	oldStateLen := len(s.nodes)
	for _, n := range newState {
		if old, exists := s.nodes[n.Id()]; exists {
			// remove from s.nodes so that s.nodes only contains nodes removed in this diff
			delete(s.nodes, n.Id())
			if !reflect.DeepEqual(old, n) {
				updated = append(updated, n)
			}
		} else {
			added = append(added, n)
		}
	}
	removed := []Node{}
	for _, n := range s.nodes {
		removed = append(removed, n)
	}
	sort.Sort(NodeSorter(added))
	sort.Sort(NodeSorter(updated))
	sort.Sort(NodeSorter(removed))
	outgoing := []NodeUpdate{}
	for _, n := range added {
		log.Infof("NodeAdded update: %s", n)
		outgoing = append(outgoing, NewAdd(n))
	}
	for _, n := range updated {
		log.Debugf("NodeUpdated update: %s", n)
		outgoing = append(outgoing, NewUpdate(n))
	}
	for _, n := range removed {
		log.Infof("NodeRemoved update: %s", n)
		outgoing = append(outgoing, NewRemove(n.Id()))
	}

	if len(added) > 0 || len(removed) > 0 {
		log.Infof("Number of nodes added: %d, removed: %d, in new state: %d, in old state: %d "+
			"(%d cluster checks with no membership change)", len(added), len(removed), len(newState), oldStateLen, s.nopCheckCnt)
		s.nopCheckCnt = 0
	} else {
		s.nopCheckCnt++
	}
	// reset nodes map, assign to new state
	s.nodes = make(map[NodeId]Node)
	for _, n := range newState {
		s.nodes[n.Id()] = n
	}
	return outgoing
}

// current returns the nodes sorted by name.
func (s *state) current() []Node {
	r := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		r = append(r, n)
	}
	sort.Sort(NodeSorter(r))
	return r
}
