// Package sched places queued jobs on grid nodes. It ranks the candidate
// nodes for each job, dispatches in queue order with full-grid deferral,
// and handles each job's completion exactly once.
package sched

import (
	"net"
	"sort"

	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/job"
)

// Candidate is a node and its score for one job.
type Candidate struct {
	Node  cluster.Node
	Score float64
}

// Score rates node for j. Power and memory are normalised against the
// largest values among all candidates, weighted, and summed with the local
// weight if node is the submitting node itself.
func Score(j *job.Job, node cluster.Node, local net.IP, maxPower, maxMemory float64) float64 {
	score := j.Weights.CPU*normalize(node.Power(), maxPower) +
		j.Weights.Memory*normalize(node.MemGB, maxMemory)
	if local != nil && node.Addr.Equal(local) {
		score += j.Weights.Local
	}
	return score
}

func normalize(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return v / max
}

// RankNodes scores every node for j and returns them best first. Ties keep
// the order nodes were given in.
func RankNodes(j *job.Job, nodes []cluster.Node, local net.IP) []Candidate {
	var maxPower, maxMemory float64
	for _, n := range nodes {
		if p := n.Power(); p > maxPower {
			maxPower = p
		}
		if n.MemGB > maxMemory {
			maxMemory = n.MemGB
		}
	}
	ranked := make([]Candidate, 0, len(nodes))
	for _, n := range nodes {
		ranked = append(ranked, Candidate{Node: n, Score: Score(j, n, local, maxPower, maxMemory)})
	}
	sort.SliceStable(ranked, func(i, k int) bool { return ranked[i].Score > ranked[k].Score })
	return ranked
}
