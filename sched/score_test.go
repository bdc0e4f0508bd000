package sched

import (
	"math"
	"net"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/job"
)

func node(name string, last byte, cpus int, ghz, mem float64) cluster.Node {
	return cluster.Node{Name: name, Addr: net.IPv4(10, 0, 0, last).To4(), CPUs: cpus, GHz: ghz, MemGB: mem}
}

func names(ranked []Candidate) []string {
	var out []string
	for _, c := range ranked {
		out = append(out, c.Node.Name)
	}
	return out
}

func TestRankNodes(t *testing.T) {
	local := net.IPv4(10, 0, 0, 1)
	nodes := []cluster.Node{
		node("a", 1, 2, 2.0, 4),
		node("b", 2, 8, 3.0, 32),
		node("c", 3, 4, 3.0, 16),
	}

	// The local bonus outweighs everything with default weights.
	assert.Equal(t, []string{"a", "b", "c"}, names(RankNodes(job.New("x"), nodes, local)))

	j := job.New("x")
	j.Weights.Local = 0
	ranked := RankNodes(j, nodes, local)
	assert.Equal(t, []string{"b", "c", "a"}, names(ranked))
	assert.InDelta(t, 2.0, ranked[0].Score, 1e-9)
	assert.InDelta(t, 0.5+0.5, ranked[1].Score, 1e-9)
}

func TestRankNodesZeroCapacity(t *testing.T) {
	nodes := []cluster.Node{node("a", 1, 0, 0, 0), node("b", 2, 0, 0, 0)}
	ranked := RankNodes(job.New("x"), nodes, net.IPv4(10, 0, 0, 9))
	for _, c := range ranked {
		if math.IsNaN(c.Score) || c.Score != 0 {
			t.Fatalf("Expected zero score, got %v for %v", c.Score, c.Node)
		}
	}
	// Equal scores keep enumeration order.
	assert.Equal(t, []string{"a", "b"}, names(ranked))
}

func TestScoreLocalWeightMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	local := net.IPv4(10, 0, 0, 1)
	properties.Property("raising the local weight raises the local node's lead", prop.ForAll(
		func(w, extra float64, cpus int, ghz, mem float64) bool {
			nodes := []cluster.Node{node("local", 1, cpus, ghz, mem), node("other", 2, 8, 3.5, 64)}
			lead := func(weight float64) float64 {
				j := job.New("x")
				j.Weights.Local = weight
				byName := map[string]float64{}
				for _, c := range RankNodes(j, nodes, local) {
					byName[c.Node.Name] = c.Score
				}
				return byName["local"] - byName["other"]
			}
			return lead(w+extra) > lead(w)
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0.01, 100),
		gen.IntRange(0, 64),
		gen.Float64Range(0, 5),
		gen.Float64Range(0, 256),
	))

	properties.TestingRun(t)
}
