package cluster

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ygrid/ygrid/job"
)

func TestNodeTagsRoundTrip(t *testing.T) {
	addr := net.ParseIP("10.0.1.7").To4()
	n := Node{
		Name:     "worker1",
		Addr:     addr,
		OS:       "linux",
		CPUs:     8,
		GHz:      2.5,
		MemGB:    15.5,
		Load:     0.25,
		Grids:    []string{"render", "build"},
		Jobs:     []job.Status{{ID: job.EncodeID(3, net.ParseIP("10.0.1.23")), Progress: job.Done, Host: addr}},
		RPCPort:  7000,
		SyncPort: 7001,
	}
	tags, err := n.Tags()
	if err != nil {
		t.Fatalf("Tags failed: %v", err)
	}
	assert.Equal(t, "build,render", tags[TagGrids])
	assert.Equal(t, "3.10.D", tags[TagJobs])

	parsed, err := ParseNode("worker1", addr, tags)
	if err != nil {
		t.Fatalf("ParseNode failed: %v", err)
	}
	n.Grids = []string{"build", "render"}
	assert.Equal(t, n, parsed)
	assert.Equal(t, 20.0, parsed.Power())
	assert.Equal(t, "10.0.1.7:7000", parsed.RPCAddr())
}

func TestParseNodeRejectsOtherVersions(t *testing.T) {
	_, err := ParseNode("old", net.ParseIP("10.0.0.1"), map[string]string{TagVersion: "0"})
	if err == nil {
		t.Fatalf("Expected version error")
	}
	_, err = ParseNode("bad", net.ParseIP("10.0.0.1"), map[string]string{TagVersion: ProtocolVersion, TagCPUs: "many"})
	if err == nil {
		t.Fatalf("Expected cpu parse error")
	}
}

func TestInGrid(t *testing.T) {
	plain := Node{Name: "a"}
	assert.True(t, plain.InGrid(DefaultGrid))
	assert.False(t, plain.InGrid("render"))

	joined := Node{Name: "b", Grids: []string{"render"}}
	assert.True(t, joined.InGrid("render"))
	assert.False(t, joined.InGrid(DefaultGrid))
}

func TestDefaultPorts(t *testing.T) {
	n := Node{Addr: net.ParseIP("10.0.0.1")}
	assert.Equal(t, "10.0.0.1:7947", n.RPCAddr())
	assert.Equal(t, "10.0.0.1:42351", n.SyncAddr())
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "a,b,c", FormatList([]string{"c", "a", "", "b", "a"}))
	assert.Equal(t, []string{"a", "b"}, ParseList(" a, ,b"))
	assert.Nil(t, ParseList(""))
}
