package ygridconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	assert.Equal(t, Default(), c)
	assert.Equal(t, 1500*time.Millisecond, c.QueuePoll.Std())
}

func TestParseSections(t *testing.T) {
	c, err := Parse([]byte(`{
		"Root": "/var/ygrid",
		"Grids": ["render"],
		"CPUs": 2,
		"QueuePoll": "250ms",
		"Membership": {"Type": "etcd", "Endpoints": ["10.0.0.5:2379"], "TTL": "30s"},
		"Execer": {"Type": "docker", "Image": "busybox"}
	}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	assert.Equal(t, "/var/ygrid", c.Root)
	assert.Equal(t, []string{"render"}, c.Grids)
	assert.Equal(t, 2, c.CPUs)
	assert.Equal(t, 250*time.Millisecond, c.QueuePoll.Std())
	assert.Equal(t, DefaultStatusInterval, c.StatusInterval.Std())
	assert.Equal(t, &EtcdMembership{Type: "etcd", Endpoints: []string{"10.0.0.5:2379"}, TTL: Duration(30 * time.Second)}, c.Membership)
	assert.Equal(t, &DockerExecer{Type: "docker", Image: "busybox"}, c.Execer)
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		`{"QueuePoll": 5}`,
		`{"Membership": {"Type": "zookeeper"}}`,
		`{"Addr": "::1"}`,
		`{"CPUs": -1}`,
		`not json`,
	} {
		if _, err := Parse([]byte(text)); err == nil {
			t.Errorf("Expected error parsing %s", text)
		}
	}
}
