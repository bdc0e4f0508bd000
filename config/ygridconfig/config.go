// Package ygridconfig is the node configuration: a JSON document whose
// Membership and Execer sections select their implementation by "Type".
package ygridconfig

import (
	"encoding/json"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/config/jsonconfig"
	"github.com/ygrid/ygrid/workspace"
)

const (
	DefaultShell          = "/bin/sh"
	DefaultQueuePoll      = 1500 * time.Millisecond
	DefaultStatusInterval = 5 * time.Second
	DefaultCallbackRetry  = 2 * time.Minute
	DefaultSyncRateLimit  = 100
)

// Duration is a time.Duration written in JSON as a string like "1.5s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Errorf("duration must be a string like \"1.5s\", got %s", data)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	// Root of the node's workspace.
	Root string
	// Name the node joins the cluster as. Defaults to the hostname.
	Name string
	// Addr overrides the detected IPv4 address.
	Addr string
	// Grids to join at startup. Empty means only the default grid.
	Grids []string

	Port     int
	SyncPort int
	// CPUs caps concurrently admitted jobs. 0 uses the detected count.
	CPUs int
	// Shell runs each job's task and done hook as "Shell -c task".
	Shell string

	QueuePoll      Duration
	StatusInterval Duration
	FetchInterval  Duration
	// CallbackRetry bounds how long finishedJob and closeJob calls are retried.
	CallbackRetry Duration
	// SyncRateLimit is requests per second served by the file-sync server.
	SyncRateLimit float64
	// RPCRateLimit is requests per second served by the agent. 0 is unlimited.
	RPCRateLimit float64

	Membership MembershipConfig `json:"-"`
	Execer     ExecerConfig     `json:"-"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Root:           workspace.DefaultRoot,
		Port:           cluster.DefaultRPCPort,
		SyncPort:       cluster.DefaultSyncPort,
		Shell:          DefaultShell,
		QueuePoll:      Duration(DefaultQueuePoll),
		StatusInterval: Duration(DefaultStatusInterval),
		FetchInterval:  Duration(cluster.DefaultFetchInterval),
		CallbackRetry:  Duration(DefaultCallbackRetry),
		SyncRateLimit:  DefaultSyncRateLimit,
		Membership:     &MemoryMembership{},
		Execer:         &OSExecer{},
	}
}

var membershipImpls = jsonconfig.Implementations{
	"":       func() interface{} { return &MemoryMembership{} },
	"memory": func() interface{} { return &MemoryMembership{} },
	"serf":   func() interface{} { return &SerfMembership{} },
	"etcd":   func() interface{} { return &EtcdMembership{} },
}

var execerImpls = jsonconfig.Implementations{
	"":       func() interface{} { return &OSExecer{} },
	"os":     func() interface{} { return &OSExecer{} },
	"docker": func() interface{} { return &DockerExecer{} },
}

// Parse reads a configuration, starting from Default.
func Parse(text []byte) (*Config, error) {
	c := Default()
	var sections struct {
		Membership json.RawMessage
		Execer     json.RawMessage
	}
	if len(text) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(text, c); err != nil {
		return nil, errors.Wrap(err, "couldn't parse config")
	}
	if err := json.Unmarshal(text, &sections); err != nil {
		return nil, errors.Wrap(err, "couldn't parse config")
	}
	m, err := jsonconfig.ParseSection("Membership", sections.Membership, membershipImpls)
	if err != nil {
		return nil, err
	}
	c.Membership = m.(MembershipConfig)
	e, err := jsonconfig.ParseSection("Execer", sections.Execer, execerImpls)
	if err != nil {
		return nil, err
	}
	c.Execer = e.(ExecerConfig)
	return c, c.Validate()
}

func (c *Config) Validate() error {
	if c.Addr != "" {
		if ip := net.ParseIP(c.Addr); ip == nil || ip.To4() == nil {
			return errors.Errorf("Addr %q is not an IPv4 address", c.Addr)
		}
	}
	if c.Port <= 0 || c.SyncPort <= 0 {
		return errors.Errorf("Port and SyncPort must be positive, got %d and %d", c.Port, c.SyncPort)
	}
	if c.CPUs < 0 {
		return errors.Errorf("CPUs must not be negative, got %d", c.CPUs)
	}
	if c.QueuePoll <= 0 || c.StatusInterval <= 0 {
		return errors.New("QueuePoll and StatusInterval must be positive")
	}
	return nil
}
