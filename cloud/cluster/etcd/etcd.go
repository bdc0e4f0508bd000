// Package etcd backs cluster membership with etcd. Each node keeps its tags
// under NodeKeyPrefix, attached to a lease it keeps alive; a node that stops
// renewing disappears once the lease expires.
package etcd

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ygrid/ygrid/cloud/cluster"
)

const NodeKeyPrefix = "/ygrid/nodes/"

const (
	DefaultTTL     = 10 * time.Second
	requestTimeout = 5 * time.Second
)

// record is the value stored for each node.
type record struct {
	Addr string            `json:"addr"`
	Tags map[string]string `json:"tags"`
}

type Backend struct {
	client *clientv3.Client
	name   string
	addr   net.IP
	lease  clientv3.LeaseID
	cancel context.CancelFunc

	mu sync.Mutex
}

var _ cluster.Backend = (*Backend)(nil)

// Dial connects to endpoints and registers a lease for the local node.
func Dial(endpoints []string, name string, addr net.IP, ttl time.Duration) (*Backend, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: requestTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to etcd")
	}
	b, err := newBackend(cli, name, addr, ttl)
	if err != nil {
		cli.Close()
		return nil, err
	}
	return b, nil
}

func newBackend(cli *clientv3.Client, name string, addr net.IP, ttl time.Duration) (*Backend, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	grant, err := cli.Grant(ctx, int64(ttl/time.Second))
	if err != nil {
		return nil, errors.Wrap(err, "granting etcd lease")
	}

	keepCtx, keepCancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(keepCtx, grant.ID)
	if err != nil {
		keepCancel()
		return nil, errors.Wrap(err, "keeping etcd lease alive")
	}
	go func() {
		for range ch {
		}
		if keepCtx.Err() == nil {
			log.Errorf("etcd lease %x for %s expired", grant.ID, name)
		}
	}()

	return &Backend{client: cli, name: name, addr: addr, lease: grant.ID, cancel: keepCancel}, nil
}

func (b *Backend) Fetch() ([]cluster.Node, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := b.client.Get(ctx, NodeKeyPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrap(err, "listing etcd nodes")
	}
	members := make([]cluster.Member, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		m, err := decode(string(kv.Key), kv.Value)
		if err != nil {
			log.Warnf("Skipping malformed node record %s: %v", kv.Key, err)
			continue
		}
		members = append(members, m)
	}
	return cluster.ParseMembers(members), nil
}

func encode(addr net.IP, tags map[string]string) (string, error) {
	data, err := json.Marshal(record{Addr: addr.String(), Tags: tags})
	return string(data), err
}

func decode(key string, value []byte) (cluster.Member, error) {
	var r record
	if err := json.Unmarshal(value, &r); err != nil {
		return cluster.Member{}, err
	}
	addr := net.ParseIP(r.Addr)
	if addr == nil {
		return cluster.Member{}, errors.Errorf("bad address %q", r.Addr)
	}
	return cluster.Member{Name: strings.TrimPrefix(key, NodeKeyPrefix), Addr: addr, Tags: r.Tags}, nil
}

func (b *Backend) SetTags(tags map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	value, err := encode(b.addr, tags)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	_, err = b.client.Put(ctx, NodeKeyPrefix+b.name, value, clientv3.WithLease(b.lease))
	return errors.Wrap(err, "writing etcd node record")
}

// Close revokes the lease, removing the node's record, and disconnects.
func (b *Backend) Close() error {
	b.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := b.client.Revoke(ctx, b.lease); err != nil {
		log.Warnf("Failed to revoke etcd lease: %v", err)
	}
	return b.client.Close()
}
