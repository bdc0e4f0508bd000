package syncer

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/ygrid/ygrid/os/temp"
	"github.com/ygrid/ygrid/workspace"
)

// LocalSyncer copies between workspaces on the same filesystem, keyed by
// the address each would serve on. Used by in-process grids.
type LocalSyncer struct {
	local *workspace.Workspace
	peers *Peers
}

// Peers maps sync addresses to workspaces.
type Peers struct {
	mu     sync.Mutex
	byAddr map[string]*workspace.Workspace
}

func NewPeers() *Peers {
	return &Peers{byAddr: make(map[string]*workspace.Workspace)}
}

func (p *Peers) Add(addr string, ws *workspace.Workspace) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byAddr[addr] = ws
}

func (p *Peers) get(addr string) (*workspace.Workspace, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ws, ok := p.byAddr[addr]
	if !ok {
		return nil, errors.Errorf("no workspace for %v", addr)
	}
	return ws, nil
}

func NewLocalSyncer(local *workspace.Workspace, peers *Peers) *LocalSyncer {
	return &LocalSyncer{local: local, peers: peers}
}

func (s *LocalSyncer) Send(ctx context.Context, addr string, files []File) error {
	remote, err := s.peers.get(addr)
	if err != nil {
		return err
	}
	for _, f := range files {
		if dst, err := remote.Resolve(f.Dst); err != nil || !remote.InActiveJob(dst) {
			return errors.Errorf("%v refuses writes to %v", addr, f.Dst)
		}
	}
	return copyFiles(ctx, s.local, remote, files)
}

func (s *LocalSyncer) Fetch(ctx context.Context, addr string, files []File) error {
	remote, err := s.peers.get(addr)
	if err != nil {
		return err
	}
	return copyFiles(ctx, remote, s.local, files)
}

func copyFiles(ctx context.Context, from, to *workspace.Workspace, files []File) error {
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := from.Resolve(f.Src)
		if err != nil {
			return err
		}
		dst, err := to.Resolve(f.Dst)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := temp.WriteFile(dst, data, 0644); err != nil {
			return err
		}
	}
	return nil
}
