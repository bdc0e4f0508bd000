// Package syncer moves job files between node workspaces. Every node serves
// its workspace over HTTP at /sync/<path>; peers GET files out of it and PUT
// files into it. Paths are always workspace-relative.
package syncer

//go:generate mockgen -source=syncer.go -package=syncer -destination=syncer_mock.go

import (
	"context"
	"fmt"
)

const PathPrefix = "/sync/"

// File names one file on both sides of a transfer.
type File struct {
	// Src is relative to the sending workspace.
	Src string
	// Dst is relative to the receiving workspace.
	Dst string
}

func (f File) String() string {
	return fmt.Sprintf("%s->%s", f.Src, f.Dst)
}

// Pair returns a File at the same relative path on both sides.
func Pair(rel string) File {
	return File{Src: rel, Dst: rel}
}

// Syncer transfers files between the local workspace and the node serving
// its workspace at addr (host:port).
type Syncer interface {
	// Send copies local files to the remote node.
	Send(ctx context.Context, addr string, files []File) error
	// Fetch copies remote files to the local node.
	Fetch(ctx context.Context, addr string, files []File) error
}
