//go:build linux
// +build linux

package usmfs

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/usmtool/usmtool/internal/usm"
)

// Root is the top-level directory of a mounted USM file: it exposes
// "videos", "audios", and "alphas" subdirectories, one per non-empty track
// kind.
type Root struct {
	fs.Inode
	Usm *usm.Usm
}

var _ fs.NodeLookuper = (*Root)(nil)
var _ fs.NodeReaddirer = (*Root)(nil)

func (r *Root) ino(key string) uint64 {
	return inoFromString("usmfs:" + r.Usm.Path() + ":" + key)
}

func (r *Root) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	var tracks []*usm.Track
	switch name {
	case "videos":
		tracks = r.Usm.Videos()
	case "audios":
		tracks = r.Usm.Audios()
	case "alphas":
		tracks = r.Usm.Alphas()
	default:
		return nil, syscall.ENOENT
	}
	if len(tracks) == 0 {
		return nil, syscall.ENOENT
	}

	dirNode := &TrackDirNode{Root: r, Kind: name, Tracks: tracks}
	ch := r.NewInode(ctx, dirNode, fs.StableAttr{
		Mode: fuse.S_IFDIR,
		Ino:  r.ino("dir:" + name),
	})
	out.Mode = fuse.S_IFDIR | 0755
	out.SetEntryTimeout(1 * time.Second)
	out.SetAttrTimeout(1 * time.Second)
	return ch, 0
}

func (r *Root) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	var entries []fuse.DirEntry
	for _, kind := range [...]struct {
		name   string
		tracks []*usm.Track
	}{
		{"videos", r.Usm.Videos()},
		{"audios", r.Usm.Audios()},
		{"alphas", r.Usm.Alphas()},
	} {
		if len(kind.tracks) == 0 {
			continue
		}
		entries = append(entries, fuse.DirEntry{
			Name: kind.name,
			Ino:  r.ino("dir:" + kind.name),
			Mode: fuse.S_IFDIR | 0755,
		})
	}
	return fs.NewListDirStream(entries), 0
}
