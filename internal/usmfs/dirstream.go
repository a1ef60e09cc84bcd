//go:build linux
// +build linux

package usmfs

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/usmtool/usmtool/internal/slug"
	"github.com/usmtool/usmtool/internal/usm"
)

// TrackDirNode is one of "videos", "audios", "alphas": it lists the
// tracks of that kind as files named after their CRID filename, slugged
// and disambiguated.
type TrackDirNode struct {
	fs.Inode
	Root   *Root
	Kind   string
	Tracks []*usm.Track

	names []string // parallel to Tracks
}

var _ fs.NodeLookuper = (*TrackDirNode)(nil)
var _ fs.NodeReaddirer = (*TrackDirNode)(nil)

// trackNames assigns each track a unique slugged file name, appending the
// channel number on collision.
func trackNames(tracks []*usm.Track) []string {
	used := make(map[string]bool, len(tracks))
	out := make([]string, len(tracks))
	for i, t := range tracks {
		base := ""
		if t.Crid != nil {
			if fn, err := t.Crid.GetString("filename"); err == nil {
				base = slug.Slug(slug.Basename(fn), true)
			}
		}
		if base == "" {
			base = fmt.Sprintf("channel-%d", t.ChannelNumber)
		}
		name := base
		if used[name] {
			name = fmt.Sprintf("%s-ch%d", base, t.ChannelNumber)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func (d *TrackDirNode) ensureNames() {
	if d.names == nil {
		d.names = trackNames(d.Tracks)
	}
}

func (d *TrackDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	d.ensureNames()
	for i, n := range d.names {
		if n != name {
			continue
		}
		t := d.Tracks[i]
		fileNode := &TrackFileNode{Root: d.Root, Kind: d.Kind, Track: t}
		ch := d.NewInode(ctx, fileNode, fs.StableAttr{
			Mode: fuse.S_IFREG,
			Ino:  d.Root.ino(fmt.Sprintf("file:%s:%d", d.Kind, t.ChannelNumber)),
		})
		out.Mode = fuse.S_IFREG | 0444
		out.Size = t.TotalBytes()
		out.SetEntryTimeout(1 * time.Second)
		out.SetAttrTimeout(1 * time.Second)
		return ch, 0
	}
	return nil, syscall.ENOENT
}

func (d *TrackDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	d.ensureNames()
	entries := make([]fuse.DirEntry, len(d.Tracks))
	for i, t := range d.Tracks {
		entries[i] = fuse.DirEntry{
			Name: d.names[i],
			Ino:  d.Root.ino(fmt.Sprintf("file:%s:%d", d.Kind, t.ChannelNumber)),
			Mode: fuse.S_IFREG,
		}
	}
	return fs.NewListDirStream(entries), 0
}
