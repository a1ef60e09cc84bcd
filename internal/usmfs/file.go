//go:build linux
// +build linux

package usmfs

import (
	"context"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/usmtool/usmtool/internal/usm"
	"github.com/usmtool/usmtool/internal/usmtype"
)

// TrackFileNode exposes one elementary-stream track's logical byte range
// as a flat, read-only file. Reads are serviced on demand: the span
// covering the requested range is read from the backing USM file and
// deciphered as a whole packet, matching the transform's packet-relative
// offsets, then the requested slice is copied out.
type TrackFileNode struct {
	fs.Inode
	Root  *Root
	Kind  string // "videos", "audios", or "alphas"
	Track *usm.Track
}

var _ fs.NodeGetattrer = (*TrackFileNode)(nil)
var _ fs.NodeOpener = (*TrackFileNode)(nil)
var _ fs.NodeReader = (*TrackFileNode)(nil)

func (n *TrackFileNode) chunkKind() usmtype.ChunkKind {
	switch n.Kind {
	case "audios":
		return usmtype.ChunkAudio
	case "alphas":
		return usmtype.ChunkAlpha
	default:
		return usmtype.ChunkVideo
	}
}

func (n *TrackFileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Size = n.Track.TotalBytes()
	out.Mode = fuse.S_IFREG | 0444
	out.SetTimes(nil, &time.Time{}, nil)
	return 0
}

func (n *TrackFileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *TrackFileNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	in, err := os.Open(n.Root.Usm.Path())
	if err != nil {
		log.Printf("usmfs: read open failed path=%s err=%v", n.Root.Usm.Path(), err)
		return nil, syscall.EIO
	}
	defer in.Close()

	kind := n.chunkKind()
	key := n.Root.Usm.Key()

	reqStart := off
	reqEnd := off + int64(len(dest))

	var logicalPos int64
	for _, span := range n.Track.Spans() {
		spanStart := logicalPos
		spanEnd := logicalPos + int64(span.Size)
		logicalPos = spanEnd

		if reqEnd <= spanStart || reqStart >= spanEnd {
			continue
		}

		raw := make([]byte, span.Size)
		if _, err := in.ReadAt(raw, int64(span.Offset)); err != nil {
			log.Printf("usmfs: read span failed path=%s offset=%d err=%v", n.Root.Usm.Path(), span.Offset, err)
			return nil, syscall.EIO
		}
		clear, err := usm.DecipherPacket(kind, raw, key)
		if err != nil {
			log.Printf("usmfs: decipher failed path=%s offset=%d err=%v", n.Root.Usm.Path(), span.Offset, err)
			return nil, syscall.EIO
		}

		copyStart := spanStart
		if reqStart > copyStart {
			copyStart = reqStart
		}
		copyEnd := spanEnd
		if reqEnd < copyEnd {
			copyEnd = reqEnd
		}

		copy(dest[copyStart-off:copyEnd-off], clear[copyStart-spanStart:copyEnd-spanStart])
	}

	total := reqEnd
	if trackEnd := int64(n.Track.TotalBytes()); total > trackEnd {
		total = trackEnd
	}
	retLen := total - off
	if retLen < 0 {
		retLen = 0
	}
	return fuse.ReadResultData(dest[:retLen]), 0
}
