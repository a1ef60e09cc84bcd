// Package sectorwriter provides a small buffered writer that tracks its
// own write offset and can pad forward to a fixed sector boundary, the
// way a USM muxer must align chunk bodies.
package sectorwriter

import (
	"bufio"
	"fmt"
	"io"
)

// DefaultSectorSize is the sector alignment USM container tooling uses
// when no explicit alignment is requested.
const DefaultSectorSize = 0x800

// Writer wraps an io.Writer, tracking the number of bytes written so
// callers can compute padding without a separate byte counter.
type Writer struct {
	w          *bufio.Writer
	offset     int64
	sectorSize int
}

// New wraps w in a Writer starting at offset 0, aligning to sectorSize
// bytes on PadToSector.
func New(w io.Writer, sectorSize int) *Writer {
	if sectorSize <= 0 {
		sectorSize = DefaultSectorSize
	}
	return &Writer{w: bufio.NewWriter(w), sectorSize: sectorSize}
}

// Tell returns the number of bytes written so far.
func (sw *Writer) Tell() int64 { return sw.offset }

// Write implements io.Writer, tracking the offset.
func (sw *Writer) Write(p []byte) (int, error) {
	n, err := sw.w.Write(p)
	sw.offset += int64(n)
	return n, err
}

// WriteZeros writes n zero bytes.
func (sw *Writer) WriteZeros(n int) error {
	if n < 0 {
		return fmt.Errorf("sectorwriter: negative zero-fill length %d", n)
	}
	const chunk = 4096
	var zeros [chunk]byte
	for n > 0 {
		k := n
		if k > chunk {
			k = chunk
		}
		if _, err := sw.Write(zeros[:k]); err != nil {
			return err
		}
		n -= k
	}
	return nil
}

// PadToSector writes zero bytes until Tell() is a multiple of the
// writer's configured sector size. If already aligned, it writes
// nothing.
func (sw *Writer) PadToSector() error {
	rem := int(sw.offset % int64(sw.sectorSize))
	if rem == 0 {
		return nil
	}
	return sw.WriteZeros(sw.sectorSize - rem)
}

// Flush flushes any buffered bytes to the underlying writer.
func (sw *Writer) Flush() error { return sw.w.Flush() }
