package mux

import (
	"bytes"
	"io"
	"testing"

	"github.com/usmtool/usmtool/internal/chunk"
	"github.com/usmtool/usmtool/internal/sectorwriter"
	"github.com/usmtool/usmtool/internal/usmtype"
)

type sliceSource struct {
	packets []VideoPacket
	pos     int
}

func (s *sliceSource) Next() (VideoPacket, error) {
	if s.pos >= len(s.packets) {
		return VideoPacket{}, io.EOF
	}
	p := s.packets[s.pos]
	s.pos++
	return p, nil
}

func TestMuxAllWritesSectorAlignedChunks(t *testing.T) {
	var out bytes.Buffer
	sw := sectorwriter.New(&out, sectorwriter.DefaultSectorSize)
	m := NewMuxer(sw, usmtype.ChunkVideo)

	src := &sliceSource{packets: []VideoPacket{
		{ChannelNumber: 0, FrameTime: 0, FrameRate: 30, Data: bytes.Repeat([]byte{1}, 100)},
		{ChannelNumber: 0, FrameTime: 1, FrameRate: 30, Data: bytes.Repeat([]byte{2}, 50)},
	}}

	if err := m.MuxAll(src); err != nil {
		t.Fatalf("MuxAll: %v", err)
	}
	sw.Flush()

	if out.Len()%sectorwriter.DefaultSectorSize != 0 {
		t.Fatalf("total output not sector-aligned: %d bytes", out.Len())
	}

	buf := out.Bytes()
	c1, err := chunk.ParseChunk(buf, "utf-8")
	if err != nil {
		t.Fatalf("ParseChunk first: %v", err)
	}
	if !bytes.Equal(c1.Payload.RawPayload, bytes.Repeat([]byte{1}, 100)) {
		t.Fatalf("first chunk payload mismatch")
	}
}

func TestMuxOneEnciphersWhenKeyed(t *testing.T) {
	var out bytes.Buffer
	sw := sectorwriter.New(&out, sectorwriter.DefaultSectorSize)

	videoKey := bytes.Repeat([]byte{0xAA}, 64)
	m := NewMuxer(sw, usmtype.ChunkVideo).WithVideoKey(videoKey)

	plain := bytes.Repeat([]byte{0x11}, 0x300)
	src := &sliceSource{packets: []VideoPacket{{ChannelNumber: 0, Data: plain}}}
	if err := m.MuxAll(src); err != nil {
		t.Fatalf("MuxAll: %v", err)
	}
	sw.Flush()

	c, err := chunk.ParseChunk(out.Bytes(), "utf-8")
	if err != nil {
		t.Fatalf("ParseChunk: %v", err)
	}
	if bytes.Equal(c.Payload.RawPayload, plain) {
		t.Fatalf("expected ciphertext to differ from plaintext for a packet above the cipher threshold")
	}
	if !bytes.Equal(c.Payload.RawPayload[:0x40], plain[:0x40]) {
		t.Fatalf("first 0x40 bytes must remain unencrypted")
	}
}
