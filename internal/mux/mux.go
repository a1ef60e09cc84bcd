// Package mux provides the thin muxing side of the container: given a
// source of already-encoded elementary-stream packets and the metadata
// pages describing them, it emits correctly-typed, optionally enciphered,
// sector-padded chunks. It does not parse or encode any codec bitstream
// (H.264, VP9, HCA, ...); callers supply a PacketSource that already
// produces access units.
package mux

import (
	"errors"
	"io"

	"github.com/usmtool/usmtool/internal/chunk"
	"github.com/usmtool/usmtool/internal/cipher"
	"github.com/usmtool/usmtool/internal/sectorwriter"
	"github.com/usmtool/usmtool/internal/usmtype"
)

// VideoPacket is one already-encoded elementary-stream packet ready to be
// wrapped in a chunk.
type VideoPacket struct {
	ChannelNumber uint8
	FrameTime     uint32
	FrameRate     uint32
	Data          []byte
}

// PacketSource yields VideoPacket values in presentation order, returning
// io.EOF once exhausted.
type PacketSource interface {
	Next() (VideoPacket, error)
}

// Muxer wraps a sectorwriter.Writer, emitting chunks of a fixed kind,
// optionally enciphering each packet's payload before wrapping it.
type Muxer struct {
	w        *sectorwriter.Writer
	kind     usmtype.ChunkKind
	videoKey []byte // non-nil enables video encryption
	audioKey []byte // non-nil enables audio encryption
}

// NewMuxer creates a Muxer writing chunks of kind to w, padding each
// chunk to a sector boundary.
func NewMuxer(w *sectorwriter.Writer, kind usmtype.ChunkKind) *Muxer {
	return &Muxer{w: w, kind: kind}
}

// WithVideoKey enables video packet encryption using the given 64-byte
// key (see cipher.GenerateKeys).
func (m *Muxer) WithVideoKey(key []byte) *Muxer {
	m.videoKey = key
	return m
}

// WithAudioKey enables audio packet encryption using the given 32-byte
// key (see cipher.GenerateKeys).
func (m *Muxer) WithAudioKey(key []byte) *Muxer {
	m.audioKey = key
	return m
}

// MuxAll drains src, writing one padded chunk per packet.
func (m *Muxer) MuxAll(src PacketSource) error {
	for {
		pkt, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := m.muxOne(pkt); err != nil {
			return err
		}
	}
}

func (m *Muxer) muxOne(pkt VideoPacket) error {
	data := pkt.Data
	var err error
	switch {
	case m.videoKey != nil && m.kind == usmtype.ChunkVideo:
		data, err = cipher.EncryptVideoPacket(data, m.videoKey)
	case m.audioKey != nil && m.kind == usmtype.ChunkAudio:
		data, err = cipher.CryptAudioPacket(data, m.audioKey)
	}
	if err != nil {
		return err
	}

	c := &chunk.Chunk{
		Type:          m.kind,
		PayloadType:   usmtype.PayloadStream,
		Payload:       chunk.Payload{RawPayload: data},
		FrameTime:     pkt.FrameTime,
		FrameRate:     pkt.FrameRate,
		ChannelNumber: pkt.ChannelNumber,
		Padding: func(unpadded int) int {
			rem := unpadded % sectorwriter.DefaultSectorSize
			if rem == 0 {
				return 0
			}
			return sectorwriter.DefaultSectorSize - rem
		},
	}

	packed, err := c.Pack()
	if err != nil {
		return err
	}
	_, err = m.w.Write(packed)
	return err
}
