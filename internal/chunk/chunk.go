// Package chunk implements the outer USM container: fixed 0x20-byte chunk
// headers wrapping either raw payload bytes or an embedded @UTF page
// table.
package chunk

import (
	"errors"
	"fmt"

	"github.com/usmtool/usmtool/internal/page"
	"github.com/usmtool/usmtool/internal/usmbytes"
	"github.com/usmtool/usmtool/internal/usmtype"
)

// ErrBadChunkGeometry is returned when a chunk header's size, offset, or
// padding fields describe a payload that does not fit the buffer.
var ErrBadChunkGeometry = errors.New("chunk: bad chunk geometry")

const headerSize = 0x20

// Payload is the two-arm union a chunk's payload bytes decode to: either
// an opaque byte slice (elementary stream data) or a parsed @UTF page
// table (metadata). Exactly one of the two fields is set.
type Payload struct {
	RawPayload []byte
	Pages      []*page.Page
}

// IsPages reports whether the payload decoded as a page table.
func (p Payload) IsPages() bool { return p.Pages != nil }

// Chunk is one container record: a typed, timestamped wrapper around a
// Payload.
type Chunk struct {
	Type          usmtype.ChunkKind
	PayloadType   usmtype.PayloadKind
	Payload       Payload
	FrameTime     uint32
	FrameRate     uint32
	ChannelNumber uint8
	PayloadOffset int
	Encoding      string

	// Padding is either an int (fixed pad length) or a func(int) int,
	// queried with 0x20+len(payload) to compute the pad length when
	// aligning to e.g. a sector boundary. A nil Padding packs with zero
	// padding bytes.
	Padding any
}

func (c *Chunk) computedPadding(payloadBytes []byte) (int, error) {
	switch p := c.Padding.(type) {
	case nil:
		return 0, nil
	case int:
		return p, nil
	case func(int) int:
		return p(headerSize + len(payloadBytes)), nil
	default:
		return 0, fmt.Errorf("chunk: unsupported Padding value of type %T", c.Padding)
	}
}

// ParseChunk decodes a single chunk from the start of buf. encoding is
// passed through to the page codec's string handling (currently unused
// beyond being recorded on the returned Chunk, matching the reference
// implementation which threads it through without consuming it in the
// pure-ASCII fast path).
func ParseChunk(buf []byte, encoding string) (*Chunk, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: chunk shorter than header (%d bytes)", ErrBadChunkGeometry, len(buf))
	}

	sig, err := usmbytes.ReadU32(buf, 0)
	if err != nil {
		return nil, err
	}
	kind, err := usmtype.ChunkKindFromU32(sig)
	if err != nil {
		return nil, err
	}

	chunkSizeField, err := usmbytes.ReadU32(buf, 0x4)
	if err != nil {
		return nil, err
	}
	payloadOffsetField, err := usmbytes.ReadU8(buf, 0x9)
	if err != nil {
		return nil, err
	}
	paddingSize, err := usmbytes.ReadU16(buf, 0xA)
	if err != nil {
		return nil, err
	}
	chno, err := usmbytes.ReadU8(buf, 0xC)
	if err != nil {
		return nil, err
	}
	payloadTypeByte, err := usmbytes.ReadU8(buf, 0xF)
	if err != nil {
		return nil, err
	}
	frameTime, err := usmbytes.ReadU32(buf, 0x10)
	if err != nil {
		return nil, err
	}
	frameRate, err := usmbytes.ReadU32(buf, 0x14)
	if err != nil {
		return nil, err
	}

	payloadBegin := 0x08 + int(payloadOffsetField)
	payloadSize := int(chunkSizeField) - int(paddingSize) - int(payloadOffsetField)

	if payloadBegin < 0 || payloadBegin > len(buf) {
		return nil, fmt.Errorf("%w: payload begin %d out of range", ErrBadChunkGeometry, payloadBegin)
	}
	if payloadSize < 0 {
		return nil, fmt.Errorf("%w: negative payload size %d", ErrBadChunkGeometry, payloadSize)
	}
	if payloadBegin+payloadSize > len(buf) {
		return nil, fmt.Errorf("%w: chunk missing %d payload bytes", ErrBadChunkGeometry, payloadBegin+payloadSize-len(buf))
	}

	payloadRaw, err := usmbytes.Slice(buf, payloadBegin, payloadBegin+payloadSize)
	if err != nil {
		return nil, err
	}

	payloadType, err := usmtype.PayloadKindFromU8(payloadTypeByte & 0x3)
	if err != nil {
		return nil, err
	}

	var payload Payload
	if isPayloadPages(payloadRaw) {
		pages, err := page.ParsePages(payloadRaw)
		if err != nil {
			return nil, err
		}
		payload.Pages = pages
	} else {
		payload.RawPayload = append([]byte(nil), payloadRaw...)
	}

	return &Chunk{
		Type:          kind,
		PayloadType:   payloadType,
		Payload:       payload,
		FrameTime:     frameTime,
		FrameRate:     frameRate,
		Padding:       int(paddingSize),
		ChannelNumber: chno,
		PayloadOffset: payloadBegin,
		Encoding:      encoding,
	}, nil
}

func isPayloadPages(payload []byte) bool {
	return len(payload) >= 4 && payload[0] == '@' && payload[1] == 'U' && payload[2] == 'T' && payload[3] == 'F'
}

func (c *Chunk) packPayload() ([]byte, error) {
	if c.Payload.IsPages() {
		return page.PackPages(c.Payload.Pages, 0)
	}
	return c.Payload.RawPayload, nil
}

// Pack re-encodes the chunk to its wire form, resolving c.Padding against
// the packed payload size.
func (c *Chunk) Pack() ([]byte, error) {
	payloadBytes, err := c.packPayload()
	if err != nil {
		return nil, err
	}

	padding, err := c.computedPadding(payloadBytes)
	if err != nil {
		return nil, err
	}
	if padding < 0 || padding > 0xFFFF {
		return nil, fmt.Errorf("%w: padding %d out of range", ErrBadChunkGeometry, padding)
	}

	chunkSizeField := uint32(0x18 + len(payloadBytes) + padding)

	out := make([]byte, 0, headerSize+len(payloadBytes)+padding)
	out = usmbytes.WriteU32(out, uint32(c.Type))
	out = usmbytes.WriteU32(out, chunkSizeField)
	out = append(out, 0x00) // r08
	out = append(out, 0x18) // payload offset field, always 0x18 on pack
	out = usmbytes.WriteU16(out, uint16(padding))
	out = append(out, c.ChannelNumber)
	out = append(out, 0x00, 0x00) // r0D-r0E
	out = append(out, byte(c.PayloadType))
	out = usmbytes.WriteU32(out, c.FrameTime)
	out = usmbytes.WriteU32(out, c.FrameRate)
	out = append(out, make([]byte, 8)...) // r18-r1F
	out = append(out, payloadBytes...)
	out = append(out, make([]byte, padding)...)

	return out, nil
}

// PackedSize returns the total wire size of the chunk (header + payload +
// padding) without allocating the packed bytes.
func (c *Chunk) PackedSize() (int, error) {
	payloadBytes, err := c.packPayload()
	if err != nil {
		return 0, err
	}
	padding, err := c.computedPadding(payloadBytes)
	if err != nil {
		return 0, err
	}
	return headerSize + len(payloadBytes) + padding, nil
}
