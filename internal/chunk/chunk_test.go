package chunk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/usmtool/usmtool/internal/page"
	"github.com/usmtool/usmtool/internal/usmbytes"
	"github.com/usmtool/usmtool/internal/usmtype"
)

func TestPackParseRoundTripRawPayload(t *testing.T) {
	c := &Chunk{
		Type:          usmtype.ChunkVideo,
		PayloadType:   usmtype.PayloadStream,
		Payload:       Payload{RawPayload: []byte{1, 2, 3, 4, 5}},
		FrameTime:     7,
		FrameRate:     30,
		ChannelNumber: 0,
	}

	buf, err := c.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	got, err := ParseChunk(buf, "utf-8")
	if err != nil {
		t.Fatalf("ParseChunk: %v", err)
	}
	if got.Type != usmtype.ChunkVideo {
		t.Fatalf("type = %v", got.Type)
	}
	if !bytes.Equal(got.Payload.RawPayload, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("payload = %v", got.Payload.RawPayload)
	}
	if got.FrameTime != 7 || got.FrameRate != 30 {
		t.Fatalf("frame time/rate = %d/%d", got.FrameTime, got.FrameRate)
	}
}

func TestPackParseRoundTripPagesPayload(t *testing.T) {
	p := page.New("CRIUSF_DIR_STREAM")
	p.Update("fmtver", usmtype.U32, uint32(0x18040000))
	p.Update("filename", usmtype.String, "video.usm")

	c := &Chunk{
		Type:        usmtype.ChunkInfo,
		PayloadType: usmtype.PayloadHeader,
		Payload:     Payload{Pages: []*page.Page{p}},
	}

	buf, err := c.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	got, err := ParseChunk(buf, "utf-8")
	if err != nil {
		t.Fatalf("ParseChunk: %v", err)
	}
	if !got.Payload.IsPages() {
		t.Fatalf("expected pages payload")
	}
	if len(got.Payload.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(got.Payload.Pages))
	}
	name, err := got.Payload.Pages[0].GetString("filename")
	if err != nil || name != "video.usm" {
		t.Fatalf("filename = %q, %v", name, err)
	}
}

func TestPackWithPaddingFunc(t *testing.T) {
	c := &Chunk{
		Type:        usmtype.ChunkAudio,
		PayloadType: usmtype.PayloadStream,
		Payload:     Payload{RawPayload: bytes.Repeat([]byte{0xAB}, 10)},
		Padding: func(unpadded int) int {
			rem := unpadded % 0x800
			if rem == 0 {
				return 0
			}
			return 0x800 - rem
		},
	}

	buf, err := c.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(buf)%0x800 != 0 {
		t.Fatalf("packed chunk not sector-aligned: %d bytes", len(buf))
	}

	got, err := ParseChunk(buf, "utf-8")
	if err != nil {
		t.Fatalf("ParseChunk: %v", err)
	}
	if !bytes.Equal(got.Payload.RawPayload, bytes.Repeat([]byte{0xAB}, 10)) {
		t.Fatalf("payload mismatch after padded round trip")
	}
}

func TestParseRejectsShortBuffer(t *testing.T) {
	if _, err := ParseChunk(make([]byte, 10), "utf-8"); err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestParseRejectsUnknownSignature(t *testing.T) {
	buf := make([]byte, 0x20)
	copy(buf, "XXXX")
	if _, err := ParseChunk(buf, "utf-8"); err == nil {
		t.Fatalf("expected error for unknown chunk signature")
	}
}

func TestParseRejectsOversizedPayloadClaim(t *testing.T) {
	buf := make([]byte, 0x20)
	copy(buf, usmbytes.WriteU32(nil, uint32(usmtype.ChunkVideo)))
	// chunksize field claims far more payload than the buffer actually has.
	copy(buf[4:8], usmbytes.WriteU32(nil, 0xFFFF))
	buf[9] = 0x18
	if _, err := ParseChunk(buf, "utf-8"); !errors.Is(err, ErrBadChunkGeometry) {
		t.Fatalf("expected ErrBadChunkGeometry, got %v", err)
	}
}
