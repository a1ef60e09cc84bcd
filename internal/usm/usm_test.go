package usm

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/usmtool/usmtool/internal/chunk"
	"github.com/usmtool/usmtool/internal/page"
	"github.com/usmtool/usmtool/internal/usmtype"
)

func mustPack(t *testing.T, c *chunk.Chunk) []byte {
	t.Helper()
	buf, err := c.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	return buf
}

func writeSyntheticUsm(t *testing.T, videoPayload []byte) string {
	t.Helper()

	fileCrid := page.New("CRIUSF_DIR_STREAM")
	fileCrid.Update("chno", usmtype.I16, int16(-1))
	fileCrid.Update("stmid", usmtype.I32, int32(0))
	fileCrid.Update("filename", usmtype.String, "synthetic.usm")
	fileCrid.Update("fmtver", usmtype.I32, int32(0x18040000))

	videoCrid := page.New("CRIUSF_DIR_STREAM")
	videoCrid.Update("chno", usmtype.I16, int16(0))
	videoCrid.Update("stmid", usmtype.I32, int32(usmtype.ChunkVideo))
	videoCrid.Update("filename", usmtype.String, "movie.usm")
	videoCrid.Update("fmtver", usmtype.I32, int32(0x18040000))

	infoChunk := &chunk.Chunk{
		Type:        usmtype.ChunkInfo,
		PayloadType: usmtype.PayloadHeader,
		Payload:     chunk.Payload{Pages: []*page.Page{fileCrid, videoCrid}},
	}

	videoHeader := page.New("VIDEO_HDRINFO")
	videoHeader.Update("width", usmtype.I32, int32(1920))

	videoHeaderChunk := &chunk.Chunk{
		Type:          usmtype.ChunkVideo,
		PayloadType:   usmtype.PayloadHeader,
		ChannelNumber: 0,
		Payload:       chunk.Payload{Pages: []*page.Page{videoHeader}},
	}

	videoStreamChunk := &chunk.Chunk{
		Type:          usmtype.ChunkVideo,
		PayloadType:   usmtype.PayloadStream,
		ChannelNumber: 0,
		Payload:       chunk.Payload{RawPayload: videoPayload},
	}

	var buf bytes.Buffer
	buf.Write(mustPack(t, infoChunk))
	buf.Write(mustPack(t, videoHeaderChunk))
	buf.Write(mustPack(t, videoStreamChunk))

	dir := t.TempDir()
	path := filepath.Join(dir, "synthetic.usm")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestOpenRejectsTooSmallFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.usm")
	if err := os.WriteFile(path, []byte("CRID"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path, nil, "utf-8"); err == nil {
		t.Fatalf("expected error for too-small file")
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.usm")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x00}, 64), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path, nil, "utf-8"); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestOpenAndDemuxSyntheticFile(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 64)
	path := writeSyntheticUsm(t, payload)

	u, err := Open(path, nil, "utf-8")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(u.Videos()) != 1 {
		t.Fatalf("expected 1 video track, got %d", len(u.Videos()))
	}
	v := u.Videos()[0]
	if v.SpanCount() != 1 {
		t.Fatalf("expected 1 stream span, got %d", v.SpanCount())
	}
	if v.TotalBytes() != uint64(len(payload)) {
		t.Fatalf("total bytes = %d, want %d", v.TotalBytes(), len(payload))
	}

	version, ok := u.Version()
	if !ok || version != 0x18040000 {
		t.Fatalf("version = %v, %v", version, ok)
	}

	outDir := t.TempDir()
	if err := u.Demux(outDir, DemuxOptions{SaveVideo: true}); err != nil {
		t.Fatalf("Demux: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "*", "videos", "*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 demuxed file, got %v", matches)
	}

	got, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("demuxed payload mismatch: got %x want %x", got, payload)
	}
}

func TestOpenRejectsMissingFileCrid(t *testing.T) {
	videoCrid := page.New("CRIUSF_DIR_STREAM")
	videoCrid.Update("chno", usmtype.I16, int16(0))
	videoCrid.Update("stmid", usmtype.I32, int32(usmtype.ChunkVideo))
	videoCrid.Update("filename", usmtype.String, "movie.usm")

	infoChunk := &chunk.Chunk{
		Type:        usmtype.ChunkInfo,
		PayloadType: usmtype.PayloadHeader,
		Payload:     chunk.Payload{Pages: []*page.Page{videoCrid}},
	}

	var buf bytes.Buffer
	buf.Write(mustPack(t, infoChunk))

	dir := t.TempDir()
	path := filepath.Join(dir, "no_file_crid.usm")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Open(path, nil, "utf-8"); err == nil {
		t.Fatalf("expected ErrMissingUsmCrid")
	}
}
