// Package usm implements the USM demuxer: it walks a container's chunks,
// groups per-channel stream spans, matches each channel against its CRID
// metadata page, and writes elementary streams back out, optionally
// deciphering them.
package usm

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/usmtool/usmtool/internal/chunk"
	"github.com/usmtool/usmtool/internal/cipher"
	"github.com/usmtool/usmtool/internal/page"
	"github.com/usmtool/usmtool/internal/slug"
	"github.com/usmtool/usmtool/internal/usmbytes"
	"github.com/usmtool/usmtool/internal/usmtype"
)

// ErrBadSignature is returned when a file does not begin with the CRID
// magic.
var ErrBadSignature = errors.New("usm: file does not start with CRID magic")

// ErrSchemaViolation is returned when a required CRID or header field is
// missing or has the wrong element type.
var ErrSchemaViolation = errors.New("usm: schema violation")

// ErrMissingUsmCrid is returned when no INFO page with chno == -1 (the
// file-level CRID) is found.
var ErrMissingUsmCrid = errors.New("usm: no file-level CRID page found")

// ErrOrphanChannel is returned when a video/audio/alpha channel has
// stream data but no matching CRID page.
var ErrOrphanChannel = errors.New("usm: channel has no matching CRID page")

type streamSpan struct {
	offset uint64
	size   uint32
}

type channelAccum struct {
	stream   []streamSpan
	header   *page.Page
	metadata []*page.Page
}

// Track is one elementary stream: its channel number, its CRID metadata
// page, its HEADER page (if any), its METADATA pages (if any), and the
// file-offset spans making up its payload in file order.
type Track struct {
	ChannelNumber int
	Crid          *page.Page
	Header        *page.Page
	Metadata      []*page.Page
	stream        []streamSpan
}

// TotalBytes returns the sum of this track's stream span sizes.
func (t *Track) TotalBytes() uint64 {
	var total uint64
	for _, s := range t.stream {
		total += uint64(s.size)
	}
	return total
}

// SpanCount returns the number of stream spans recorded for this track.
func (t *Track) SpanCount() int { return len(t.stream) }

// Span describes one file-offset run of a track's raw (still-enciphered)
// payload bytes.
type Span struct {
	Offset uint64
	Size   uint32
}

// Spans returns this track's stream spans in file order. A consumer that
// needs random access into the track's logical byte stream (internal/usmfs)
// walks these to find which span covers a requested range; each span must
// be deciphered as a whole packet via DecipherPacket, not sliced first.
func (t *Track) Spans() []Span {
	out := make([]Span, len(t.stream))
	for i, s := range t.stream {
		out[i] = Span{Offset: s.offset, Size: s.size}
	}
	return out
}

// Usm is a demuxed view over a single USM file: its tracks, grouped by
// kind, plus the file-level CRID page and container version.
type Usm struct {
	path     string
	key      *uint64
	encoding string

	usmCrid *page.Page
	videos  []*Track
	audios  []*Track
	alphas  []*Track
	version *int32
}

// Path returns the backing file path.
func (u *Usm) Path() string { return u.path }

// Videos returns video tracks, sorted by channel number.
func (u *Usm) Videos() []*Track { return u.videos }

// Audios returns audio tracks, sorted by channel number.
func (u *Usm) Audios() []*Track { return u.audios }

// Alphas returns alpha-channel tracks, sorted by channel number.
func (u *Usm) Alphas() []*Track { return u.alphas }

// UsmCridPage returns the file-level CRID page (chno == -1).
func (u *Usm) UsmCridPage() *page.Page { return u.usmCrid }

// Version returns the container's fmtver, read from video channel 0's
// CRID page, if present.
func (u *Usm) Version() (int32, bool) {
	if u.version == nil {
		return 0, false
	}
	return *u.version, true
}

// Key returns the cipher seed this Usm was opened with, if any.
func (u *Usm) Key() *uint64 { return u.key }

func getI16(p *page.Page, key string) (int16, bool) {
	el, ok := p.Get(key)
	if !ok || el.Type != usmtype.I16 {
		return 0, false
	}
	return el.Value.(int16), true
}

func getI32(p *page.Page, key string) (int32, bool) {
	el, ok := p.Get(key)
	if !ok || el.Type != usmtype.I32 {
		return 0, false
	}
	return el.Value.(int32), true
}

// Open reads and indexes a USM file without extracting any payload
// bytes. key, if non-nil, is the default cipher seed used by Demux; it
// may be overridden per call. encoding is threaded through to the page
// codec (see chunk.ParseChunk).
func Open(path string, key *uint64, encoding string) (*Usm, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("usm: open %s: %w", path, err)
	}
	if info.Size() <= 0x20 {
		return nil, fmt.Errorf("usm: %s: file too small (%d bytes)", path, info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("usm: open %s: %w", path, err)
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, fmt.Errorf("usm: %s: read magic: %w", path, err)
	}
	if string(magic) != "CRID" {
		return nil, fmt.Errorf("%w: %s: got %q", ErrBadSignature, path, magic)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("usm: %s: seek: %w", path, err)
	}

	var crids []*page.Page
	videoCh := map[int]*channelAccum{}
	audioCh := map[int]*channelAccum{}
	alphaCh := map[int]*channelAccum{}

	for {
		offset, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("usm: %s: tell: %w", path, err)
		}
		if uint64(offset) >= uint64(info.Size()) {
			break
		}

		header := make([]byte, 0x20)
		if _, err := io.ReadFull(f, header); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("usm: %s: read chunk header: %w", path, err)
		}

		chunkSizeField, err := usmbytes.ReadU32(header, 4)
		if err != nil {
			return nil, err
		}
		payloadOffsetField, err := usmbytes.ReadU8(header, 9)
		if err != nil {
			return nil, err
		}
		paddingSize, err := usmbytes.ReadU16(header, 0xA)
		if err != nil {
			return nil, err
		}
		payloadSize := int(chunkSizeField) - int(paddingSize) - int(payloadOffsetField)
		if payloadSize < 0 {
			return nil, fmt.Errorf("usm: %s: negative payload size at offset %d", path, offset)
		}

		if _, err := f.Seek(-0x20, io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("usm: %s: seek back: %w", path, err)
		}

		chunkBytes := make([]byte, 0x20+payloadSize)
		if _, err := io.ReadFull(f, chunkBytes); err != nil {
			return nil, fmt.Errorf("usm: %s: read chunk body at offset %d: %w", path, offset, err)
		}

		if _, err := f.Seek(int64(paddingSize), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("usm: %s: skip padding: %w", path, err)
		}

		c, err := chunk.ParseChunk(chunkBytes, encoding)
		if err != nil {
			return nil, fmt.Errorf("usm: %s: chunk at offset %d: %w", path, offset, err)
		}

		if c.Type == usmtype.ChunkInfo {
			if c.Payload.IsPages() {
				crids = append(crids, c.Payload.Pages...)
			}
			continue
		}

		switch c.Type {
		case usmtype.ChunkVideo:
			if err := accumulateChunk(videoCh, c, uint64(offset)); err != nil {
				return nil, fmt.Errorf("usm: %s: %w", path, err)
			}
		case usmtype.ChunkAudio:
			if err := accumulateChunk(audioCh, c, uint64(offset)); err != nil {
				return nil, fmt.Errorf("usm: %s: %w", path, err)
			}
		case usmtype.ChunkAlpha:
			if err := accumulateChunk(alphaCh, c, uint64(offset)); err != nil {
				return nil, fmt.Errorf("usm: %s: %w", path, err)
			}
		default:
			log.Printf("usm: %s: ignoring chunk type %s at offset %d", path, c.Type, offset)
		}
	}

	var usmCrid *page.Page
	for _, p := range crids {
		if chno, ok := getI16(p, "chno"); ok && chno == -1 {
			usmCrid = p
			break
		}
	}
	if usmCrid == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingUsmCrid, path)
	}

	videos, err := buildTracks(videoCh, crids, uint32(usmtype.ChunkVideo))
	if err != nil {
		return nil, fmt.Errorf("usm: %s: %w", path, err)
	}
	audios, err := buildTracks(audioCh, crids, uint32(usmtype.ChunkAudio))
	if err != nil {
		return nil, fmt.Errorf("usm: %s: %w", path, err)
	}
	alphas, err := buildTracks(alphaCh, crids, uint32(usmtype.ChunkAlpha))
	if err != nil {
		return nil, fmt.Errorf("usm: %s: %w", path, err)
	}

	u := &Usm{
		path:     path,
		key:      key,
		encoding: encoding,
		usmCrid:  usmCrid,
		videos:   videos,
		audios:   audios,
		alphas:   alphas,
	}

	for _, v := range videos {
		if v.ChannelNumber != 0 {
			continue
		}
		if fmtver, ok := getI32(v.Crid, "fmtver"); ok {
			u.version = &fmtver
		}
		break
	}

	return u, nil
}

func accumulateChunk(dst map[int]*channelAccum, c *chunk.Chunk, chunkFileOffset uint64) error {
	chno := int(c.ChannelNumber)
	acc, ok := dst[chno]
	if !ok {
		acc = &channelAccum{}
		dst[chno] = acc
	}

	switch c.PayloadType {
	case usmtype.PayloadStream:
		if c.Payload.IsPages() {
			return fmt.Errorf("STREAM payload unexpectedly decoded as pages (channel %d)", chno)
		}
		acc.stream = append(acc.stream, streamSpan{
			offset: chunkFileOffset + uint64(c.PayloadOffset),
			size:   uint32(len(c.Payload.RawPayload)),
		})
	case usmtype.PayloadHeader:
		if !c.Payload.IsPages() || len(c.Payload.Pages) == 0 {
			return fmt.Errorf("HEADER payload missing pages (channel %d)", chno)
		}
		acc.header = c.Payload.Pages[0]
	case usmtype.PayloadMetadata:
		if !c.Payload.IsPages() {
			return fmt.Errorf("METADATA payload is not pages (channel %d)", chno)
		}
		acc.metadata = c.Payload.Pages
	case usmtype.PayloadSectionEnd:
		// ignored
	default:
		return fmt.Errorf("unknown payload type %d (channel %d)", c.PayloadType, chno)
	}
	return nil
}

func buildTracks(accums map[int]*channelAccum, crids []*page.Page, wantStmid uint32) ([]*Track, error) {
	tracks := make([]*Track, 0, len(accums))

	for chno, acc := range accums {
		var match *page.Page
		for _, p := range crids {
			pchno, ok := getI16(p, "chno")
			if !ok {
				continue
			}
			stmid, ok := getI32(p, "stmid")
			if !ok {
				continue
			}
			if int(pchno) != chno || uint32(stmid) != wantStmid {
				continue
			}
			match = p
			break
		}
		if match == nil {
			return nil, fmt.Errorf("%w: channel %d", ErrOrphanChannel, chno)
		}

		tracks = append(tracks, &Track{
			ChannelNumber: chno,
			Crid:          match,
			Header:        acc.header,
			Metadata:      acc.metadata,
			stream:        acc.stream,
		})
	}

	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].ChannelNumber < tracks[j].ChannelNumber
	})

	return tracks, nil
}

// DecipherPacket applies the per-kind packet transform to a single raw
// stream-span packet, deriving keys from seed. A nil seed returns raw
// unchanged. Alpha channels carry the same bitstream as video and use the
// video transform.
func DecipherPacket(kind usmtype.ChunkKind, raw []byte, seed *uint64) ([]byte, error) {
	if seed == nil {
		return raw, nil
	}
	videoKey, audioKey := cipher.GenerateKeys(*seed)
	switch kind {
	case usmtype.ChunkVideo, usmtype.ChunkAlpha:
		return cipher.DecryptVideoPacket(raw, videoKey[:])
	case usmtype.ChunkAudio:
		return cipher.CryptAudioPacket(raw, audioKey[:])
	default:
		return raw, nil
	}
}

// DemuxOptions controls which track kinds Demux extracts and which
// cipher key it uses.
type DemuxOptions struct {
	SaveVideo bool
	SaveAudio bool
	SaveAlpha bool

	// KeyOverride, if non-nil, replaces the key passed to Open for this
	// Demux call.
	KeyOverride *uint64

	// WrapWriter, if non-nil, wraps each track's output file before
	// writing — the hook internal/ratewriter's throttled writer plugs
	// into via usmtool demux --rate-limit-mbps.
	WrapWriter func(io.Writer) io.Writer

	// OnTrackWritten, if non-nil, is called after each track finishes
	// writing successfully, letting a caller (usmtool's --metrics-addr)
	// record per-kind counters without the core codec importing a
	// metrics package.
	OnTrackWritten func(kind usmtype.ChunkKind, t *Track)
}

// Demux writes this USM's tracks to <outDir>/<slug(filename)>/{videos,
// audios,alphas}/<slug(basename(crid.filename))>, deciphering each
// track's payload with the per-kind transform when a key is available.
func (u *Usm) Demux(outDir string, opts DemuxOptions) error {
	useKey := u.key
	if opts.KeyOverride != nil {
		useKey = opts.KeyOverride
	}

	folder := slug.Slug(filepath.Base(u.path), true)
	outRoot := filepath.Join(outDir, folder)
	if err := os.MkdirAll(outRoot, 0o755); err != nil {
		return fmt.Errorf("usm: demux %s: %w", u.path, err)
	}

	writeTrack := func(t *Track, subdir string, kind usmtype.ChunkKind) error {
		in, err := os.Open(u.path)
		if err != nil {
			return fmt.Errorf("usm: demux: open input: %w", err)
		}
		defer in.Close()

		name, err := t.Crid.GetString("filename")
		if err != nil {
			return fmt.Errorf("%w: track channel %d missing filename: %v", ErrSchemaViolation, t.ChannelNumber, err)
		}
		name = slug.Slug(slug.Basename(name), true)

		outPath := filepath.Join(subdir, name)
		out, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("usm: demux: create %s: %w", outPath, err)
		}
		defer out.Close()

		var w io.Writer = out
		if opts.WrapWriter != nil {
			w = opts.WrapWriter(out)
		}

		for _, span := range t.stream {
			buf := make([]byte, span.size)
			if _, err := in.ReadAt(buf, int64(span.offset)); err != nil {
				return fmt.Errorf("usm: demux: read span at offset %d: %w", span.offset, err)
			}

			buf, err = DecipherPacket(kind, buf, useKey)
			if err != nil {
				return fmt.Errorf("usm: demux: decipher packet: %w", err)
			}

			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("usm: demux: write %s: %w", outPath, err)
			}
		}

		log.Printf("usm: demux: wrote track channel=%d path=%s spans=%d bytes=%d", t.ChannelNumber, outPath, t.SpanCount(), t.TotalBytes())

		if opts.OnTrackWritten != nil {
			opts.OnTrackWritten(kind, t)
		}
		return nil
	}

	if opts.SaveVideo && len(u.videos) > 0 {
		sub := filepath.Join(outRoot, "videos")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("usm: demux %s: %w", u.path, err)
		}
		for _, t := range u.videos {
			if err := writeTrack(t, sub, usmtype.ChunkVideo); err != nil {
				return err
			}
		}
	}

	if opts.SaveAudio && len(u.audios) > 0 {
		sub := filepath.Join(outRoot, "audios")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("usm: demux %s: %w", u.path, err)
		}
		for _, t := range u.audios {
			if err := writeTrack(t, sub, usmtype.ChunkAudio); err != nil {
				return err
			}
		}
	}

	if opts.SaveAlpha && len(u.alphas) > 0 {
		sub := filepath.Join(outRoot, "alphas")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("usm: demux %s: %w", u.path, err)
		}
		for _, t := range u.alphas {
			if err := writeTrack(t, sub, usmtype.ChunkAlpha); err != nil {
				return err
			}
		}
	}

	return nil
}
