// Package manifest renders parsed @UTF pages to JSON for human inspection
// (the CLI's inspect subcommand), optionally brotli-compressed for
// archival. This only ever touches page metadata, never elementary-stream
// payload bytes, so it cannot violate the bit-exact extraction contract.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/usmtool/usmtool/internal/page"
	"github.com/usmtool/usmtool/internal/usmtype"
)

// fieldJSON is one column of a rendered page, keeping key order explicit
// since encoding/json map iteration would scramble it.
type fieldJSON struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// pageJSON is one rendered page: its name plus its fields in key order.
type pageJSON struct {
	Name   string      `json:"name"`
	Fields []fieldJSON `json:"fields"`
}

var elementTypeNames = map[usmtype.ElementType]string{
	usmtype.I8:     "I8",
	usmtype.U8:     "U8",
	usmtype.I16:    "I16",
	usmtype.U16:    "U16",
	usmtype.I32:    "I32",
	usmtype.U32:    "U32",
	usmtype.I64:    "I64",
	usmtype.U64:    "U64",
	usmtype.F32:    "F32",
	usmtype.F64:    "F64",
	usmtype.String: "STRING",
	usmtype.Bytes:  "BYTES",
}

func elementTypeName(t usmtype.ElementType) string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(t))
}

// renderPage converts a *page.Page into its JSON-shaped form, preserving
// key order. []byte values are base64-encoded by encoding/json's default
// handling of any holding a []byte.
func renderPage(p *page.Page) pageJSON {
	out := pageJSON{Name: p.Name()}
	for _, key := range p.KeyOrder() {
		el, ok := p.Get(key)
		if !ok {
			continue
		}
		out.Fields = append(out.Fields, fieldJSON{
			Key:   key,
			Type:  elementTypeName(el.Type),
			Value: el.Value,
		})
	}
	return out
}

// DumpPages serialises pages to w as a JSON array, one object per page,
// indented for readability. When brotliCompress is set, w receives the
// brotli-compressed form instead of raw JSON (for writing a .json.br
// manifest alongside a demuxed file).
func DumpPages(w io.Writer, pages []*page.Page, brotliCompress bool) error {
	rendered := make([]pageJSON, 0, len(pages))
	for _, p := range pages {
		rendered = append(rendered, renderPage(p))
	}

	dst := w
	var bw *brotli.Writer
	if brotliCompress {
		bw = brotli.NewWriter(w)
		dst = bw
	}

	enc := json.NewEncoder(dst)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rendered); err != nil {
		return fmt.Errorf("manifest: encode pages: %w", err)
	}

	if bw != nil {
		if err := bw.Close(); err != nil {
			return fmt.Errorf("manifest: close brotli writer: %w", err)
		}
	}
	return nil
}
