// Package page implements the embedded @UTF columnar table format used as
// the payload of INFO, HEADER, and METADATA chunks: an ordered sequence of
// pages sharing a name and key order, with recurring columns deduplicated
// into a shared area and varying columns stored per row in a unique area.
package page

import (
	"errors"
	"fmt"
	"strings"

	"github.com/usmtool/usmtool/internal/usmtype"
)

// ErrUnterminatedString names the unterminated-string failure kind.
// ParsePages does not wrap it: a string-pool read that runs off the end of
// the buffer without finding a NUL terminator fails with the plain error
// usmbytes.ReadCString returns, so errors.Is against this sentinel does
// not match that failure.
var ErrUnterminatedString = errors.New("page: unterminated string")

// ErrUnsupportedElementType is returned when a column carries a declared
// element type the codec does not implement a wire encoding for (F64 is a
// member of the type enumeration but, matching the reference
// implementation, has no parse/pack support).
var ErrUnsupportedElementType = errors.New("page: unsupported element type")

// ErrSchemaViolation is returned when a caller asks for a key or type a
// page does not have.
var ErrSchemaViolation = errors.New("page: schema violation")

// Page is an ordered string-keyed mapping to Element. Key order is
// preserved on insertion; updating an existing key does not move it.
type Page struct {
	name   string
	order  []string
	values map[string]Element
}

// New creates an empty page with the given name.
func New(name string) *Page {
	return &Page{name: name, values: make(map[string]Element)}
}

// Name returns the page's name (e.g. "CRIUSF_DIR_STREAM").
func (p *Page) Name() string { return p.name }

// KeyOrder returns the page's keys in insertion order.
func (p *Page) KeyOrder() []string { return p.order }

// Update sets key to the given typed value, appending key to the key
// order if it is new. If key is "filename" and the value is a string,
// backslashes are normalised to forward slashes before storing.
func (p *Page) Update(key string, typ usmtype.ElementType, value any) {
	if key == "filename" {
		if s, ok := value.(string); ok {
			value = strings.ReplaceAll(s, "\\", "/")
		}
	}
	if _, exists := p.values[key]; !exists {
		p.order = append(p.order, key)
	}
	p.values[key] = Element{Type: typ, Value: value}
}

// Get returns the element stored at key, if any.
func (p *Page) Get(key string) (Element, bool) {
	e, ok := p.values[key]
	return e, ok
}

// At returns the element stored at key, or ErrSchemaViolation if absent.
func (p *Page) At(key string) (Element, error) {
	e, ok := p.values[key]
	if !ok {
		return Element{}, fmt.Errorf("%w: missing key %q", ErrSchemaViolation, key)
	}
	return e, nil
}

// GetU32 returns the U32-typed element at key, or ErrSchemaViolation if
// the key is missing or not a U32.
func (p *Page) GetU32(key string) (uint32, error) {
	e, err := p.At(key)
	if err != nil {
		return 0, err
	}
	if e.Type != usmtype.U32 {
		return 0, fmt.Errorf("%w: %q is not U32", ErrSchemaViolation, key)
	}
	return e.Value.(uint32), nil
}

// GetI16 returns the I16-typed element at key, or ErrSchemaViolation if
// the key is missing or not an I16.
func (p *Page) GetI16(key string) (int16, error) {
	e, err := p.At(key)
	if err != nil {
		return 0, err
	}
	if e.Type != usmtype.I16 {
		return 0, fmt.Errorf("%w: %q is not I16", ErrSchemaViolation, key)
	}
	return e.Value.(int16), nil
}

// GetI32 returns the I32-typed element at key, or ErrSchemaViolation if
// the key is missing or not an I32.
func (p *Page) GetI32(key string) (int32, error) {
	e, err := p.At(key)
	if err != nil {
		return 0, err
	}
	if e.Type != usmtype.I32 {
		return 0, fmt.Errorf("%w: %q is not I32", ErrSchemaViolation, key)
	}
	return e.Value.(int32), nil
}

// GetString returns the STRING-typed element at key, or ErrSchemaViolation
// if the key is missing or not a STRING.
func (p *Page) GetString(key string) (string, error) {
	e, err := p.At(key)
	if err != nil {
		return "", err
	}
	if e.Type != usmtype.String {
		return "", fmt.Errorf("%w: %q is not STRING", ErrSchemaViolation, key)
	}
	return e.Value.(string), nil
}

// Clone returns a deep-enough copy of p (element values are immutable by
// convention except for []byte, which is copied).
func (p *Page) Clone() *Page {
	c := New(p.name)
	c.order = append([]string(nil), p.order...)
	c.values = make(map[string]Element, len(p.values))
	for k, v := range p.values {
		if v.Type == usmtype.Bytes {
			v.Value = append([]byte(nil), v.Value.([]byte)...)
		}
		c.values[k] = v
	}
	return c
}
