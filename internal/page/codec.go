package page

import (
	"fmt"
	"math"

	"github.com/usmtool/usmtool/internal/usmbytes"
	"github.com/usmtool/usmtool/internal/usmtype"
)

// ErrBadSignature is returned when a buffer does not begin with the @UTF
// page-table magic.
var ErrBadSignature = fmt.Errorf("page: buffer does not start with @UTF signature")

// nullSentinel is the literal string every packed string pool begins with,
// at offset 0, matching the reference implementation's pack_pages.
const nullSentinel = "<NULL>"

// ParsePages reads a sequence of pages from a buffer beginning with the
// @UTF signature.
func ParsePages(buf []byte) ([]*Page, error) {
	if len(buf) < 8 || string(buf[0:4]) != "@UTF" {
		return nil, ErrBadSignature
	}

	payloadSize, err := usmbytes.ReadU32(buf, 4)
	if err != nil {
		return nil, err
	}
	uniqueArrayOffset, err := usmbytes.ReadU32(buf, 8)
	if err != nil {
		return nil, err
	}
	stringsOffset, err := usmbytes.ReadU32(buf, 12)
	if err != nil {
		return nil, err
	}
	byteArrayOffset, err := usmbytes.ReadU32(buf, 16)
	if err != nil {
		return nil, err
	}
	pageNameOffset, err := usmbytes.ReadU32(buf, 20)
	if err != nil {
		return nil, err
	}
	numElementsPerPage, err := usmbytes.ReadU16(buf, 24)
	if err != nil {
		return nil, err
	}
	uniqueArraySizePerPage, err := usmbytes.ReadU16(buf, 26)
	if err != nil {
		return nil, err
	}
	numPages, err := usmbytes.ReadU32(buf, 28)
	if err != nil {
		return nil, err
	}

	stringArray, err := usmbytes.Slice(buf, 8+int(stringsOffset), 8+int(byteArrayOffset))
	if err != nil {
		return nil, err
	}
	byteArray, err := usmbytes.Slice(buf, 8+int(byteArrayOffset), 8+int(payloadSize))
	if err != nil {
		return nil, err
	}

	pageName, err := usmbytes.ReadCString(stringArray, int(pageNameOffset))
	if err != nil {
		return nil, err
	}

	pages := make([]*Page, numPages)
	for i := range pages {
		pages[i] = New(pageName)
	}

	uniqueArray, err := usmbytes.Slice(buf, 8+int(uniqueArrayOffset), 8+int(uniqueArrayOffset)+int(uniqueArraySizePerPage)*int(numPages))
	if err != nil {
		return nil, err
	}

	sharedArray, err := usmbytes.Slice(buf, 0x20, 8+int(uniqueArrayOffset))
	if err != nil {
		return nil, err
	}

	uniquePos := 0
	for p := uint32(0); p < numPages; p++ {
		sharedPos := 0

		for e := uint16(0); e < numElementsPerPage; e++ {
			if sharedPos+5 > len(sharedArray) {
				return nil, fmt.Errorf("page: %w: shared descriptor at %d", usmbytes.ErrBufferUnderrun, sharedPos)
			}

			packed := sharedArray[sharedPos]
			et, err := usmtype.ElementTypeFromU8(packed & 0x1F)
			if err != nil {
				return nil, err
			}
			occ, err := usmtype.OccurrenceFromU8(packed >> 5)
			if err != nil {
				return nil, err
			}
			nameOff, err := usmbytes.ReadU32(sharedArray, sharedPos+1)
			if err != nil {
				return nil, err
			}
			sharedPos += 5

			elementName, err := usmbytes.ReadCString(stringArray, int(nameOff))
			if err != nil {
				return nil, err
			}

			var src []byte
			var pos *int
			if occ == usmtype.Recurring {
				src = sharedArray
				pos = &sharedPos
			} else {
				src = uniqueArray
				pos = &uniquePos
			}

			val, consumed, err := readElementValue(et, src, *pos, stringArray, byteArray)
			if err != nil {
				return nil, err
			}
			*pos += consumed

			pages[p].Update(elementName, et, val)
		}
	}

	return pages, nil
}

func readElementValue(et usmtype.ElementType, src []byte, pos int, stringArray, byteArray []byte) (any, int, error) {
	switch et {
	case usmtype.I8:
		v, err := usmbytes.ReadI8(src, pos)
		return v, 1, err
	case usmtype.U8:
		v, err := usmbytes.ReadU8(src, pos)
		return v, 1, err
	case usmtype.I16:
		v, err := usmbytes.ReadI16(src, pos)
		return v, 2, err
	case usmtype.U16:
		v, err := usmbytes.ReadU16(src, pos)
		return v, 2, err
	case usmtype.I32:
		v, err := usmbytes.ReadI32(src, pos)
		return v, 4, err
	case usmtype.U32:
		v, err := usmbytes.ReadU32(src, pos)
		return v, 4, err
	case usmtype.I64:
		v, err := usmbytes.ReadI64(src, pos)
		return v, 8, err
	case usmtype.U64:
		v, err := usmbytes.ReadU64(src, pos)
		return v, 8, err
	case usmtype.F32:
		v, err := usmbytes.ReadF32LE(src, pos)
		return v, 4, err
	case usmtype.String:
		off, err := usmbytes.ReadU32(src, pos)
		if err != nil {
			return nil, 0, err
		}
		s, err := usmbytes.ReadCString(stringArray, int(off))
		return s, 4, err
	case usmtype.Bytes:
		begin, err := usmbytes.ReadU32(src, pos)
		if err != nil {
			return nil, 0, err
		}
		end, err := usmbytes.ReadU32(src, pos+4)
		if err != nil {
			return nil, 0, err
		}
		if end < begin || int(end) > len(byteArray) {
			return nil, 0, fmt.Errorf("page: %w: bad bytes element bounds [%d,%d)", usmbytes.ErrBufferUnderrun, begin, end)
		}
		b := append([]byte(nil), byteArray[begin:end]...)
		return b, 8, nil
	default:
		return nil, 0, fmt.Errorf("%w: 0x%02x", ErrUnsupportedElementType, et)
	}
}

// PackPages emits a sequence of pages sharing the same name and key order
// as a single @UTF payload. stringPadding trailing NUL bytes are appended
// to the string array (useful for aligning subsequent chunk padding).
func PackPages(pages []*Page, stringPadding int) ([]byte, error) {
	if len(pages) == 0 {
		return nil, nil
	}

	pageName := pages[0].Name()
	order := pages[0].KeyOrder()
	for _, p := range pages {
		if p.Name() != pageName {
			return nil, fmt.Errorf("page: pack: page name mismatch %q vs %q", p.Name(), pageName)
		}
		if len(p.KeyOrder()) != len(order) {
			return nil, fmt.Errorf("page: pack: key count mismatch")
		}
		for i, k := range p.KeyOrder() {
			if k != order[i] {
				return nil, fmt.Errorf("page: pack: key order mismatch at %d: %q vs %q", i, k, order[i])
			}
		}
	}

	var stringArray []byte
	stringArray = append(stringArray, nullSentinel...)
	stringArray = append(stringArray, 0x00)

	pageNameOffset := uint32(len(stringArray))
	stringArray = append(stringArray, pageName...)
	stringArray = append(stringArray, 0x00)

	nameOffsets := make([]uint32, len(order))
	for i, key := range order {
		nameOffsets[i] = uint32(len(stringArray))
		stringArray = append(stringArray, key...)
		stringArray = append(stringArray, 0x00)
	}

	recurring := make([]bool, len(order))
	if len(pages) > 1 {
		for i, key := range order {
			first, err := pages[0].At(key)
			if err != nil {
				return nil, err
			}
			all := true
			for _, p := range pages[1:] {
				v, err := p.At(key)
				if err != nil {
					return nil, err
				}
				if !first.Equal(v) {
					all = false
					break
				}
			}
			recurring[i] = all
		}
	}

	var sharedArray, uniqueArray, byteArray []byte

	for pi, p := range pages {
		for ki, key := range order {
			el, err := p.At(key)
			if err != nil {
				return nil, err
			}

			if recurring[ki] {
				if pi != 0 {
					continue
				}
				typePacked := byte(el.Type) | byte(usmtype.Recurring)<<5
				sharedArray = append(sharedArray, typePacked)
				sharedArray = usmbytes.WriteU32(sharedArray, nameOffsets[ki])

				var err error
				sharedArray, stringArray, byteArray, err = appendElementValue(sharedArray, stringArray, byteArray, el)
				if err != nil {
					return nil, err
				}
				continue
			}

			if pi == 0 {
				typePacked := byte(el.Type) | byte(usmtype.NonRecurring)<<5
				sharedArray = append(sharedArray, typePacked)
				sharedArray = usmbytes.WriteU32(sharedArray, nameOffsets[ki])
			}

			uniqueArray, stringArray, byteArray, err = appendElementValue(uniqueArray, stringArray, byteArray, el)
			if err != nil {
				return nil, err
			}
		}
	}

	if stringPadding > 0 {
		stringArray = append(stringArray, make([]byte, stringPadding)...)
	}

	if len(uniqueArray)%len(pages) != 0 {
		return nil, fmt.Errorf("page: pack: unique array size %d not divisible by page count %d", len(uniqueArray), len(pages))
	}
	uniqueSizePerPage := len(uniqueArray) / len(pages)
	if uniqueSizePerPage > 0xFFFF {
		return nil, fmt.Errorf("page: pack: unique size per page overflows uint16")
	}

	dataSize := uint32(24 + len(sharedArray) + len(uniqueArray) + len(stringArray) + len(byteArray))
	uniqueArrayOffset := uint32(24 + len(sharedArray))
	stringsOffset := uint32(24 + len(sharedArray) + len(uniqueArray))
	byteArrayOffset := uint32(24 + len(sharedArray) + len(uniqueArray) + len(stringArray))

	var out []byte
	out = append(out, '@', 'U', 'T', 'F')
	out = usmbytes.WriteU32(out, dataSize)
	out = usmbytes.WriteU32(out, uniqueArrayOffset)
	out = usmbytes.WriteU32(out, stringsOffset)
	out = usmbytes.WriteU32(out, byteArrayOffset)
	out = usmbytes.WriteU32(out, pageNameOffset)
	out = usmbytes.WriteU16(out, uint16(len(order)))
	out = usmbytes.WriteU16(out, uint16(uniqueSizePerPage))
	out = usmbytes.WriteU32(out, uint32(len(pages)))
	out = append(out, sharedArray...)
	out = append(out, uniqueArray...)
	out = append(out, stringArray...)
	out = append(out, byteArray...)

	return out, nil
}

func appendElementValue(dst, stringArray, byteArray []byte, el Element) (newDst, newStringArray, newByteArray []byte, err error) {
	switch el.Type {
	case usmtype.I8:
		dst = append(dst, byte(el.Value.(int8)))
	case usmtype.U8:
		dst = append(dst, el.Value.(uint8))
	case usmtype.I16:
		dst = usmbytes.WriteU16(dst, uint16(el.Value.(int16)))
	case usmtype.U16:
		dst = usmbytes.WriteU16(dst, el.Value.(uint16))
	case usmtype.I32:
		dst = usmbytes.WriteU32(dst, uint32(el.Value.(int32)))
	case usmtype.U32:
		dst = usmbytes.WriteU32(dst, el.Value.(uint32))
	case usmtype.I64:
		dst = usmbytes.WriteU64(dst, uint64(el.Value.(int64)))
	case usmtype.U64:
		dst = usmbytes.WriteU64(dst, el.Value.(uint64))
	case usmtype.F32:
		dst = usmbytes.WriteF32LE(dst, el.Value.(float32))
	case usmtype.String:
		off := uint32(len(stringArray))
		stringArray = append(stringArray, el.Value.(string)...)
		stringArray = append(stringArray, 0x00)
		dst = usmbytes.WriteU32(dst, off)
	case usmtype.Bytes:
		b := el.Value.([]byte)
		begin := uint32(len(byteArray))
		end := begin + uint32(len(b))
		dst = usmbytes.WriteU32(dst, begin)
		dst = usmbytes.WriteU32(dst, end)
		byteArray = append(byteArray, b...)
	default:
		return nil, nil, nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedElementType, el.Type)
	}
	return dst, stringArray, byteArray, nil
}

// bitsEqualFloat32 reports whether a and b have identical IEEE-754 bit
// patterns, the NaN-safe comparison Element.Equal applies to F32 values.
func bitsEqualFloat32(a, b float32) bool {
	return math.Float32bits(a) == math.Float32bits(b)
}

// ErrNotSeekInfo is returned when SeekFrameIndices is given a page whose
// name is not VIDEO_SEEKINFO.
var ErrNotSeekInfo = fmt.Errorf("page: expected VIDEO_SEEKINFO page")

// SeekFrameIndices extracts the ofs_frmid column from a CUE chunk's
// VIDEO_SEEKINFO pages, giving the frame index of each keyframe in
// presentation order. A nil slice of seek pages (no CUE chunk present)
// yields a nil result, not an error.
func SeekFrameIndices(seekPages []*Page) ([]uint32, error) {
	if seekPages == nil {
		return nil, nil
	}

	result := make([]uint32, 0, len(seekPages))
	for _, seek := range seekPages {
		if seek.Name() != "VIDEO_SEEKINFO" {
			return nil, fmt.Errorf("%w: got %q", ErrNotSeekInfo, seek.Name())
		}
		v, err := seek.GetU32("ofs_frmid")
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}
