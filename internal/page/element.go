package page

import (
	"math"

	"github.com/usmtool/usmtool/internal/usmtype"
)

// Element is a typed scalar/string/bytes value: the closed tagged union
// over the twelve element types the wire format defines.
type Element struct {
	Type  usmtype.ElementType
	Value any // one of int8,uint8,int16,uint16,int32,uint32,int64,uint64,float32,float64,string,[]byte
}

// Equal reports whether two elements carry the same type and an
// equivalent value. Floats compare by raw IEEE-754 bits rather than by ==
// so that NaN payloads compare equal to themselves during recurring-column
// detection.
func (e Element) Equal(o Element) bool {
	if e.Type != o.Type {
		return false
	}
	switch e.Type {
	case usmtype.F32:
		return math.Float32bits(e.Value.(float32)) == math.Float32bits(o.Value.(float32))
	case usmtype.F64:
		return math.Float64bits(e.Value.(float64)) == math.Float64bits(o.Value.(float64))
	case usmtype.Bytes:
		a, b := e.Value.([]byte), o.Value.([]byte)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	default:
		return e.Value == o.Value
	}
}
