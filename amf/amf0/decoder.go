package amf0

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Decode returns the first value encoded in b and the number of bytes it spans.
// Possible return types: float64, bool, string, map[string]interface{}, nil, Undefined, ECMAArray,
// []interface{}, time.Time.
// If the contents of b represent a Number (either int or float), it will be returned as a float64.
// Objects and arrays nested more than MaxDepth levels deep fail with ErrNestingTooDeep.
func Decode(b []byte) (interface{}, int, error) {
	return decode(b, 0)
}

func decode(b []byte, depth int) (interface{}, int, error) {
	if len(b) == 0 {
		return nil, 0, ErrTruncated
	}
	switch b[0] {
	case TypeNumber:
		if len(b) < 9 {
			return nil, 0, ErrTruncated
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b[1:9])), 9, nil
	case TypeBoolean:
		if len(b) < 2 {
			return nil, 0, ErrTruncated
		}
		return b[1] != 0, 2, nil
	case TypeString:
		s, n, err := decodeString(b[1:])
		return s, n + 1, err
	case TypeLongString:
		if len(b) < 5 {
			return nil, 0, ErrTruncated
		}
		length := int(binary.BigEndian.Uint32(b[1:5]))
		if len(b)-5 < length {
			return nil, 0, ErrTruncated
		}
		return string(b[5 : 5+length]), 5 + length, nil
	case TypeObject:
		m, n, err := decodeProperties(b[1:], depth+1)
		return m, n + 1, err
	case TypeNull:
		return nil, 1, nil
	case TypeUndefined:
		return Undefined{}, 1, nil
	case TypeECMAArray:
		// The associative count is only a hint, the array ends with an object end marker like an object.
		if len(b) < 5 {
			return nil, 0, ErrTruncated
		}
		m, n, err := decodeProperties(b[5:], depth+1)
		return ECMAArray(m), n + 5, err
	case TypeStrictArray:
		return decodeStrictArray(b, depth+1)
	case TypeDate:
		if len(b) < 11 {
			return nil, 0, ErrTruncated
		}
		// Last 2 bytes are the time zone, which is ignored
		milliseconds := int64(math.Float64frombits(binary.BigEndian.Uint64(b[1:9])))
		return time.UnixMilli(milliseconds), 11, nil
	default:
		return nil, 0, errors.Wrapf(ErrUnsupportedType, "cannot decode type with header 0x%02x", b[0])
	}
}

// DecodeAll decodes every value in b, e.g. the command name, transaction ID and arguments of a command
// message.
func DecodeAll(b []byte) ([]interface{}, error) {
	var values []interface{}
	for len(b) > 0 {
		v, n, err := Decode(b)
		if err != nil {
			return values, err
		}
		values = append(values, v)
		b = b[n:]
	}
	return values, nil
}

// decodeString decodes a string without its type marker: a 16 bit length followed by the UTF-8 bytes.
func decodeString(b []byte) (string, int, error) {
	if len(b) < 2 {
		return "", 0, ErrTruncated
	}
	length := int(binary.BigEndian.Uint16(b[:2]))
	if len(b)-2 < length {
		return "", 0, ErrTruncated
	}
	return string(b[2 : 2+length]), 2 + length, nil
}

func isEndOfObject(b []byte) bool {
	return len(b) >= 3 && b[0] == 0x00 && b[1] == 0x00 && b[2] == TypeObjectEnd
}

// decodeProperties decodes key/value pairs until an object end marker, which is consumed.
func decodeProperties(b []byte, depth int) (map[string]interface{}, int, error) {
	if depth > MaxDepth {
		return nil, 0, ErrNestingTooDeep
	}
	m := make(map[string]interface{})
	offset := 0
	// Decode until an end of object is reached
	for {
		if isEndOfObject(b[offset:]) {
			return m, offset + 3, nil
		}
		// Keys are always strings without the type marker
		key, n, err := decodeString(b[offset:])
		if err != nil {
			return nil, 0, err
		}
		offset += n
		val, n, err := decode(b[offset:], depth)
		if err != nil {
			return nil, 0, err
		}
		m[key] = val
		offset += n
	}
}

func decodeStrictArray(b []byte, depth int) (interface{}, int, error) {
	if depth > MaxDepth {
		return nil, 0, ErrNestingTooDeep
	}
	if len(b) < 5 {
		return nil, 0, ErrTruncated
	}
	count := binary.BigEndian.Uint32(b[1:5])
	offset := 5
	var values []interface{}
	for i := uint32(0); i < count; i++ {
		v, n, err := decode(b[offset:], depth)
		if err != nil {
			return nil, 0, err
		}
		values = append(values, v)
		offset += n
	}
	return values, offset, nil
}
