package amf0

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Encode returns the AMF0 representation of v. Object keys are written in sorted order so the output is
// deterministic.
func Encode(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := encodeTo(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeAll concatenates the encoding of every value, which is how command messages are laid out.
func EncodeAll(values ...interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	for _, v := range values {
		if err := encodeTo(buf, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeTo(buf *bytes.Buffer, v interface{}) error {
	switch v := v.(type) {
	case float64:
		encodeNumber(buf, v)
	case int:
		encodeNumber(buf, float64(v))
	case uint32:
		encodeNumber(buf, float64(v))
	case bool:
		buf.WriteByte(TypeBoolean)
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case string:
		encodeString(buf, v)
	case map[string]interface{}:
		buf.WriteByte(TypeObject)
		return encodeProperties(buf, v)
	case nil:
		buf.WriteByte(TypeNull)
	case Undefined:
		buf.WriteByte(TypeUndefined)
	case ECMAArray:
		// An ECMA Array is an object that has additional information (associative count - 4 bytes, this is the number of keys)
		buf.WriteByte(TypeECMAArray)
		var count [4]byte
		binary.BigEndian.PutUint32(count[:], uint32(len(v)))
		buf.Write(count[:])
		return encodeProperties(buf, v)
	case []interface{}:
		buf.WriteByte(TypeStrictArray)
		var count [4]byte
		binary.BigEndian.PutUint32(count[:], uint32(len(v)))
		buf.Write(count[:])
		for _, elem := range v {
			if err := encodeTo(buf, elem); err != nil {
				return err
			}
		}
	case time.Time:
		var date [11]byte
		date[0] = TypeDate
		binary.BigEndian.PutUint64(date[1:9], math.Float64bits(float64(v.UnixMilli())))
		// Last 2 bytes are time zone (which should stay with a value of 0 as defined by the spec)
		buf.Write(date[:])
	default:
		return errors.Errorf("amf0: cannot encode type %T", v)
	}
	return nil
}

func encodeProperties(buf *bytes.Buffer, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		// keys don't carry the TypeString marker, they are always normal strings (len(string) < 65535)
		var length [2]byte
		binary.BigEndian.PutUint16(length[:], uint16(len(key)))
		buf.Write(length[:])
		buf.WriteString(key)
		if err := encodeTo(buf, m[key]); err != nil {
			return err
		}
	}
	buf.Write([]byte{0x00, 0x00, TypeObjectEnd})
	return nil
}

func encodeString(buf *bytes.Buffer, s string) {
	if len(s) < 65535 {
		var length [2]byte
		binary.BigEndian.PutUint16(length[:], uint16(len(s)))
		buf.WriteByte(TypeString)
		buf.Write(length[:])
	} else {
		// Strings that require more than 65535 bytes should use TypeLongString
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(s)))
		buf.WriteByte(TypeLongString)
		buf.Write(length[:])
	}
	buf.WriteString(s)
}

func encodeNumber(buf *bytes.Buffer, number float64) {
	var num [9]byte
	num[0] = TypeNumber
	binary.BigEndian.PutUint64(num[1:], math.Float64bits(number))
	buf.Write(num[:])
}
