// Package amf decodes the payload of RTMP command and data messages of either AMF version.
package amf

import (
	"github.com/pkg/errors"
	"github.com/torresjeff/rtmp-chunkstream/amf/amf0"
)

const AMFVersion0 uint8 = 0
const AMFVersion3 uint8 = 3

// Decode returns every value in the payload of a command or data message. AMF3 messages (types 15, 16
// and 17) start with a format selector byte, which must be 0; the values after it use AMF0 encoding.
func Decode(payload []byte, version uint8) ([]interface{}, error) {
	switch version {
	case AMFVersion0:
		return amf0.DecodeAll(payload)
	case AMFVersion3:
		if len(payload) == 0 {
			return nil, amf0.ErrTruncated
		}
		if payload[0] != 0 {
			return nil, errors.Errorf("amf: unsupported AMF3 format selector 0x%02x", payload[0])
		}
		return amf0.DecodeAll(payload[1:])
	default:
		return nil, errors.Errorf("amf: unsupported AMF version %d", version)
	}
}

// Encode concatenates the AMF0 encoding of values, prefixing the AMF3 format selector when needed.
func Encode(version uint8, values ...interface{}) ([]byte, error) {
	payload, err := amf0.EncodeAll(values...)
	if err != nil {
		return nil, err
	}
	switch version {
	case AMFVersion0:
		return payload, nil
	case AMFVersion3:
		return append([]byte{0}, payload...), nil
	default:
		return nil, errors.Errorf("amf: unsupported AMF version %d", version)
	}
}
