// Package amf0 encodes and decodes the Action Message Format version 0 values carried by RTMP command and
// data messages.
package amf0

import "github.com/pkg/errors"

type ECMAArray map[string]interface{}
type ObjectEnd struct{}

// Undefined is the decoded form of the undefined marker, which is distinct from null (nil).
type Undefined struct{}

const (
	TypeNumber      byte = 0x00
	TypeBoolean     byte = 0x01
	TypeString      byte = 0x02
	TypeObject      byte = 0x03
	TypeMovieClip   byte = 0x04 // reserved, not supported
	TypeNull        byte = 0x05
	TypeUndefined   byte = 0x06
	TypeReference   byte = 0x07
	TypeECMAArray   byte = 0x08
	TypeObjectEnd   byte = 0x09
	TypeStrictArray byte = 0x0A
	TypeDate        byte = 0x0B
	TypeLongString  byte = 0x0C
	TypeUnsupported byte = 0x0D
	TypeRecordSet   byte = 0x0E // reserved, not supported
	TypeXMLDocument byte = 0x0F
	TypeTypedObject byte = 0x10
)

var ErrTruncated = errors.New("amf0: value is truncated")
var ErrUnsupportedType = errors.New("amf0: unsupported type")
var ErrNestingTooDeep = errors.New("amf0: objects nested too deep")

// MaxDepth is how many objects or arrays may be nested inside each other. Command and data messages use
// two or three levels at most.
const MaxDepth = 64
