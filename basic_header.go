package rtmp

import (
	"io"
)

// ChunkType is the 2-bit fmt field of the basic header. It selects which of the four message header
// layouts follows the basic header.
type ChunkType uint8

const (
	ChunkType0 ChunkType = iota
	ChunkType1
	ChunkType2
	ChunkType3
)

// BasicHeaderForm identifies which of the three basic header encodings was used on the wire.
type BasicHeaderForm uint8

const (
	// BasicHeader1 is the 1 byte form (chunk stream ids 2-63).
	BasicHeader1 BasicHeaderForm = 1
	// BasicHeader2 is the 2 byte form (chunk stream ids 64-319).
	BasicHeader2 BasicHeaderForm = 2
	// BasicHeader3 is the 3 byte form (chunk stream ids 64-65599).
	BasicHeader3 BasicHeaderForm = 3
)

const (
	minChunkStreamID      = 2
	maxOneByteStreamID    = 63
	maxTwoByteStreamID    = 319
	MaxChunkStreamID      = 65599
	chunkStreamIDMask     = 0x3F
	extendedStreamIDDelta = 64
)

// BasicHeader is the first 1 to 3 bytes of every chunk. It is an immutable value: once decoded (or built
// with NewBasicHeader) its fields never change.
type BasicHeader struct {
	form          BasicHeaderForm
	fmt           ChunkType
	chunkStreamID uint32
}

// NewBasicHeader returns the basic header for the given chunk type and chunk stream ID, choosing the
// smallest form that can carry the ID.
func NewBasicHeader(chunkType ChunkType, chunkStreamID uint32) (BasicHeader, error) {
	if chunkType > ChunkType3 {
		return BasicHeader{}, ErrInvalidChunkType
	}
	var form BasicHeaderForm
	switch {
	case chunkStreamID < minChunkStreamID || chunkStreamID > MaxChunkStreamID:
		return BasicHeader{}, ErrInvalidChunkStreamID
	case chunkStreamID <= maxOneByteStreamID:
		form = BasicHeader1
	case chunkStreamID <= maxTwoByteStreamID:
		form = BasicHeader2
	default:
		form = BasicHeader3
	}
	return BasicHeader{form: form, fmt: chunkType, chunkStreamID: chunkStreamID}, nil
}

// Format returns the chunk type (fmt) encoded in the 2 highest bits of the first byte.
func (h BasicHeader) Format() ChunkType { return h.fmt }

func (h BasicHeader) ChunkStreamID() uint32 { return h.chunkStreamID }

func (h BasicHeader) Form() BasicHeaderForm { return h.form }

// Len returns the number of bytes the header occupies on the wire.
func (h BasicHeader) Len() int { return int(h.form) }

// ReadBasicHeader decodes a basic header from r.
//
//	 0 1 2 3 4 5 6 7
//	+-+-+-+-+-+-+-+-+
//	|fmt|   cs id   |
//	+-+-+-+-+-+-+-+-+
//
// A cs id of 0 means one more byte follows (id = byte + 64), a cs id of 1 means two more bytes follow
// (id = third byte * 256 + second byte + 64). Any other value is the chunk stream ID itself.
func ReadBasicHeader(r io.ByteReader) (BasicHeader, error) {
	b, err := r.ReadByte()
	if err != nil {
		return BasicHeader{}, newIOError("read basic header", err)
	}

	h := BasicHeader{fmt: ChunkType(b >> 6)}
	switch csid := b & chunkStreamIDMask; csid {
	case 0:
		second, err := r.ReadByte()
		if err != nil {
			return BasicHeader{}, newIOError("read basic header", unexpectedEOF(err))
		}
		h.form = BasicHeader2
		h.chunkStreamID = uint32(second) + extendedStreamIDDelta
	case 1:
		second, err := r.ReadByte()
		if err != nil {
			return BasicHeader{}, newIOError("read basic header", unexpectedEOF(err))
		}
		third, err := r.ReadByte()
		if err != nil {
			return BasicHeader{}, newIOError("read basic header", unexpectedEOF(err))
		}
		h.form = BasicHeader3
		h.chunkStreamID = uint32(third)*256 + uint32(second) + extendedStreamIDDelta
	default:
		h.form = BasicHeader1
		h.chunkStreamID = uint32(csid)
	}
	return h, nil
}

// Encode returns the wire representation of h, using the form recorded in h.
func (h BasicHeader) Encode() []byte {
	first := byte(h.fmt) << 6
	switch h.form {
	case BasicHeader2:
		return []byte{first, byte(h.chunkStreamID - extendedStreamIDDelta)}
	case BasicHeader3:
		id := h.chunkStreamID - extendedStreamIDDelta
		return []byte{first | 1, byte(id), byte(id >> 8)}
	default:
		return []byte{first | byte(h.chunkStreamID&chunkStreamIDMask)}
	}
}

// EncodeBasicHeader is shorthand for NewBasicHeader followed by Encode.
func EncodeBasicHeader(chunkType ChunkType, chunkStreamID uint32) ([]byte, error) {
	h, err := NewBasicHeader(chunkType, chunkStreamID)
	if err != nil {
		return nil, err
	}
	return h.Encode(), nil
}

// unexpectedEOF turns an EOF that happens after the first byte of a structure was read into
// io.ErrUnexpectedEOF, the same way io.ReadFull does.
func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
