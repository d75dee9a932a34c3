package rtmp

import (
	"encoding/binary"
	"io"

	"github.com/torresjeff/rtmp-chunkstream/internal/binary24"
)

const (
	chunkType0MessageHeaderLength = 11
	chunkType1MessageHeaderLength = 7
	chunkType2MessageHeaderLength = 3
	chunkType3MessageHeaderLength = 0

	// Offsets inside the message header, shared by every layout that carries the field.
	timestampIndexStart       = 0
	messageLengthIndexStart   = 3
	messageTypeIDIndexStart   = 6
	messageStreamIDIndexStart = 7

	extendedTimestampLength = 4
)

// MessageHeader is the part of a chunk header that follows the basic header. Which fields it carries
// depends on its chunk type; a field the layout doesn't carry is reported as absent by its accessor,
// never as zero. MessageHeader values are immutable.
type MessageHeader struct {
	fmt ChunkType
	// timestamp holds the absolute timestamp for type 0 headers and the timestamp delta for types 1 and 2.
	// It is the raw 24-bit wire value; binary24.Max means an extended timestamp follows.
	timestamp       uint32
	messageLength   uint32
	messageTypeID   MessageType
	messageStreamID uint32
}

// NewMessageHeader0 builds a type 0 header. Type 0 is used at the start of a chunk stream and whenever
// the timestamp goes backward.
func NewMessageHeader0(timestamp uint32, messageLength uint32, messageTypeID MessageType, messageStreamID uint32) MessageHeader {
	return MessageHeader{
		fmt:             ChunkType0,
		timestamp:       clampTimestamp(timestamp),
		messageLength:   messageLength,
		messageTypeID:   messageTypeID,
		messageStreamID: messageStreamID,
	}
}

// NewMessageHeader1 builds a type 1 header, which takes its message stream ID from the previous chunk.
func NewMessageHeader1(timestampDelta uint32, messageLength uint32, messageTypeID MessageType) MessageHeader {
	return MessageHeader{
		fmt:           ChunkType1,
		timestamp:     clampTimestamp(timestampDelta),
		messageLength: messageLength,
		messageTypeID: messageTypeID,
	}
}

// NewMessageHeader2 builds a type 2 header, which only carries a timestamp delta.
func NewMessageHeader2(timestampDelta uint32) MessageHeader {
	return MessageHeader{fmt: ChunkType2, timestamp: clampTimestamp(timestampDelta)}
}

// NewMessageHeader3 builds the empty type 3 header.
func NewMessageHeader3() MessageHeader {
	return MessageHeader{fmt: ChunkType3}
}

func clampTimestamp(ts uint32) uint32 {
	if ts >= binary24.Max {
		return binary24.Max
	}
	return ts
}

func (h MessageHeader) Format() ChunkType { return h.fmt }

// Len returns the number of bytes the header occupies on the wire (11, 7, 3 or 0).
func (h MessageHeader) Len() int {
	return messageHeaderLength(h.fmt)
}

// Timestamp returns the absolute timestamp. Only type 0 headers carry it.
func (h MessageHeader) Timestamp() (uint32, bool) {
	if h.fmt != ChunkType0 {
		return 0, false
	}
	return h.timestamp, true
}

// TimestampDelta returns the timestamp delta. Only type 1 and 2 headers carry it.
func (h MessageHeader) TimestampDelta() (uint32, bool) {
	if h.fmt != ChunkType1 && h.fmt != ChunkType2 {
		return 0, false
	}
	return h.timestamp, true
}

// MessageLength is carried by type 0 and 1 headers.
func (h MessageHeader) MessageLength() (uint32, bool) {
	if h.fmt != ChunkType0 && h.fmt != ChunkType1 {
		return 0, false
	}
	return h.messageLength, true
}

// MessageTypeID is carried by type 0 and 1 headers.
func (h MessageHeader) MessageTypeID() (MessageType, bool) {
	if h.fmt != ChunkType0 && h.fmt != ChunkType1 {
		return 0, false
	}
	return h.messageTypeID, true
}

// MessageStreamID is only carried by type 0 headers.
func (h MessageHeader) MessageStreamID() (uint32, bool) {
	if h.fmt != ChunkType0 {
		return 0, false
	}
	return h.messageStreamID, true
}

// HasExtendedTimestamp reports whether the timestamp field holds the 0xFFFFFF marker, meaning a 4 byte
// extended timestamp follows the header on the wire.
func (h MessageHeader) HasExtendedTimestamp() bool {
	return h.fmt != ChunkType3 && h.timestamp == binary24.Max
}

func messageHeaderLength(chunkType ChunkType) int {
	switch chunkType {
	case ChunkType0:
		return chunkType0MessageHeaderLength
	case ChunkType1:
		return chunkType1MessageHeaderLength
	case ChunkType2:
		return chunkType2MessageHeaderLength
	default:
		return chunkType3MessageHeaderLength
	}
}

// ReadMessageHeader reads exactly the number of bytes the chunk type calls for (11, 7, 3 or 0) and
// decodes them. All multi-byte fields are big endian except the message stream ID, which RTMP stores in
// little endian.
func ReadMessageHeader(chunkType ChunkType, r io.Reader) (MessageHeader, error) {
	if chunkType > ChunkType3 {
		return MessageHeader{}, ErrInvalidChunkType
	}
	var buf [chunkType0MessageHeaderLength]byte
	header := buf[:messageHeaderLength(chunkType)]
	if len(header) > 0 {
		if _, err := io.ReadFull(r, header); err != nil {
			return MessageHeader{}, newIOError("read message header", unexpectedEOF(err))
		}
	}

	h := MessageHeader{fmt: chunkType}
	switch chunkType {
	//0                   1                   2                   3
	//0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	//+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//|                   timestamp                   |message length |
	//+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//|     message length (cont)     |message type id| msg stream id |
	//+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//|           message stream id (cont)            |
	//+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//
	//	Chunk Message Header - Type 0
	case ChunkType0:
		h.timestamp = binary24.BigEndian.Uint24(header[timestampIndexStart:])
		h.messageLength = binary24.BigEndian.Uint24(header[messageLengthIndexStart:])
		h.messageTypeID = MessageType(header[messageTypeIDIndexStart])
		h.messageStreamID = binary.LittleEndian.Uint32(header[messageStreamIDIndexStart:])
	//0                   1                   2                   3
	//0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	//+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//|                timestamp delta                |message length |
	//+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//|     message length (cont)     |message type id|
	//+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//
	//	Chunk Message Header - Type 1
	case ChunkType1:
		h.timestamp = binary24.BigEndian.Uint24(header[timestampIndexStart:])
		h.messageLength = binary24.BigEndian.Uint24(header[messageLengthIndexStart:])
		h.messageTypeID = MessageType(header[messageTypeIDIndexStart])
	//0                   1                   2
	//0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3
	//+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//|                timestamp delta                |
	//+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//
	//	Chunk Message Header - Type 2
	case ChunkType2:
		h.timestamp = binary24.BigEndian.Uint24(header[timestampIndexStart:])
	case ChunkType3:
		// Type 3 headers have no fields, everything comes from the chunk stream's previous chunk.
	}
	return h, nil
}

// Encode returns the wire representation of h. It does not include the extended timestamp; callers that
// see HasExtendedTimestamp must append it themselves.
func (h MessageHeader) Encode() []byte {
	buf := make([]byte, 0, h.Len())
	switch h.fmt {
	case ChunkType0:
		buf = binary24.BigEndian.AppendUint24(buf, h.timestamp)
		buf = binary24.BigEndian.AppendUint24(buf, h.messageLength)
		buf = append(buf, byte(h.messageTypeID))
		buf = binary.LittleEndian.AppendUint32(buf, h.messageStreamID)
	case ChunkType1:
		buf = binary24.BigEndian.AppendUint24(buf, h.timestamp)
		buf = binary24.BigEndian.AppendUint24(buf, h.messageLength)
		buf = append(buf, byte(h.messageTypeID))
	case ChunkType2:
		buf = binary24.BigEndian.AppendUint24(buf, h.timestamp)
	}
	return buf
}
