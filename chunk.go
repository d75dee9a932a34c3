package rtmp

import (
	"encoding/binary"
	"io"
)

// Chunk is one framed unit read off the wire: a basic header, a message header and the payload bytes
// that followed them. Chunks are transient; the session resolves and dispatches each one before reading
// the next.
type Chunk struct {
	BasicHeader   BasicHeader
	MessageHeader MessageHeader
	// ExtendedTimestamp is only meaningful when MessageHeader.HasExtendedTimestamp() is true.
	ExtendedTimestamp uint32
	Payload           []byte
}

// Format is shorthand for c.BasicHeader.Format().
func (c *Chunk) Format() ChunkType { return c.BasicHeader.Format() }

// ChunkStreamID is shorthand for c.BasicHeader.ChunkStreamID().
func (c *Chunk) ChunkStreamID() uint32 { return c.BasicHeader.ChunkStreamID() }

// timestampField returns the timestamp (type 0) or timestamp delta (types 1 and 2) with the extended
// timestamp already applied. ok is false for type 3 chunks.
func (c *Chunk) timestampField() (ts uint32, ok bool) {
	if c.MessageHeader.HasExtendedTimestamp() {
		return c.ExtendedTimestamp, true
	}
	if ts, ok = c.MessageHeader.Timestamp(); ok {
		return ts, true
	}
	return c.MessageHeader.TimestampDelta()
}

// ByteStreamReader is what the chunk reader needs from the connection: exact reads for headers and
// payloads, byte reads for the basic header.
type ByteStreamReader interface {
	io.Reader
	io.ByteReader
}

// ChunkReader reads chunks from a byte stream. It keeps no state between chunks; inheriting omitted
// header fields is the Demultiplexer's job.
type ChunkReader struct {
	reader ByteStreamReader
}

func NewChunkReader(reader ByteStreamReader) *ChunkReader {
	return &ChunkReader{reader: reader}
}

// ReadChunk reads one complete chunk. When the message header carries a message length (types 0 and 1),
// exactly that many payload bytes are read; type 2 and 3 chunks carry no payload at this layer.
// Either a whole chunk is returned or an error, never a partial chunk.
func (cr *ChunkReader) ReadChunk() (*Chunk, error) {
	chunk, err := cr.ReadChunkHeader()
	if err != nil {
		return nil, err
	}
	if length, ok := chunk.MessageHeader.MessageLength(); ok {
		chunk.Payload, err = cr.ReadPayload(length)
		if err != nil {
			return nil, err
		}
	}
	return chunk, nil
}

// ReadChunkHeader reads the basic header, the message header and, if announced, the extended timestamp.
// The returned chunk has no payload.
func (cr *ChunkReader) ReadChunkHeader() (*Chunk, error) {
	basicHeader, err := ReadBasicHeader(cr.reader)
	if err != nil {
		return nil, err
	}
	messageHeader, err := ReadMessageHeader(basicHeader.Format(), cr.reader)
	if err != nil {
		return nil, err
	}

	chunk := &Chunk{BasicHeader: basicHeader, MessageHeader: messageHeader}
	// A timestamp of 0xFFFFFF indicates an extended timestamp, which is sent as a 4 byte field after the message header.
	if messageHeader.HasExtendedTimestamp() {
		if chunk.ExtendedTimestamp, err = cr.ReadExtendedTimestamp(); err != nil {
			return nil, err
		}
	}
	return chunk, nil
}

// ReadExtendedTimestamp reads the 4 byte big endian extended timestamp field.
func (cr *ChunkReader) ReadExtendedTimestamp() (uint32, error) {
	var extendedTimestamp [extendedTimestampLength]byte
	if _, err := io.ReadFull(cr.reader, extendedTimestamp[:]); err != nil {
		return 0, newIOError("read extended timestamp", unexpectedEOF(err))
	}
	return binary.BigEndian.Uint32(extendedTimestamp[:]), nil
}

// ReadPayload reads exactly n payload bytes.
func (cr *ChunkReader) ReadPayload(n uint32) ([]byte, error) {
	payload := make([]byte, n)
	if n == 0 {
		return payload, nil
	}
	if _, err := io.ReadFull(cr.reader, payload); err != nil {
		return nil, newIOError("read chunk payload", unexpectedEOF(err))
	}
	return payload, nil
}
