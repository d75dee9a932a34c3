package rtmp

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmp-chunkstream/internal/binary24"
)

// DefaultChunkSize is the maximum chunk payload size both peers assume until a SetChunkSize message says
// otherwise.
const DefaultChunkSize = 128

// ProtocolChannel is the chunk stream ID reserved for low-level protocol control messages and commands.
const ProtocolChannel uint32 = 2

var ErrMessageTooLarge = errors.New("message payload does not fit in a 24-bit message length")

// MessageWriter is handed to handlers so they can answer on the connection the message came from.
type MessageWriter interface {
	// WriteMessage sends msg on the given chunk stream, splitting it into chunks if needed, and flushes.
	WriteMessage(chunkStreamID uint32, msg *Message) error
	// SetChunkSize changes the maximum payload size of outgoing chunks. Callers announce the change
	// with a SetChunkSize message first.
	SetChunkSize(size uint32)
}

// ChunkWriter encodes outgoing messages as a type 0 chunk followed by as many type 3 chunks as the
// outbound chunk size requires.
type ChunkWriter struct {
	writer    WriteFlusher
	chunkSize uint32
	// beforeWrite runs before each message is written; sessions use it to arm the write deadline.
	beforeWrite func() error
}

func NewChunkWriter(writer WriteFlusher) *ChunkWriter {
	return &ChunkWriter{writer: writer, chunkSize: DefaultChunkSize}
}

func (cw *ChunkWriter) SetChunkSize(size uint32) {
	if size == 0 {
		return
	}
	cw.chunkSize = size
}

func (cw *ChunkWriter) ChunkSize() uint32 {
	return cw.chunkSize
}

func (cw *ChunkWriter) WriteMessage(chunkStreamID uint32, msg *Message) error {
	payloadLength := len(msg.Payload)
	if payloadLength > binary24.Max {
		return ErrMessageTooLarge
	}
	first, err := NewBasicHeader(ChunkType0, chunkStreamID)
	if err != nil {
		return err
	}
	// Only the chunk stream ID is carried by continuation chunks, everything else comes from the type 0 chunk.
	next, err := NewBasicHeader(ChunkType3, chunkStreamID)
	if err != nil {
		return err
	}
	messageHeader := NewMessageHeader0(msg.Timestamp, uint32(payloadLength), msg.Type, msg.MessageStreamID)

	var extendedTimestamp []byte
	if messageHeader.HasExtendedTimestamp() {
		extendedTimestamp = binary.BigEndian.AppendUint32(nil, msg.Timestamp)
	}

	if cw.beforeWrite != nil {
		if err := cw.beforeWrite(); err != nil {
			return err
		}
	}

	header := append(first.Encode(), messageHeader.Encode()...)
	header = append(header, extendedTimestamp...)
	if err := cw.write(header); err != nil {
		return err
	}

	chunkSize := int(cw.chunkSize)
	continuation := append(next.Encode(), extendedTimestamp...)
	// bytes of the PAYLOAD we've written
	bytesWritten := 0
	for {
		end := bytesWritten + chunkSize
		if end > payloadLength {
			end = payloadLength
		}
		if err := cw.write(msg.Payload[bytesWritten:end]); err != nil {
			return err
		}
		bytesWritten = end
		if bytesWritten >= payloadLength {
			break
		}
		// We've already written payload data, so separate it with a chunk type 3 header
		if err := cw.write(continuation); err != nil {
			return err
		}
	}

	if err := cw.writer.Flush(); err != nil {
		return newIOError("flush message", err)
	}
	return nil
}

func (cw *ChunkWriter) write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if _, err := cw.writer.Write(p); err != nil {
		return newIOError("write chunk", err)
	}
	return nil
}
